package tracing

import (
	"testing"

	"github.com/opentracing/opentracing-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type configStub struct {
	enabled bool
}

func (c configStub) TracingEnabled() bool { return c.enabled }
func (c configStub) ServiceName() string  { return "expenses-bot-test" }

func Test_Init_ShouldKeepNoopTracerWhenDisabled(t *testing.T) {
	closer, err := Init(configStub{})
	require.NoError(t, err)
	assert.NoError(t, closer.Close())
	assert.IsType(t, opentracing.NoopTracer{}, opentracing.GlobalTracer())
}
