package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_formatKey(t *testing.T) {
	assert.Equal(t, "42:stats:month:2024-05", formatKey(42, "stats:month:2024-05"))
}

func Test_Nop_ShouldAlwaysMiss(t *testing.T) {
	var c Nop
	assert.NoError(t, c.CacheReport(1, "a", "report"))
	_, err := c.GetReport(1, "a")
	assert.ErrorIs(t, err, ErrMiss)
	assert.NoError(t, c.InvalidateCache(1, []string{"a"}))
}
