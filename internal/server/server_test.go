package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type pingStub struct {
	err error
}

func (p pingStub) Ping(context.Context) error { return p.err }

func Test_Healthz_ShouldReportDatabaseState(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		code   int
		status string
	}{
		{name: "up", code: http.StatusOK, status: "ok"},
		{name: "down", err: errors.New("database is locked"), code: http.StatusServiceUnavailable, status: "unavailable"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			NewRouter(pingStub{err: tc.err}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

			assert.Equal(t, tc.code, rec.Code)
			var resp healthResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			assert.Equal(t, tc.status, resp.Status)
		})
	}
}

func Test_Metrics_ShouldBeExposed(t *testing.T) {
	rec := httptest.NewRecorder()
	NewRouter(pingStub{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func Test_HealthServer_ShouldFollowServingFlag(t *testing.T) {
	s, err := NewHealthServer(0)
	require.NoError(t, err)
	go s.Serve()
	defer s.Shutdown()

	conn, err := grpc.NewClient(fmt.Sprintf("localhost:%d", s.Addr().(*net.TCPAddr).Port), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()
	client := healthpb.NewHealthClient(conn)

	resp, err := client.Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, resp.Status)

	s.SetServing(true)
	resp, err = client.Check(context.Background(), &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.Status)
}
