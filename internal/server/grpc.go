package server

import (
	"fmt"
	"net"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"max.ks1230/expenses-bot/internal/logger"
)

// ServiceName is the health service name reported next to the overall status.
const ServiceName = "expenses.Bot"

type HealthServer struct {
	health *health.Server
	server *grpc.Server
	lis    net.Listener
}

func NewHealthServer(port int) (*HealthServer, error) {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, errors.Wrap(err, "cannot create server")
	}

	rpcServer := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(rpcServer, hs)

	s := &HealthServer{
		health: hs,
		server: rpcServer,
		lis:    lis,
	}
	s.SetServing(false)
	return s, nil
}

func (s *HealthServer) Addr() net.Addr {
	return s.lis.Addr()
}

// SetServing flips both the overall and the bot status.
func (s *HealthServer) SetServing(ok bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if ok {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}

func (s *HealthServer) Serve() {
	logger.Info("gRPC health server listening", zap.Any("addr", s.lis.Addr()))
	if err := s.server.Serve(s.lis); err != nil {
		logger.Error("failed to serve gRPC", zap.Error(err))
	}
}

func (s *HealthServer) Shutdown() {
	s.health.Shutdown()
	s.server.GracefulStop()
	logger.Info("grpc server stopped")
}
