package config

type OpsConfig struct {
	MetricsAddress string `mapstructure:"metrics_addr"`
	HealthPort     int    `mapstructure:"grpc_health_port"`
	Tracing        bool   `mapstructure:"tracing_enabled"`
	Service        string `mapstructure:"service_name"`
}

func (s *OpsConfig) MetricsAddr() string {
	return s.MetricsAddress
}

func (s *OpsConfig) GRPCHealthPort() int {
	return s.HealthPort
}

func (s *OpsConfig) TracingEnabled() bool {
	return s.Tracing
}

func (s *OpsConfig) ServiceName() string {
	return s.Service
}
