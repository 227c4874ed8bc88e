package config

type MemcachedConfig struct {
	NodeHosts string `mapstructure:"hosts"`
}

func (s *MemcachedConfig) Hosts() []string {
	return splitList(s.NodeHosts)
}
