package config

import "fmt"

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type StorageConfig struct {
	DriverName string `mapstructure:"driver"`
	URL        string `mapstructure:"url"`
}

func (s *StorageConfig) validate() error {
	switch s.DriverName {
	case DriverSQLite:
		return nil
	case DriverPostgres:
		if s.URL == "" {
			return fmt.Errorf("DATABASE_URL is required for driver %s", s.DriverName)
		}
		return nil
	default:
		return fmt.Errorf("unsupported database driver %q", s.DriverName)
	}
}

func (s *StorageConfig) Driver() string {
	return s.DriverName
}

func (s *StorageConfig) DSN() string {
	return s.URL
}
