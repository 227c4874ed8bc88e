package config

import "time"

type EmailConfig struct {
	Server              string `mapstructure:"imap_server"`
	PollIntervalMinutes int64  `mapstructure:"poll_interval_minutes"`
	Limit               int    `mapstructure:"fetch_limit"`
}

func (s *EmailConfig) IMAPServer() string {
	return s.Server
}

// PollInterval is zero when the background poller is disabled.
func (s *EmailConfig) PollInterval() time.Duration {
	return time.Duration(s.PollIntervalMinutes) * time.Minute
}

func (s *EmailConfig) FetchLimit() int {
	return s.Limit
}
