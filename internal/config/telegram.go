package config

type TelegramConfig struct {
	ApiToken string `mapstructure:"token"`
}

func (t *TelegramConfig) Token() string {
	return t.ApiToken
}
