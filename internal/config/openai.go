package config

import "time"

type OpenAIConfig struct {
	Key            string `mapstructure:"api_key"`
	URL            string `mapstructure:"base_url"`
	Chat           string `mapstructure:"chat_model"`
	Speech         string `mapstructure:"speech_model"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

func (o *OpenAIConfig) ApiKey() string {
	return o.Key
}

func (o *OpenAIConfig) BaseURL() string {
	return o.URL
}

func (o *OpenAIConfig) ChatModel() string {
	return o.Chat
}

func (o *OpenAIConfig) SpeechModel() string {
	return o.Speech
}

func (o *OpenAIConfig) Timeout() time.Duration {
	return time.Duration(o.TimeoutSeconds) * time.Second
}
