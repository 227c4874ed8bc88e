package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const defaultEnvFile = ".env"

type config struct {
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	OpenAI    OpenAIConfig    `mapstructure:"openai"`
	App       AppConfig       `mapstructure:"app"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Memcached MemcachedConfig `mapstructure:"memcached"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Email     EmailConfig     `mapstructure:"email"`
	Ops       OpsConfig       `mapstructure:"ops"`
}

// envBindings maps config keys to the environment variables they are read from.
var envBindings = map[string]string{
	"telegram.token":              "TELEGRAM_BOT_TOKEN",
	"openai.api_key":              "OPENAI_API_KEY",
	"openai.base_url":             "OPENAI_BASE_URL",
	"openai.chat_model":           "GPT_MODEL",
	"openai.speech_model":         "WHISPER_MODEL",
	"openai.timeout_seconds":      "LLM_TIMEOUT_SECONDS",
	"app.allowed_users":           "ALLOWED_USER_IDS",
	"app.default_currency":        "DEFAULT_CURRENCY",
	"app.timezone":                "TIMEZONE",
	"app.data_dir":                "DATA_DIR",
	"app.categories_file":         "CATEGORIES_FILE",
	"storage.driver":              "DATABASE_DRIVER",
	"storage.url":                 "DATABASE_URL",
	"memcached.hosts":             "MEMCACHED_HOSTS",
	"kafka.brokers":               "KAFKA_BROKERS",
	"kafka.journal_topic":         "KAFKA_JOURNAL_TOPIC",
	"email.imap_server":           "IMAP_SERVER",
	"email.poll_interval_minutes": "EMAIL_POLL_INTERVAL_MINUTES",
	"email.fetch_limit":           "EMAIL_FETCH_LIMIT",
	"ops.metrics_addr":            "METRICS_ADDR",
	"ops.grpc_health_port":        "GRPC_HEALTH_PORT",
	"ops.tracing_enabled":         "TRACING_ENABLED",
	"ops.service_name":            "SERVICE_NAME",
}

var defaults = map[string]any{
	"openai.chat_model":           "gpt-4o-mini",
	"openai.speech_model":         "whisper-1",
	"openai.timeout_seconds":      30,
	"app.default_currency":        "MXN",
	"app.timezone":                "America/Mexico_City",
	"app.data_dir":                "data",
	"storage.driver":              DriverSQLite,
	"kafka.journal_topic":         "expenses-journal",
	"email.imap_server":           "imap.gmail.com:993",
	"email.poll_interval_minutes": 0,
	"email.fetch_limit":           20,
	"ops.metrics_addr":            ":9090",
	"ops.grpc_health_port":        0,
	"ops.tracing_enabled":         false,
	"ops.service_name":            "expenses-bot",
}

type Service struct {
	config config
}

// New loads the .env file when present and reads the configuration from the environment.
func New(envFile string) (*Service, error) {
	if envFile == "" {
		envFile = defaultEnvFile
	}
	if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrap(err, "loading env file")
	}

	v := viper.New()
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, errors.Wrapf(err, "binding %s", env)
		}
	}
	for key, val := range defaults {
		v.SetDefault(key, val)
	}

	s := &Service{}
	if err := v.Unmarshal(&s.config); err != nil {
		return nil, errors.Wrap(err, "parsing environment")
	}
	if err := s.prepare(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Service) prepare() error {
	var missing []string
	if s.config.Telegram.ApiToken == "" {
		missing = append(missing, envBindings["telegram.token"])
	}
	if s.config.OpenAI.Key == "" {
		missing = append(missing, envBindings["openai.api_key"])
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	if err := s.config.App.prepare(); err != nil {
		return errors.Wrap(err, "app config")
	}
	if s.config.Storage.URL == "" && s.config.Storage.DriverName == DriverSQLite {
		s.config.Storage.URL = filepath.Join(s.config.App.DataDirectory, "expenses.db")
	}
	return s.config.Storage.validate()
}

func (s *Service) Telegram() *TelegramConfig {
	return &s.config.Telegram
}

func (s *Service) OpenAI() *OpenAIConfig {
	return &s.config.OpenAI
}

func (s *Service) App() *AppConfig {
	return &s.config.App
}

func (s *Service) Storage() *StorageConfig {
	return &s.config.Storage
}

func (s *Service) Memcached() *MemcachedConfig {
	return &s.config.Memcached
}

func (s *Service) Kafka() *KafkaConfig {
	return &s.config.Kafka
}

func (s *Service) Email() *EmailConfig {
	return &s.config.Email
}

func (s *Service) Ops() *OpsConfig {
	return &s.config.Ops
}

func splitList(raw string) []string {
	var res []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			res = append(res, part)
		}
	}
	return res
}
