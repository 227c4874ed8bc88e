package config

type KafkaConfig struct {
	BrokerList string `mapstructure:"brokers"`
	Topic      string `mapstructure:"journal_topic"`
}

func (s *KafkaConfig) Brokers() []string {
	return splitList(s.BrokerList)
}

func (s *KafkaConfig) JournalTopic() string {
	return s.Topic
}
