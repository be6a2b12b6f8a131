package config

type Config struct {
	RabbitURL string
}
