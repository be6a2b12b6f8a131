package config

import "time"

type Config struct {
	RedisURL string
	TTL      time.Duration
}
