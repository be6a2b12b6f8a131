package config

import "time"

type Config struct {
	ServerAddr     string
	RequestTimeout time.Duration
}
