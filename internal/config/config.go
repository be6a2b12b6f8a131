package config

import (
	"flag"
	"os"
	"time"

	cacheConfig "github.com/iurnickita/tiffintrails/internal/cache/config"
	eventsConfig "github.com/iurnickita/tiffintrails/internal/events/config"
	handlerConfig "github.com/iurnickita/tiffintrails/internal/handler/config"
	loggerConfig "github.com/iurnickita/tiffintrails/internal/logger/config"
	serviceConfig "github.com/iurnickita/tiffintrails/internal/service/config"
	storeConfig "github.com/iurnickita/tiffintrails/internal/store/config"
)

type Config struct {
	Handler handlerConfig.Config
	Service serviceConfig.Config
	Store   storeConfig.Config
	Logger  loggerConfig.Config
	Cache   cacheConfig.Config
	Events  eventsConfig.Config
}

func GetConfig() Config {
	var cfg Config

	flag.StringVar(&cfg.Handler.ServerAddr, "a", ":8080", "server address")
	timeout := flag.Int("t", 10, "request timeout, seconds")
	flag.StringVar(&cfg.Store.DBDsn, "d", "", "database dsn")
	flag.StringVar(&cfg.Logger.LogLevel, "l", "info", "log level")
	flag.StringVar(&cfg.Service.DataDir, "data", "data", "fixture csv directory")
	flag.StringVar(&cfg.Service.AnalyticsAddr, "analytics", "", "analytics service address")
	flag.StringVar(&cfg.Cache.RedisURL, "r", "", "redis url (optional)")
	flag.StringVar(&cfg.Events.RabbitURL, "q", "", "rabbitmq url (optional)")
	flag.Parse()

	// переменные окружения имеют приоритет над флагами
	if v, ok := os.LookupEnv("RUN_ADDRESS"); ok {
		cfg.Handler.ServerAddr = v
	}
	if v, ok := os.LookupEnv("DATABASE_URI"); ok {
		cfg.Store.DBDsn = v
	}
	if v, ok := os.LookupEnv("LOG_LEVEL"); ok {
		cfg.Logger.LogLevel = v
	}
	if v, ok := os.LookupEnv("DATA_DIR"); ok {
		cfg.Service.DataDir = v
	}
	if v, ok := os.LookupEnv("ANALYTICS_ADDRESS"); ok {
		cfg.Service.AnalyticsAddr = v
	}
	if v, ok := os.LookupEnv("REDIS_URL"); ok {
		cfg.Cache.RedisURL = v
	}
	if v, ok := os.LookupEnv("RABBITMQ_URL"); ok {
		cfg.Events.RabbitURL = v
	}

	cfg.Handler.RequestTimeout = time.Duration(*timeout) * time.Second
	cfg.Cache.TTL = 30 * time.Second

	return cfg
}
