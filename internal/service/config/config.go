package config

type Config struct {
	DataDir       string
	AnalyticsAddr string
}
