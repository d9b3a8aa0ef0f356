package models

import "time"

type EnvConfig struct {
	DownloadsDirectory string
	FFmpegPath         string
	ConfigPath         string

	HTTPSProxy  string
	HTTPProxy   string
	NoProxy     string
	UserAgent   string
	CookiesFile string

	RequestTimeout    time.Duration
	RetryAttempts     int
	RetryInitialDelay time.Duration
	RetryMaxDelay     time.Duration
	RetryMaxElapsed   time.Duration
	ConduitSize       int
	MaxVariantDepth   int
	RateLimit         int

	MetricsPort int
	ServiceName string
	LogLevel    string
}

// HostConfig overrides network settings for a single
// site, keyed by its base host name in config.yaml.
type HostConfig struct {
	HTTPProxy   string            `yaml:"http_proxy"`
	HTTPSProxy  string            `yaml:"https_proxy"`
	NoProxy     string            `yaml:"no_proxy"`
	UserAgent   string            `yaml:"user_agent"`
	CookiesFile string            `yaml:"cookies_file"`
	Headers     map[string]string `yaml:"headers"`
	HTTP3       bool              `yaml:"http3"`
}
