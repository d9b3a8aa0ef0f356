package models

import (
	"net/http"
	"time"
)

// MuxArgs are passed untouched to the muxing process as output options.
// a []string value repeats the option once per element.
type MuxArgs map[string]any

type DownloadConfig struct {
	DownloadDir       string                                       // root for temporary segment storage
	Timeout           time.Duration                                // timeout for individual HTTP requests
	RetryAttempts     int                                          // maximum attempts per request, 0 means bounded only by RetryMaxElapsed
	RetryInitialDelay time.Duration                                // first backoff interval
	RetryMaxDelay     time.Duration                                // cap for a single backoff interval
	RetryMaxElapsed   time.Duration                                // total time allowed for one request including retries
	ConduitSize       int                                          // decoded segments buffered ahead of the sink
	MaxVariantDepth   int                                          // nested variant playlists followed before giving up
	RateLimit         int                                          // bytes per second for segment bodies, 0 is unlimited
	MaxInMemory       int                                          // maximum size of playlists and keys
	ProgressUpdater   func(chunkSize int, downloaded, total int64) // optional byte progress of the current segment
	SegmentUpdater    func(done, total int)                        // optional segment progress
	Headers           map[string]string                            // custom HTTP headers for the request
	Cookies           []*http.Cookie                               // cookies to send with the request
}

func DefaultDownloadConfig() *DownloadConfig {
	return &DownloadConfig{
		DownloadDir:       "downloads",
		Timeout:           60 * time.Second,
		RetryAttempts:     0,
		RetryInitialDelay: 500 * time.Millisecond,
		RetryMaxDelay:     60 * time.Second,
		RetryMaxElapsed:   15 * time.Minute,
		ConduitSize:       100,
		MaxVariantDepth:   10,
		MaxInMemory:       10 * 1024 * 1024, // 10MB
		Headers:           make(map[string]string),
		Cookies:           make([]*http.Cookie, 0),
	}
}

// GetDownloadConfig returns a new DownloadConfig with default values merged with the provided config.
// if the provided config is nil, it returns a new config with default values.
func GetDownloadConfig(config *DownloadConfig) *DownloadConfig {
	defaultConfig := DefaultDownloadConfig()
	if config == nil {
		return defaultConfig
	}
	config.Ensure()
	return config
}

func (cfg *DownloadConfig) Ensure() {
	defaultConfig := DefaultDownloadConfig()

	if cfg.DownloadDir == "" {
		cfg.DownloadDir = defaultConfig.DownloadDir
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultConfig.Timeout
	}
	if cfg.RetryAttempts < 0 {
		cfg.RetryAttempts = defaultConfig.RetryAttempts
	}
	if cfg.RetryInitialDelay <= 0 {
		cfg.RetryInitialDelay = defaultConfig.RetryInitialDelay
	}
	if cfg.RetryMaxDelay <= 0 {
		cfg.RetryMaxDelay = defaultConfig.RetryMaxDelay
	}
	if cfg.RetryMaxElapsed <= 0 {
		cfg.RetryMaxElapsed = defaultConfig.RetryMaxElapsed
	}
	if cfg.ConduitSize <= 0 {
		cfg.ConduitSize = defaultConfig.ConduitSize
	}
	if cfg.MaxVariantDepth <= 0 {
		cfg.MaxVariantDepth = defaultConfig.MaxVariantDepth
	}
	if cfg.RateLimit < 0 {
		cfg.RateLimit = 0
	}
	if cfg.MaxInMemory <= 0 {
		cfg.MaxInMemory = defaultConfig.MaxInMemory
	}
	if cfg.Headers == nil {
		cfg.Headers = make(map[string]string)
	}
	if cfg.Cookies == nil {
		cfg.Cookies = make([]*http.Cookie, 0)
	}
}
