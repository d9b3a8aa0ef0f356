package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"ncd/models"

	"go.uber.org/zap"
)

var Env = GetDefaultConfig()

func LoadEnv() error {
	if value := os.Getenv("DOWNLOADS_DIR"); value != "" {
		Env.DownloadsDirectory = value
	} else {
		zap.S().Debugf("DOWNLOADS_DIR is not set, using default %s", Env.DownloadsDirectory)
	}
	if value := os.Getenv("FFMPEG_PATH"); value != "" {
		Env.FFmpegPath = value
	}
	if value := os.Getenv("CONFIG_PATH"); value != "" {
		Env.ConfigPath = value
	}
	if value := os.Getenv("HTTP_PROXY"); value != "" {
		Env.HTTPProxy = value
	}
	if value := os.Getenv("HTTPS_PROXY"); value != "" {
		Env.HTTPSProxy = value
	}
	if value := os.Getenv("NO_PROXY"); value != "" {
		Env.NoProxy = value
	}
	if value := os.Getenv("USER_AGENT"); value != "" {
		Env.UserAgent = value
	}
	if value := os.Getenv("COOKIES_FILE"); value != "" {
		Env.CookiesFile = value
	}
	if err := parseDuration("REQUEST_TIMEOUT", &Env.RequestTimeout); err != nil {
		return err
	}
	if err := parseInt("RETRY_ATTEMPTS", &Env.RetryAttempts); err != nil {
		return err
	}
	if err := parseDuration("RETRY_INITIAL_DELAY", &Env.RetryInitialDelay); err != nil {
		return err
	}
	if err := parseDuration("RETRY_MAX_DELAY", &Env.RetryMaxDelay); err != nil {
		return err
	}
	if err := parseDuration("RETRY_MAX_ELAPSED", &Env.RetryMaxElapsed); err != nil {
		return err
	}
	if err := parseInt("CONDUIT_SIZE", &Env.ConduitSize); err != nil {
		return err
	}
	if Env.ConduitSize <= 0 {
		return fmt.Errorf("CONDUIT_SIZE env must be positive, got %d", Env.ConduitSize)
	}
	if err := parseInt("MAX_VARIANT_DEPTH", &Env.MaxVariantDepth); err != nil {
		return err
	}
	if err := parseInt("RATE_LIMIT", &Env.RateLimit); err != nil {
		return err
	}
	if err := parseInt("METRICS_PORT", &Env.MetricsPort); err != nil {
		return err
	}
	if value := os.Getenv("SERVICE_NAME"); value != "" {
		Env.ServiceName = value
	}
	if value := os.Getenv("LOG_LEVEL"); value != "" {
		Env.LogLevel = value
	}
	return nil
}

func parseInt(name string, target *int) error {
	value := os.Getenv(name)
	if value == "" {
		return nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("%s env is not a valid integer: %w", name, err)
	}
	*target = parsed
	return nil
}

func parseDuration(name string, target *time.Duration) error {
	value := os.Getenv(name)
	if value == "" {
		return nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("%s env is not a valid duration: %w", name, err)
	}
	*target = parsed
	return nil
}

func GetDefaultConfig() *models.EnvConfig {
	defaults := models.DefaultDownloadConfig()
	return &models.EnvConfig{
		DownloadsDirectory: defaults.DownloadDir,
		FFmpegPath:         "ffmpeg",
		ConfigPath:         "config.yaml",

		RequestTimeout:    defaults.Timeout,
		RetryAttempts:     defaults.RetryAttempts,
		RetryInitialDelay: defaults.RetryInitialDelay,
		RetryMaxDelay:     defaults.RetryMaxDelay,
		RetryMaxElapsed:   defaults.RetryMaxElapsed,
		ConduitSize:       defaults.ConduitSize,
		MaxVariantDepth:   defaults.MaxVariantDepth,

		ServiceName: "ncd",
		LogLevel:    "info",
	}
}

// DownloadConfig maps the environment onto the settings
// of a single download.
func DownloadConfig() *models.DownloadConfig {
	return models.GetDownloadConfig(&models.DownloadConfig{
		DownloadDir:       Env.DownloadsDirectory,
		Timeout:           Env.RequestTimeout,
		RetryAttempts:     Env.RetryAttempts,
		RetryInitialDelay: Env.RetryInitialDelay,
		RetryMaxDelay:     Env.RetryMaxDelay,
		RetryMaxElapsed:   Env.RetryMaxElapsed,
		ConduitSize:       Env.ConduitSize,
		MaxVariantDepth:   Env.MaxVariantDepth,
		RateLimit:         Env.RateLimit,
	})
}
