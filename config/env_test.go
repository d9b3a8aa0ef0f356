package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/matryer/is"
)

func TestLoadEnvDefaults(t *testing.T) {
	is := is.New(t)
	Env = GetDefaultConfig()
	is.NoErr(LoadEnv())

	is.Equal(Env.DownloadsDirectory, "downloads")
	is.Equal(Env.FFmpegPath, "ffmpeg")
	is.Equal(Env.ConduitSize, 100)
	is.Equal(Env.MaxVariantDepth, 10)
	is.Equal(Env.RetryInitialDelay, 500*time.Millisecond)
	is.Equal(Env.RetryMaxElapsed, 15*time.Minute)
}

func TestLoadEnvOverrides(t *testing.T) {
	is := is.New(t)
	Env = GetDefaultConfig()
	t.Setenv("DOWNLOADS_DIR", "/tmp/ncd")
	t.Setenv("FFMPEG_PATH", "/opt/ffmpeg/bin/ffmpeg")
	t.Setenv("REQUEST_TIMEOUT", "15s")
	t.Setenv("RETRY_ATTEMPTS", "7")
	t.Setenv("CONDUIT_SIZE", "8")
	t.Setenv("RATE_LIMIT", "1048576")
	t.Setenv("LOG_LEVEL", "debug")
	is.NoErr(LoadEnv())

	is.Equal(Env.DownloadsDirectory, "/tmp/ncd")
	is.Equal(Env.FFmpegPath, "/opt/ffmpeg/bin/ffmpeg")
	is.Equal(Env.RequestTimeout, 15*time.Second)
	is.Equal(Env.RetryAttempts, 7)
	is.Equal(Env.ConduitSize, 8)
	is.Equal(Env.LogLevel, "debug")

	cfg := DownloadConfig()
	is.Equal(cfg.DownloadDir, "/tmp/ncd")
	is.Equal(cfg.Timeout, 15*time.Second)
	is.Equal(cfg.ConduitSize, 8)
	is.Equal(cfg.RateLimit, 1048576)
}

func TestLoadEnvRejectsInvalidValues(t *testing.T) {
	is := is.New(t)

	Env = GetDefaultConfig()
	t.Setenv("RETRY_ATTEMPTS", "many")
	is.True(LoadEnv() != nil) // not an integer

	Env = GetDefaultConfig()
	t.Setenv("RETRY_ATTEMPTS", "")
	t.Setenv("RETRY_MAX_DELAY", "soon")
	is.True(LoadEnv() != nil) // not a duration

	Env = GetDefaultConfig()
	t.Setenv("RETRY_MAX_DELAY", "")
	t.Setenv("CONDUIT_SIZE", "0")
	is.True(LoadEnv() != nil) // the conduit needs room for a chunk
}

func TestHostConfigs(t *testing.T) {
	is := is.New(t)
	Env = GetDefaultConfig()
	Env.CookiesFile = "default.txt"

	path := filepath.Join(t.TempDir(), "config.yaml")
	is.NoErr(os.WriteFile(path, []byte(`
example:
  user_agent: ncd-test
  https_proxy: http://proxy.local:3128
  http3: true
  headers:
    Referer: https://www.example.com/
`), 0644))
	is.NoErr(LoadHostConfigs(path))

	cfg := GetHostConfig("example")
	is.True(cfg != nil)
	is.Equal(cfg.UserAgent, "ncd-test")
	is.Equal(cfg.HTTPSProxy, "http://proxy.local:3128")
	is.True(cfg.HTTP3)
	is.Equal(cfg.Headers["Referer"], "https://www.example.com/")
	is.Equal(cfg.CookiesFile, "default.txt") // inherited from the environment

	is.True(GetHostConfig("unknown") == nil) // nothing to override

	is.NoErr(LoadHostConfigs(filepath.Join(t.TempDir(), "missing.yaml"))) // optional file
}
