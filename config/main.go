package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// Load reads .env (if any) into the environment, then the
// environment into Env and the host overrides.
func Load() error {
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed loading .env: %w", err)
		}
		zap.S().Debug(".env file not found, using process environment")
	}
	if err := LoadEnv(); err != nil {
		return err
	}
	if err := LoadHostConfigs(Env.ConfigPath); err != nil {
		return err
	}
	return nil
}
