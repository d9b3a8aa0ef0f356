package config

import (
	"fmt"
	"maps"
	"os"

	"ncd/models"

	"gopkg.in/yaml.v3"
)

var hostConfigs = make(map[string]*models.HostConfig)

// LoadHostConfigs reads per-host overrides keyed by base host
// name. a missing file is not an error.
func LoadHostConfigs(configPath string) error {
	hostConfigs = make(map[string]*models.HostConfig)

	_, err := os.Stat(configPath)
	if os.IsNotExist(err) {
		return nil
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed reading config file: %w", err)
	}

	var rawConfig map[string]*models.HostConfig

	if err := yaml.Unmarshal(data, &rawConfig); err != nil {
		return fmt.Errorf("failed parsing config file: %w", err)
	}
	maps.Copy(hostConfigs, rawConfig)

	return nil
}

// GetHostConfig merges the overrides for host over the
// environment-wide network settings. nil means the
// default client can be used as is.
func GetHostConfig(host string) *models.HostConfig {
	cfg, exists := hostConfigs[host]
	if !exists {
		if Env.HTTPProxy == "" && Env.HTTPSProxy == "" && Env.UserAgent == "" {
			return nil
		}
		cfg = &models.HostConfig{}
	}
	merged := *cfg
	if merged.HTTPProxy == "" {
		merged.HTTPProxy = Env.HTTPProxy
	}
	if merged.HTTPSProxy == "" {
		merged.HTTPSProxy = Env.HTTPSProxy
	}
	if merged.NoProxy == "" {
		merged.NoProxy = Env.NoProxy
	}
	if merged.UserAgent == "" {
		merged.UserAgent = Env.UserAgent
	}
	if merged.CookiesFile == "" {
		merged.CookiesFile = Env.CookiesFile
	}
	return &merged
}
