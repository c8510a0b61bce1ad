package configs

import (
	"flag"
	"os"

	"github.com/cch137/webrtc-demo-2025-11/internal/infrastructure/env"
)

// DetermineConfigPath resolves the config file from --config, RELAY_CONFIG,
// or the first existing candidate. An empty result means defaults only.
func DetermineConfigPath() string {
	var configPath string

	flag.StringVar(&configPath, "config", "", "path to config file")
	flag.Parse()

	if configPath == "" {
		configPath = env.GetString("RELAY_CONFIG", "")
	}

	if configPath == "" {
		configPath = firstExisting([]string{
			"./config.yaml",
			"./config.yml",
			"./tmp/config.yaml",
			"../../config.yaml", // keep for local dev
			"/etc/webrtc-relay/config.yaml",
			"/app/config.yaml", // common in Docker
		})
	}

	return configPath
}

func firstExisting(candidates []string) string {
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
