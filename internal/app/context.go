package app

import (
	"fmt"
	"os"

	"taskline/internal/config"
)

// ResolveConfig picks the configuration for a run. An explicit file wins,
// then the workspace's taskline.yml, then the built-in defaults.
func ResolveConfig(workspace, configFile string) (*config.Config, error) {
	if configFile != "" {
		cfg, err := config.FromFile(configFile)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, fmt.Errorf("config %s not found; create one with tl config init", configFile)
			}
			return nil, err
		}
		return cfg, nil
	}
	return config.Load(workspace)
}
