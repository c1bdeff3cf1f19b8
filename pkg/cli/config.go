package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// UserConfig represents ~/.lakeshare/config.yaml. Profiles map short aliases
// to credential-profile file paths.
type UserConfig struct {
	CurrentProfile string            `yaml:"current-profile"`
	Profiles       map[string]string `yaml:"profiles"`
}

// ActiveProfilePath resolves the profile file to use. An override naming a
// configured alias resolves through it; any other non-empty override is
// taken as a literal path. With no override the current-profile alias wins.
func (c *UserConfig) ActiveProfilePath(override string) string {
	if override != "" {
		if p, ok := c.Profiles[override]; ok && p != "" {
			return p
		}
		return override
	}
	if p, ok := c.Profiles[c.CurrentProfile]; ok {
		return p
	}
	return ""
}

// ConfigDir returns the path to ~/.lakeshare/.
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".lakeshare")
}

// ConfigPath returns the path to ~/.lakeshare/config.yaml.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// LoadUserConfig reads ~/.lakeshare/config.yaml.
func LoadUserConfig() (*UserConfig, error) {
	path := ConfigPath()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg UserConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Profiles == nil {
		cfg.Profiles = map[string]string{}
	}
	return &cfg, nil
}

// SaveUserConfig writes ~/.lakeshare/config.yaml.
func SaveUserConfig(cfg *UserConfig) error {
	dir := ConfigDir()
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(ConfigPath(), data, 0o600)
}
