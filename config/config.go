package config

import (
	"os"
	"path/filepath"

	"github.com/parkerduff/assistant/errors"
	"gopkg.in/yaml.v3"
)

// MCPServer describes the tool server subprocess the assistant connects to.
type MCPServer struct {
	Name    string            `yaml:"name"`
	Command string            `yaml:"command"`
	Args    []string          `yaml:"args"`
	Dir     string            `yaml:"dir"`
	Env     map[string]string `yaml:"env"`
}

// ContextRules controls which catalog entries are eligible for selection.
// Patterns are doublestar globs matched against entry names.
type ContextRules struct {
	HiddenResources []string `yaml:"hidden_resources"`
	HiddenPrompts   []string `yaml:"hidden_prompts"`
}

type Config struct {
	Provider  string       `yaml:"provider"`
	Model     string       `yaml:"model"`
	MaxTokens int64        `yaml:"max_tokens"`
	Server    MCPServer    `yaml:"server"`
	Context   ContextRules `yaml:"context"`
}

const (
	DefaultProvider  = "anthropic"
	DefaultModel     = "claude-sonnet-4-0"
	DefaultMaxTokens = 4096
)

// LoadConfig loads configuration from the user's home directory and the current
// working directory, with the latter taking precedence.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Provider:  DefaultProvider,
		Model:     DefaultModel,
		MaxTokens: DefaultMaxTokens,
	}

	// Load user-level config first
	home, err := os.UserHomeDir()
	if err == nil {
		userConfigPath := filepath.Join(home, ".assistant", "config.yaml")
		if _, err := os.Stat(userConfigPath); err == nil {
			if err := loadFromFile(userConfigPath, cfg); err != nil {
				return nil, errors.Wrapf(err, "error loading user config")
			}
		}
	}

	// Load project-level config, overriding user-level
	wd, err := os.Getwd()
	if err != nil {
		return nil, errors.Wrapf(err, "could not get working directory")
	}
	projectConfigPath := filepath.Join(wd, ".assistant", "config.yaml")
	if _, err := os.Stat(projectConfigPath); err == nil {
		if err := loadFromFile(projectConfigPath, cfg); err != nil {
			return nil, errors.Wrapf(err, "error loading project config")
		}
	}

	return cfg, nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	// Note: Unmarshal will overwrite fields present in the YAML. This provides
	// a simple merge where project-level config replaces user-level.
	return yaml.Unmarshal(data, cfg)
}

// Validate checks that the config is usable for starting a session.
func (c *Config) Validate() error {
	if c.Server.Command == "" {
		return errors.New("server.command must be set to launch the MCP server")
	}
	if c.Model == "" {
		return errors.New("model must not be empty")
	}
	if c.MaxTokens <= 0 {
		return errors.New("max_tokens must be positive, got %d", c.MaxTokens)
	}
	return nil
}
