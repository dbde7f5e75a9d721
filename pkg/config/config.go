// Package config loads the TOML configuration of the demo client:
// account host, authentication and the agent definition.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/mkessler/cortexagent/pkg/cortex"
)

type ToolConfig struct {
	Name string `toml:"name"`
	Type string `toml:"type"`
}

type ResourceConfig struct {
	Name string `toml:"name"`
	Type string `toml:"type"`

	SemanticModelFile string `toml:"semantic_model_file"`
	Database          string `toml:"database"`
	Schema            string `toml:"schema"`
	Stage             string `toml:"stage"`
	File              string `toml:"file"`

	ServiceName string `toml:"service_name"`
	MaxResults  int    `toml:"max_results"`
	TitleColumn string `toml:"title_column"`
	IDColumn    string `toml:"id_column"`
}

type Config struct {
	AccountHost    string `toml:"account_host"`
	AccessToken    string `toml:"access_token"`
	AccessTokenEnv string `toml:"access_token_env"`

	Model               string `toml:"model"`
	ToolChoice          string `toml:"tool_choice"`
	ResponseInstruction string `toml:"response_instruction"`

	LogLevel string `toml:"loglevel"`

	Tools     []ToolConfig     `toml:"tools"`
	Resources []ResourceConfig `toml:"tool_resources"`
}

func DefaultConfig() *Config {
	return &Config{
		AccessTokenEnv: "CORTEX_ACCESS_TOKEN",
		Model:          cortex.DefaultModel,
		ToolChoice:     cortex.ToolChoiceAuto,
		LogLevel:       "info",
	}
}

// SlogLevel parses the configured log level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	var level slog.Level
	if c.LogLevel == "" {
		return slog.LevelInfo
	}
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// Connection builds the connection, resolving the access token from
// the environment when access_token_env is set.
func (c *Config) Connection() (*cortex.Connection, error) {
	if c.AccountHost == "" {
		return nil, fmt.Errorf("account_host must be specified")
	}
	token := c.AccessToken
	if token == "" && c.AccessTokenEnv != "" {
		token = os.Getenv(c.AccessTokenEnv)
	}
	if token == "" {
		return nil, fmt.Errorf("either access_token or env variable %s must be set", c.AccessTokenEnv)
	}
	return &cortex.Connection{
		AccountHost: c.AccountHost,
		AccessToken: token,
	}, nil
}

// Configuration builds the agent configuration from the declared
// tools and resources.
func (c *Config) Configuration() (*cortex.Configuration, error) {
	cfg, err := cortex.NewConfiguration(c.Model)
	if err != nil {
		return nil, err
	}
	if c.ToolChoice != "" {
		if err := cfg.SetToolChoice(c.ToolChoice); err != nil {
			return nil, err
		}
	}
	cfg.SetResponseInstruction(c.ResponseInstruction)
	for _, tc := range c.Tools {
		tool, err := cortex.NewTool(tc.Name, tc.Type)
		if err != nil {
			return nil, err
		}
		if err := cfg.AddTool(tool); err != nil {
			return nil, err
		}
	}
	for _, rc := range c.Resources {
		var resource cortex.Resource
		switch rc.Type {
		case cortex.ToolTypeAnalyst:
			resource, err = cortex.NewAnalystResource(cortex.AnalystResource{
				ResourceName:      rc.Name,
				SemanticModelFile: rc.SemanticModelFile,
				Database:          rc.Database,
				Schema:            rc.Schema,
				Stage:             rc.Stage,
				File:              rc.File,
			})
		case cortex.ToolTypeSearch:
			resource, err = cortex.NewSearchResource(cortex.SearchResource{
				ResourceName: rc.Name,
				Database:     rc.Database,
				Schema:       rc.Schema,
				ServiceName:  rc.ServiceName,
				MaxResults:   rc.MaxResults,
				TitleColumn:  rc.TitleColumn,
				IDColumn:     rc.IDColumn,
			})
		default:
			return nil, fmt.Errorf("unknown tool resource type %q for %q", rc.Type, rc.Name)
		}
		if err != nil {
			return nil, err
		}
		if err := cfg.AddToolResource(resource); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// ParseConfig parses TOML config data on top of the defaults.
func ParseConfig(data []byte) (*Config, error) {
	config := *DefaultConfig()
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, err
	}
	return &config, nil
}

// LoadConfig reads the user config file, writing the defaults on
// first run.
func LoadConfig() (*Config, error) {
	userConfigDir, err := os.UserConfigDir()
	if err != nil {
		return nil, err
	}
	configDir := filepath.Join(userConfigDir, "cortexagent")
	if _, err := os.Stat(configDir); err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		if err := os.MkdirAll(configDir, 0755); err != nil {
			return nil, err
		}
	}

	configFile := filepath.Join(configDir, "config.toml")
	data, err := os.ReadFile(configFile)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		config := DefaultConfig()
		encoded, err := toml.Marshal(config)
		if err != nil {
			return nil, err
		}
		if err := os.WriteFile(configFile, encoded, 0644); err != nil {
			return nil, err
		}
		return config, nil
	}
	return ParseConfig(data)
}
