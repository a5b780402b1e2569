package main

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/wippyai/wasm-jsapi/engine"
)

// Config is the conform command configuration. Values come from an optional
// YAML file, then CONFORM_* environment variables, then flags.
type Config struct {
	Backend string   `yaml:"backend" envconfig:"BACKEND" validate:"oneof=native wazero all"`
	Format  string   `yaml:"format" envconfig:"FORMAT" validate:"oneof=text json yaml"`
	Run     string   `yaml:"run" envconfig:"RUN"`
	Metrics string   `yaml:"metrics" envconfig:"METRICS"`
	Suites  []string `yaml:"suites" envconfig:"SUITES" validate:"dive,required"`

	Engine engine.Config `yaml:"engine" envconfig:"ENGINE"`

	Trace   bool `yaml:"trace" envconfig:"TRACE"`
	Verbose bool `yaml:"verbose" envconfig:"VERBOSE"`
}

func defaultConfig() Config {
	return Config{
		Backend: "all",
		Format:  "text",
		Engine:  engine.Config{EnableThreads: true},
	}
}

// loadConfig reads path when set and applies the environment on top.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := envconfig.Process("conform", &cfg); err != nil {
		return cfg, fmt.Errorf("load config from env: %w", err)
	}
	return cfg, nil
}

func (c Config) validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// backends lists the backend names the run targets.
func (c Config) backends() []string {
	if c.Backend == "all" {
		return engine.Names()
	}
	return []string{c.Backend}
}
