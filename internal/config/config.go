// Package config holds the startup configuration. Everything is read once
// from the environment; there is no hot reload.
package config

import (
	"fmt"
	"net/url"

	"github.com/caarlos0/env/v6"
)

const (
	sandboxSubmitURL    = "https://workersandbox.mturk.com/mturk/externalSubmit"
	productionSubmitURL = "https://www.mturk.com/mturk/externalSubmit"
	sandboxEndpoint     = "https://mturk-requester-sandbox.us-east-1.amazonaws.com"
)

type Config struct {
	// Sandbox keeps all marketplace traffic in the MTurk sandbox. Defaults
	// to true so nobody spends real money by accident.
	Sandbox bool `env:"MTURK_SANDBOX" envDefault:"true"`

	Region  string `env:"AWS_REGION" envDefault:"us-east-1"`
	Profile string `env:"AWS_PROFILE" envDefault:"mcp-human"`

	// FormURL is the externally hosted page workers fill in. The question is
	// appended as a query parameter.
	FormURL     string `env:"FORM_URL" envDefault:"https://syskall.com/mcp-human/"`
	CallbackURL string `env:"CALLBACK_URL"`

	// DefaultReward is the reward in USD used when a call omits one.
	DefaultReward string `env:"DEFAULT_REWARD" envDefault:"0.05"`

	// LogFile mirrors logs to a file when set; meant for development.
	LogFile string `env:"MCP_HUMAN_LOGGING"`
}

// Load parses the configuration from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	if _, err := url.Parse(cfg.FormURL); err != nil {
		return Config{}, fmt.Errorf("invalid FORM_URL %q: %w", cfg.FormURL, err)
	}
	return cfg, nil
}

// SubmitURL is the MTurk externalSubmit endpoint the worker form posts back
// to, picked by environment.
func (c Config) SubmitURL() string {
	if c.Sandbox {
		return sandboxSubmitURL
	}
	return productionSubmitURL
}

// RequesterEndpoint is the endpoint override for the requester API; empty
// means the SDK default (production).
func (c Config) RequesterEndpoint() string {
	if c.Sandbox {
		return sandboxEndpoint
	}
	return ""
}
