package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Settings holds persistent CLI defaults loaded from a config file.
type Settings struct {
	Root     string        `yaml:"root"`     // snippet tree root
	Workers  int           `yaml:"workers"`  // parallel execution workers
	Budget   int           `yaml:"budget"`   // concurrent remote API calls
	Timeout  time.Duration `yaml:"timeout"`  // per-snippet timeout
	Deadline time.Duration `yaml:"deadline"` // whole-run deadline
	Retries  int           `yaml:"retries"`  // retry bound for transient failures

	// Secrets maps placeholder names found in snippet bodies to the
	// environment variables that carry their values, e.g. apiKey: CO_API_KEY.
	Secrets map[string]string `yaml:"secrets,omitempty"`

	// Ignore lists snippet-ID glob patterns excluded from execution.
	// Matching snippets are reported as SKIPPED, never dropped.
	Ignore []string `yaml:"ignore,omitempty"`
}

// Defaults used when neither flag nor config provides a value.
const (
	DefaultWorkers  = 4
	DefaultBudget   = 2
	DefaultTimeout  = 2 * time.Minute
	DefaultDeadline = 15 * time.Minute
	DefaultRetries  = 2
)

// LoadSettings reads a YAML config file into Settings.
// If the file does not exist, it returns zero-value Settings and nil error.
func LoadSettings(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Settings{}, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	var s Settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := s.validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}

	return &s, nil
}

func (s *Settings) validate() error {
	if s.Workers < 0 {
		return fmt.Errorf("workers must be >= 0, got %d", s.Workers)
	}
	if s.Budget < 0 {
		return fmt.Errorf("budget must be >= 0, got %d", s.Budget)
	}
	if s.Retries < 0 {
		return fmt.Errorf("retries must be >= 0, got %d", s.Retries)
	}
	return nil
}

// ResolveSecrets reads the configured environment variables and returns the
// placeholder-name → value map. Unset variables are omitted so callers can
// skip snippets whose secrets are unavailable instead of running them with
// a literal placeholder.
func (s *Settings) ResolveSecrets() map[string]string {
	out := make(map[string]string, len(s.Secrets))
	for name, envKey := range s.Secrets {
		if v := os.Getenv(envKey); v != "" {
			out[name] = v
		}
	}
	return out
}
