package suite

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/antibyte/minipl/pkg/minipl"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// LoadFromFile reads a suite. Files ending in .toml are TOML, everything
// else is YAML.
func LoadFromFile(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read suite file: %w", err)
	}
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return ParseTOML(data)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML suite.
func Parse(data []byte) (*Suite, error) {
	var s Suite
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse suite YAML: %w", err)
	}
	return &s, s.validate()
}

// ParseTOML decodes and validates a TOML suite.
func ParseTOML(data []byte) (*Suite, error) {
	var s Suite
	if _, err := toml.Decode(string(data), &s); err != nil {
		return nil, fmt.Errorf("parse suite TOML: %w", err)
	}
	return &s, s.validate()
}

func (s *Suite) validate() error {
	if len(s.Cases) == 0 {
		return fmt.Errorf("suite has no cases")
	}
	if s.Defaults.Timeout != "" {
		if _, err := time.ParseDuration(s.Defaults.Timeout); err != nil {
			return fmt.Errorf("invalid default timeout: %w", err)
		}
	}

	seen := make(map[string]bool, len(s.Cases))
	for i, c := range s.Cases {
		if c.ID == "" {
			return fmt.Errorf("case at index %d has no id", i)
		}
		if seen[c.ID] {
			return fmt.Errorf("duplicate case id %q", c.ID)
		}
		seen[c.ID] = true

		if strings.TrimSpace(c.Source) == "" {
			return fmt.Errorf("case %q has no source", c.ID)
		}
		if c.Error != "" {
			if _, ok := minipl.ParseErrorKind(c.Error); !ok {
				return fmt.Errorf("case %q: unknown error kind %q", c.ID, c.Error)
			}
		}
	}
	return nil
}
