package config

import "fmt"

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Message)
}

// Defaults returns a Config with sensible defaults applied.
func Defaults() Config {
	return Config{
		Gateway: GatewayConfig{
			Port: 18942,
			Bind: "loopback",
		},
		Logging: LoggingConfig{
			Level: "info",
			Style: "pretty",
		},
	}
}

// Model looks up a model by id across all providers, returning the provider
// name it belongs to.
func (c *Config) Model(modelID string) (providerName string, entry ModelEntry, ok bool) {
	for name, p := range c.Providers {
		for _, m := range p.Models {
			if m.ID == modelID {
				return name, m, true
			}
		}
	}
	return "", ModelEntry{}, false
}

// Personality looks up a personality by id. An empty id resolves to the
// entry marked default, falling back to the first one listed.
func (c *Config) Personality(id string) (PersonalityEntry, bool) {
	if id == "" {
		for _, p := range c.Personalities {
			if p.Default {
				return p, true
			}
		}
		if len(c.Personalities) > 0 {
			return c.Personalities[0], true
		}
		return PersonalityEntry{}, false
	}
	for _, p := range c.Personalities {
		if p.ID == id {
			return p, true
		}
	}
	return PersonalityEntry{}, false
}
