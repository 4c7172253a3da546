package config

import (
	"fmt"
	"slices"
)

// ValidationIssue describes a problem with a config value.
type ValidationIssue struct {
	Path    string
	Message string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// Validate checks a Config for issues. Returns nil if valid.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue

	if cfg.Gateway.Port < 0 || cfg.Gateway.Port > 65535 {
		issues = append(issues, ValidationIssue{
			Path:    "gateway.port",
			Message: fmt.Sprintf("port must be 0-65535, got %d", cfg.Gateway.Port),
		})
	}

	validBinds := []string{"loopback", "lan"}
	if cfg.Gateway.Bind != "" && !slices.Contains(validBinds, cfg.Gateway.Bind) {
		issues = append(issues, ValidationIssue{
			Path:    "gateway.bind",
			Message: fmt.Sprintf("must be one of %v, got %q", validBinds, cfg.Gateway.Bind),
		})
	}

	validLogLevels := []string{"silent", "fatal", "error", "warn", "info", "debug", "trace"}
	if cfg.Logging.Level != "" && !slices.Contains(validLogLevels, cfg.Logging.Level) {
		issues = append(issues, ValidationIssue{
			Path:    "logging.level",
			Message: fmt.Sprintf("must be one of %v, got %q", validLogLevels, cfg.Logging.Level),
		})
	}

	validStyles := []string{"pretty", "json"}
	if cfg.Logging.Style != "" && !slices.Contains(validStyles, cfg.Logging.Style) {
		issues = append(issues, ValidationIssue{
			Path:    "logging.style",
			Message: fmt.Sprintf("must be one of %v, got %q", validStyles, cfg.Logging.Style),
		})
	}

	validAPIs := []string{"openai-completions", "google-generative-ai"}
	for name, p := range cfg.Providers {
		if p.API != "" && !slices.Contains(validAPIs, p.API) {
			issues = append(issues, ValidationIssue{
				Path:    fmt.Sprintf("providers.%s.api", name),
				Message: fmt.Sprintf("must be one of %v, got %q", validAPIs, p.API),
			})
		}
		for i, m := range p.Models {
			if m.ID == "" {
				issues = append(issues, ValidationIssue{
					Path:    fmt.Sprintf("providers.%s.models[%d].id", name, i),
					Message: "model id is required",
				})
			}
		}
	}

	seen := map[string]bool{}
	defaults := 0
	for i, p := range cfg.Personalities {
		if p.ID == "" {
			issues = append(issues, ValidationIssue{
				Path:    fmt.Sprintf("personalities[%d].id", i),
				Message: "personality id is required",
			})
			continue
		}
		if seen[p.ID] {
			issues = append(issues, ValidationIssue{
				Path:    fmt.Sprintf("personalities[%d].id", i),
				Message: fmt.Sprintf("duplicate personality id %q", p.ID),
			})
		}
		seen[p.ID] = true
		if p.Default {
			defaults++
		}
		if p.Model != "" {
			if _, _, ok := cfg.Model(p.Model); !ok {
				issues = append(issues, ValidationIssue{
					Path:    fmt.Sprintf("personalities[%d].model", i),
					Message: fmt.Sprintf("unknown model %q", p.Model),
				})
			}
		}
	}
	if defaults > 1 {
		issues = append(issues, ValidationIssue{
			Path:    "personalities",
			Message: fmt.Sprintf("%d personalities marked default, want at most 1", defaults),
		})
	}

	if cfg.Defaults.Model != "" {
		if _, _, ok := cfg.Model(cfg.Defaults.Model); !ok {
			issues = append(issues, ValidationIssue{
				Path:    "defaults.model",
				Message: fmt.Sprintf("unknown model %q", cfg.Defaults.Model),
			})
		}
	}

	return issues
}
