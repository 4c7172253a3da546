package config

import (
	"os"
	"path/filepath"
)

const defaultBaseDir = ".steward"

// Paths holds resolved filesystem paths for steward data.
type Paths struct {
	Base    string // ~/.steward
	Config  string // ~/.steward/config.yaml
	Prompts string // ~/.steward/prompts
	Context string // ~/.steward/context
	Data    string // ~/.steward/data
	Logs    string // ~/.steward/logs
	Store   string // ~/.steward/steward.db
}

// ResolvePaths computes all standard paths from the home directory.
// If STEWARD_HOME is set, it overrides the default base directory.
func ResolvePaths() (Paths, error) {
	base := os.Getenv("STEWARD_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Paths{}, err
		}
		base = filepath.Join(home, defaultBaseDir)
	}

	return Paths{
		Base:    base,
		Config:  filepath.Join(base, "config.yaml"),
		Prompts: filepath.Join(base, "prompts"),
		Context: filepath.Join(base, "context"),
		Data:    filepath.Join(base, "data"),
		Logs:    filepath.Join(base, "logs"),
		Store:   filepath.Join(base, "steward.db"),
	}, nil
}

// EnsureDirs creates all standard directories if they don't exist.
func (p Paths) EnsureDirs() error {
	dirs := []string{p.Base, p.Prompts, p.Context, p.Data, p.Logs}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o700); err != nil {
			return err
		}
	}
	return nil
}
