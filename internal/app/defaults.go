package app

import (
	"fmt"
	"os"
	"path/filepath"

	"fim-go/internal/config"
)

// Environment variables that move fim's files away from the home directory.
const (
	EnvConfigPath = "FIM_CONFIG_PATH"
	EnvHome       = "FIM_HOME"
	EnvBaseline   = "FIM_BASELINE"
)

// BaselineFileName is the baseline's name inside the data directory.
const BaselineFileName = "baseline.json"

// Defaults are the paths used by `fim config init` and for locating the
// config file.
type Defaults struct {
	ConfigPath   string
	BaseDir      string
	LogDir       string
	BaselinePath string
}

// GetDefaults resolves the default paths. Each environment variable wins
// over the home directory layout:
//
//	FIM_CONFIG_PATH  config file        (~/.config/fim.toml)
//	FIM_HOME         data directory     (~/.local/share/fim)
//	FIM_BASELINE     live baseline file (<data directory>/baseline.json)
func GetDefaults() (*Defaults, error) {
	var home string
	homeDir := func() (string, error) {
		if home != "" {
			return home, nil
		}
		dir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine home directory: %w", err)
		}
		home = dir
		return home, nil
	}

	d := &Defaults{
		ConfigPath:   os.Getenv(EnvConfigPath),
		BaseDir:      os.Getenv(EnvHome),
		BaselinePath: os.Getenv(EnvBaseline),
	}
	if d.ConfigPath == "" {
		dir, err := homeDir()
		if err != nil {
			return nil, err
		}
		d.ConfigPath = filepath.Join(dir, ".config", "fim.toml")
	}
	if d.BaseDir == "" {
		dir, err := homeDir()
		if err != nil {
			return nil, err
		}
		d.BaseDir = filepath.Join(dir, ".local", "share", "fim")
	}
	if d.BaselinePath == "" {
		d.BaselinePath = filepath.Join(d.BaseDir, BaselineFileName)
	}
	d.LogDir = filepath.Join(d.BaseDir, "log")
	return d, nil
}

// NewConfig builds a fresh config for hostID rooted at the default paths.
func (d *Defaults) NewConfig(hostID string) *config.Config {
	cfg := config.NewConfig(hostID, d.BaseDir)
	cfg.LogDir = d.LogDir
	cfg.Baseline.Path = d.BaselinePath
	return cfg
}
