// Package config loads sgptd's startup configuration: built-in defaults,
// overlaid by an optional YAML file (LoadFile), overlaid by CLI flags (in
// cmd/sgptd). Once startup has applied the flags, the Config is never
// mutated.
package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds every tunable sgptd needs at startup.
type Config struct {
	RequireConfirmation bool   `yaml:"require_confirmation"`
	QuietTransport      bool   `yaml:"quiet_transport"`
	ListenAddr          string `yaml:"listen_addr"`
	RootPath            string `yaml:"root_path"`
	AutoAttach          bool   `yaml:"auto_attach"`
	Shell               string `yaml:"shell"`
}

// Default returns sgptd's built-in defaults, in effect before any file or
// flag overrides them.
func Default() Config {
	return Config{
		RequireConfirmation: true,
		QuietTransport:      true,
		ListenAddr:          ":11000",
		RootPath:            "/gpt-shell",
		AutoAttach:          true,
		Shell:               "/bin/sh",
	}
}

// file is the on-disk shape of the YAML config file. Every field is a
// pointer so we can tell "absent" apart from "explicitly false/zero" and
// only overlay fields the file actually sets.
type file struct {
	RequireConfirmation *bool   `yaml:"require_confirmation"`
	QuietTransport      *bool   `yaml:"quiet_transport"`
	ListenAddr          *string `yaml:"listen_addr"`
	RootPath            *string `yaml:"root_path"`
	AutoAttach          *bool   `yaml:"auto_attach"`
	Shell               *string `yaml:"shell"`
}

// LoadFile reads and overlays a YAML config file onto cfg. A missing file
// is not an error — it just means no overlay happens.
func LoadFile(cfg Config, path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}

	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return cfg, err
	}

	if f.RequireConfirmation != nil {
		cfg.RequireConfirmation = *f.RequireConfirmation
	}
	if f.QuietTransport != nil {
		cfg.QuietTransport = *f.QuietTransport
	}
	if f.ListenAddr != nil {
		cfg.ListenAddr = *f.ListenAddr
	}
	if f.RootPath != nil {
		cfg.RootPath = *f.RootPath
	}
	if f.AutoAttach != nil {
		cfg.AutoAttach = *f.AutoAttach
	}
	if f.Shell != nil {
		cfg.Shell = *f.Shell
	}
	return cfg, nil
}

// DefaultPath returns ~/.sgptd/config.yaml, the conventional location
// LoadFile is pointed at when no --config flag overrides it.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".sgptd", "config.yaml")
}
