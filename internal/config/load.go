package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// FileName is the config file looked up in the search paths.
const FileName = "md5skel.yaml"

// EnvConfig names the environment variable that points at a config file.
const EnvConfig = "MD5SKEL_CONFIG"

// Load loads configuration with priority: defaults < file < flags.
// Relative asset paths from a file are resolved against the file's
// directory so a config next to a game install can say "base".
func Load() (*Config, error) {
	cfg := Default()

	configPath := ConfigPath()
	if configPath == "" {
		configPath = findConfigFile()
	}

	if configPath != "" {
		if err := loadFromFile(cfg, configPath); err != nil {
			return nil, fmt.Errorf("loading config from %s: %w", configPath, err)
		}
		cfg.Assets.resolvePaths(filepath.Dir(configPath))
		cfg.Source = configPath
	}

	applyFlags(cfg)

	return cfg, nil
}

// SearchPaths returns the config file candidates in lookup order:
// $MD5SKEL_CONFIG, the working directory, then the user config directory.
func SearchPaths() []string {
	var paths []string
	if env := os.Getenv(EnvConfig); env != "" {
		paths = append(paths, env)
	}
	return append(paths, FileName, filepath.Join(ConfigDir(), FileName))
}

func findConfigFile() string {
	for _, path := range SearchPaths() {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// ConfigDir returns the OS-appropriate config directory.
func ConfigDir() string {
	switch runtime.GOOS {
	case "darwin":
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Application Support", "md5skel")
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "md5skel")
	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "md5skel")
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "md5skel")
	}
}

// loadFromFile merges a YAML file into cfg and validates the result.
// Unknown keys are rejected so a misspelt toggle does not pass silently.
func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return cfg.Validate()
}

// resolvePaths anchors relative search paths at dir.
func (a *AssetsConfig) resolvePaths(dir string) {
	for i, p := range a.Paths {
		if p != "" && !filepath.IsAbs(p) {
			a.Paths[i] = filepath.Join(dir, p)
		}
	}
}
