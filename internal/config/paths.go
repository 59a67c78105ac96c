package config

import (
	"os"
	"path/filepath"
)

// MnemoPath returns the root directory for mnemo data.
// It uses $MNEMO_PATH if set, otherwise defaults to ~/.mnemo.
func MnemoPath() string {
	if v := os.Getenv("MNEMO_PATH"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".mnemo")
	}
	return filepath.Join(home, ".mnemo")
}

// ConfigPath returns the path to the mnemo config file.
func ConfigPath() string {
	return filepath.Join(MnemoPath(), "config.jsonc")
}

// DotenvPath returns the path to the mnemo .env file.
func DotenvPath() string {
	return filepath.Join(MnemoPath(), ".env")
}
