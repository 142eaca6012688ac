package config

import (
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

const (
	AppName     = "pricepulse"
	EnvFileName = "config.env"
)

// LoadEnvFile loads environment variables from the config file in the user's
// config directory. Errors are ignored since the file may not exist.
func LoadEnvFile() {
	configBase, err := os.UserConfigDir()
	if err != nil {
		return
	}
	configPath := filepath.Join(configBase, AppName, EnvFileName)
	_ = godotenv.Load(configPath)
}

// DataDir returns the directory for the session database, creating it if
// needed. Falls back to the current directory when no config dir exists.
func DataDir() string {
	configBase, err := os.UserConfigDir()
	if err != nil {
		return "."
	}
	dir := filepath.Join(configBase, AppName)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "."
	}
	return dir
}
