package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	maxConfigSize = 1 << 20 // 1MB max settings file size
	maxPathLen    = 4096
)

func validateConfigPath(path string) error {
	if path == "" {
		return fmt.Errorf("empty config path")
	}
	if len(path) > maxPathLen {
		return fmt.Errorf("path too long: %d > %d", len(path), maxPathLen)
	}
	if ext := filepath.Ext(path); ext != ".cfg" && ext != ".ini" {
		return fmt.Errorf("only .cfg or .ini settings files allowed: %s", path)
	}
	return nil
}

// safeReadFile reads a settings file after path and size checks
func safeReadFile(path string) ([]byte, error) {
	if err := validateConfigPath(path); err != nil {
		return nil, fmt.Errorf("invalid config path: %w", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("config path is a directory: %s", path)
	}
	if info.Size() > maxConfigSize {
		return nil, fmt.Errorf("config file too large: %d > %d bytes", info.Size(), maxConfigSize)
	}

	return os.ReadFile(path)
}
