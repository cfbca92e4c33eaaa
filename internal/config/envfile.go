package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// EnvFileCandidates lists the env files LoadEnvFiles tries, in order.
func EnvFileCandidates(explicit, envName string) []string {
	var out []string
	if explicit != "" {
		out = append(out, explicit)
	}
	if envName != "" {
		out = append(out, filepath.Join("data", ".env.xa."+envName))
	}
	return append(out, filepath.Join("data", ".env.xa"), ".env")
}

// LoadEnvFiles applies the first existing candidate file to the process
// environment and returns its path, or "" when none exists. Variables that
// are already set win over the file. An explicit file that does not exist
// is an error.
func LoadEnvFiles(explicit, envName string) (string, error) {
	for _, path := range EnvFileCandidates(explicit, envName) {
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) && path != explicit {
				continue
			}
			return "", fmt.Errorf("env file %s: %w", path, err)
		}
		if err := godotenv.Load(path); err != nil {
			return "", fmt.Errorf("env file %s: %w", path, err)
		}
		return path, nil
	}
	return "", nil
}
