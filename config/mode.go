package config

import (
	"errors"
	"io/fs"

	"github.com/joho/godotenv"
)

const (
	EnvProduction  = "production"
	EnvDevelopment = "development"
)

func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// loadDotEnv loads a .env file into the process environment when present.
// A missing file is not an error.
func loadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}
