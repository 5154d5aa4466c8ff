package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads variables from the given dotenv files into the process
// environment. Variables that are already set win over the files, and missing
// files are skipped so a checked-in example env file stays optional.
func LoadDotEnv(paths ...string) error {
	for _, path := range paths {
		if path == "" {
			continue
		}

		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}

			return fmt.Errorf("load dotenv %s: %w", path, err)
		}
	}

	return nil
}
