package config

import (
	"os"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/subosito/gotenv"
)

// DotEnvTryLoad loads the env file at path into the process environment.
// Variables already present in the environment win. A missing file is not an error.
func DotEnvTryLoad(path string) error {
	if path == "" {
		return nil
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			log.Debug().Str("path", path).Msg("No env file found, skipping")
			return nil
		}
		return errors.Wrapf(err, "failed to stat env file %s", path)
	}

	if err := gotenv.Load(path); err != nil {
		return errors.Wrapf(err, "failed to load env file %s", path)
	}

	log.Debug().Str("path", path).Msg("Loaded env file")
	return nil
}
