package config

import (
	"os"

	"github.com/pkg/errors"
	"go.uber.org/fx"
)

var Module = fx.Module("config", fx.Provide(
	// Function attempts to locate and load strata.toml from the working
	// directory or any parent. Returns nil if no config exists, allowing
	// commands that don't require config (like init, help, version) to
	// function properly.
	func() (*Config, error) {
		wd, err := os.Getwd()
		if err != nil {
			return nil, errors.Wrap(err, "resolving working directory")
		}

		path, err := Find(wd)
		if errors.Is(err, ErrNotFound) {
			// Return nil config for commands that don't need it
			return nil, nil
		} else if err != nil {
			return nil, err
		}

		return LoadFile(path)
	},
))
