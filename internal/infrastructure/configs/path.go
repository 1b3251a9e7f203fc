package configs

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/hilthontt/interchange/internal/infrastructure/env"
)

// searchPaths are tried in order when neither --config nor INTERCHANGE_CONFIG is set.
var searchPaths = []string{
	"./config.yaml",
	"./config.yml",
	"/etc/interchange/config.yaml",
	"/app/config.yaml",
}

// DetermineConfigPath resolves the config file from args, then
// INTERCHANGE_CONFIG, then searchPaths. An empty result means run on
// defaults and env overrides alone. An explicit path must exist.
func DetermineConfigPath(args []string) (string, error) {
	fs := flag.NewFlagSet("interchange", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	explicit := fs.String("config", "", "path to config file")
	if err := fs.Parse(args); err != nil && !errors.Is(err, flag.ErrHelp) {
		return "", fmt.Errorf("parse flags: %w", err)
	}

	path := *explicit
	if path == "" {
		path = env.GetString("INTERCHANGE_CONFIG", "")
	}
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return "", fmt.Errorf("config file %s: %w", path, err)
		}
		return path, nil
	}

	for _, candidate := range searchPaths {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", nil
}
