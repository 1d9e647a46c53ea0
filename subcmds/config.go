// Copyright (c) 2023 BVK Chaitanya

package subcmds

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/bvk/candlebot/config"
	"github.com/bvk/candlebot/envfile"
)

// ConfigFlags holds the flags shared by the commands that talk to the
// exchange directly.
type ConfigFlags struct {
	dataDir string

	searchCurrentDir bool

	envOverwrite bool
}

func (f *ConfigFlags) SetFlags(fset *flag.FlagSet) {
	fset.StringVar(&f.dataDir, "data-dir", "", "path to the data directory (default=$HOME/.candlebot or CANDLEBOT_DATA_DIR value)")
	fset.BoolVar(&f.searchCurrentDir, "search-env-file", false, "when true, env file is searched from the current directory and its parents")
	fset.BoolVar(&f.envOverwrite, "env-overwrite", false, "when true, env file values replace the variables already set in the environment")
}

// Config loads the env file, if any, and returns the configuration from the
// environment. Data directory is created if it doesn't exist.
func (f *ConfigFlags) Config() (*config.Config, error) {
	var opts []envfile.Option
	if f.searchCurrentDir {
		opts = append(opts, envfile.SearchCurrentDir(true))
	}
	if f.envOverwrite {
		opts = append(opts, envfile.OverwriteIfExists(true))
	}
	fpath, err := envfile.UpdateEnv(config.EnvFile, opts...)
	if err != nil {
		return nil, fmt.Errorf("could not load env file: %w", err)
	}
	if fpath != "" {
		slog.Debug("loaded environment variables", "file", fpath)
	}

	cfg, err := config.FromEnv()
	if err != nil {
		return nil, err
	}
	if f.dataDir != "" {
		cfg.DataDir = f.dataDir
	}

	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return nil, fmt.Errorf("could not create data directory %q: %w", cfg.DataDir, err)
	}
	dataDir, err := filepath.Abs(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("could not determine data-dir %q absolute path: %w", cfg.DataDir, err)
	}
	cfg.DataDir = dataDir
	return cfg, nil
}
