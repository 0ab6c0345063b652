// Package cli wires the cobra commands to the launcher: configuration
// loading, logger setup, and flag-to-options decoding shared by the three
// tool subcommands.
package cli

import (
	"fmt"
	"os"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/pflag"

	"github.com/epigenomicscode/foldlaunch/internal/config"
	"github.com/epigenomicscode/foldlaunch/internal/launcher"
	"github.com/epigenomicscode/foldlaunch/internal/logging"
	"github.com/epigenomicscode/foldlaunch/pkg/singularity"
)

// DefaultConfigFile is the config file looked up in the working directory
// when --config is not given.
const DefaultConfigFile = "foldlaunch.yaml"

// GlobalOptions carries the persistent flags shared by every subcommand.
type GlobalOptions struct {
	ConfigPath string
	Runtime    string
	Debug      bool
	NoBanner   bool
}

// NewLauncher builds the fully wired Launcher for one run: config struct
// from env + optional YAML file, stderr logger, container runtime client.
func NewLauncher(g GlobalOptions) (*launcher.Launcher, error) {
	// Smart default: only pick up foldlaunch.yaml when it actually exists,
	// an explicit --config that is missing still errors via Load.
	cfgPath := g.ConfigPath
	if cfgPath == DefaultConfigFile {
		if _, err := os.Stat(cfgPath); err != nil {
			cfgPath = ""
		}
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}

	logger := logging.New(g.Debug)
	client := singularity.NewClient(
		singularity.WithExecutable(g.Runtime),
		singularity.WithLogger(logger),
	)

	return launcher.New(cfg,
		launcher.WithClient(client),
		launcher.WithLogger(logger),
		launcher.WithBanner(!g.NoBanner),
	), nil
}

// ApplyFlagOverrides copies every flag the user explicitly set into the
// tool options struct, keyed by flag name via mapstructure tags. Flags
// left at their cobra default are skipped so config-file defaults survive.
func ApplyFlagOverrides(fs *pflag.FlagSet, target any) error {
	changed := map[string]any{}
	fs.Visit(func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			changed[f.Name] = sv.GetSlice()
			return
		}
		changed[f.Name] = f.Value.String()
	})
	if len(changed) == 0 {
		return nil
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("building flag decoder: %w", err)
	}
	if err := dec.Decode(changed); err != nil {
		return fmt.Errorf("applying flag overrides: %w", err)
	}
	return nil
}
