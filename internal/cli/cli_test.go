package cli

import (
	"os"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOptions struct {
	InputData     string   `mapstructure:"input_data"`
	SamplingSteps int      `mapstructure:"sampling_steps"`
	StepScale     float64  `mapstructure:"step_scale"`
	UseGPU        bool     `mapstructure:"use_gpu"`
	Seed          *int     `mapstructure:"seed"`
	DBDirs        []string `mapstructure:"db_dir"`
}

func newFakeFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("input_data", "", "")
	fs.Int("sampling_steps", 200, "")
	fs.Float64("step_scale", 1.638, "")
	fs.Bool("use_gpu", true, "")
	fs.Int("seed", 0, "")
	fs.StringSlice("db_dir", nil, "")
	return fs
}

func TestApplyFlagOverrides(t *testing.T) {
	t.Run("Only Changed Flags Are Applied", func(t *testing.T) {
		fs := newFakeFlagSet()
		require.NoError(t, fs.Parse([]string{
			"--input_data=/data/protein.fasta",
			"--step_scale=2.5",
		}))

		opts := fakeOptions{SamplingSteps: 100, StepScale: 1.638, UseGPU: true}
		require.NoError(t, ApplyFlagOverrides(fs, &opts))

		assert.Equal(t, "/data/protein.fasta", opts.InputData)
		assert.InDelta(t, 2.5, opts.StepScale, 1e-9)
		// Untouched flags keep whatever the options already held, so
		// config-file defaults survive.
		assert.Equal(t, 100, opts.SamplingSteps)
		assert.True(t, opts.UseGPU)
		assert.Nil(t, opts.Seed)
	})

	t.Run("Optional Flag Becomes Pointer", func(t *testing.T) {
		fs := newFakeFlagSet()
		require.NoError(t, fs.Parse([]string{"--seed=42"}))

		var opts fakeOptions
		require.NoError(t, ApplyFlagOverrides(fs, &opts))
		require.NotNil(t, opts.Seed)
		assert.Equal(t, 42, *opts.Seed)
	})

	t.Run("Repeatable Flag Keeps Order", func(t *testing.T) {
		fs := newFakeFlagSet()
		require.NoError(t, fs.Parse([]string{
			"--db_dir=/ssd/dbs", "--db_dir=/hdd/dbs",
		}))

		var opts fakeOptions
		require.NoError(t, ApplyFlagOverrides(fs, &opts))
		assert.Equal(t, []string{"/ssd/dbs", "/hdd/dbs"}, opts.DBDirs)
	})

	t.Run("Bool Toggle", func(t *testing.T) {
		fs := newFakeFlagSet()
		require.NoError(t, fs.Parse([]string{"--use_gpu=false"}))

		opts := fakeOptions{UseGPU: true}
		require.NoError(t, ApplyFlagOverrides(fs, &opts))
		assert.False(t, opts.UseGPU)
	})
}

func TestNewLauncher(t *testing.T) {
	oldwd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(oldwd) })

	l, err := NewLauncher(GlobalOptions{
		ConfigPath: DefaultConfigFile, // absent, silently skipped
		Runtime:    "singularity",
	})
	require.NoError(t, err)
	require.NotNil(t, l.Config())
}
