package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEnv builds an environment lookup from a map.
func fakeEnv(vars map[string]string) func(string) (string, bool) {
	return func(name string) (string, bool) {
		v, ok := vars[name]
		return v, ok
	}
}

func TestLoad_TempDirPrecedence(t *testing.T) {
	t.Run("TMP Wins", func(t *testing.T) {
		cfg, err := Load("", WithEnviron(fakeEnv(map[string]string{
			"TMP":    "/scratch/tmp",
			"TMPDIR": "/other",
		})), WithWorkDir("/work"))
		require.NoError(t, err)
		assert.Equal(t, "/scratch/tmp", cfg.TmpDir)
	})

	t.Run("TMPDIR Fallback", func(t *testing.T) {
		cfg, err := Load("", WithEnviron(fakeEnv(map[string]string{
			"TMPDIR": "/other",
		})), WithWorkDir("/work"))
		require.NoError(t, err)
		assert.Equal(t, "/other", cfg.TmpDir)
	})

	t.Run("Default /tmp", func(t *testing.T) {
		cfg, err := Load("", WithEnviron(fakeEnv(nil)), WithWorkDir("/work"))
		require.NoError(t, err)
		assert.Equal(t, "/tmp", cfg.TmpDir)
	})
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "foldlaunch.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
tools:
  boltz:
    image: /images/boltz.sif
    cache: /var/cache/boltz
    defaults:
      sampling_steps: 100
      step_scale: 1.2
`), 0o644))

	cfg, err := Load(path, WithEnviron(fakeEnv(nil)), WithWorkDir(dir))
	require.NoError(t, err)

	boltz, ok := cfg.Tools["boltz"]
	require.True(t, ok)
	assert.Equal(t, "/images/boltz.sif", boltz.Image)
	assert.Equal(t, "/var/cache/boltz", boltz.Cache)
}

func TestLoad_ConfigFileErrors(t *testing.T) {
	t.Run("Missing File Is Fine", func(t *testing.T) {
		cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"),
			WithEnviron(fakeEnv(nil)), WithWorkDir("/work"))
		require.NoError(t, err)
		assert.Empty(t, cfg.Tools)
	})

	t.Run("Malformed YAML", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("tools: ["), 0o644))
		_, err := Load(path, WithEnviron(fakeEnv(nil)), WithWorkDir("/work"))
		require.Error(t, err)
	})
}

func TestImageResolution(t *testing.T) {
	env := map[string]string{"BOLTZ_SIF": "/env/boltz.sif"}
	cfg, err := Load("", WithEnviron(fakeEnv(env)), WithWorkDir("/work"))
	require.NoError(t, err)
	cfg.Tools["boltz"] = ToolConfig{Image: "/file/boltz.sif"}

	t.Run("Flag Wins", func(t *testing.T) {
		assert.Equal(t, "/flag/boltz.sif",
			cfg.Image("boltz", "/flag/boltz.sif", "BOLTZ_SIF", "/fallback.sif"))
	})

	t.Run("Env Over Config File", func(t *testing.T) {
		assert.Equal(t, "/env/boltz.sif",
			cfg.Image("boltz", "", "BOLTZ_SIF", "/fallback.sif"))
	})

	t.Run("Config File Over Fallback", func(t *testing.T) {
		assert.Equal(t, "/file/boltz.sif",
			cfg.Image("boltz", "", "OTHER_SIF", "/fallback.sif"))
	})

	t.Run("Fallback Last", func(t *testing.T) {
		assert.Equal(t, "/fallback.sif",
			cfg.Image("chailab", "", "OTHER_SIF", "/fallback.sif"))
	})
}

func TestCacheDirResolution(t *testing.T) {
	cfg, err := Load("", WithEnviron(fakeEnv(map[string]string{
		"BOLTZ_CACHE": "/env/cache",
	})), WithWorkDir("/work"))
	require.NoError(t, err)

	assert.Equal(t, "/flag/cache", cfg.CacheDir("boltz", "/flag/cache", "BOLTZ_CACHE", "/home/.boltz"))
	assert.Equal(t, "/env/cache", cfg.CacheDir("boltz", "", "BOLTZ_CACHE", "/home/.boltz"))
	assert.Equal(t, "/home/.boltz", cfg.CacheDir("boltz", "", "OTHER_CACHE", "/home/.boltz"))
}

func TestOutputDir(t *testing.T) {
	cfg, err := Load("", WithEnviron(fakeEnv(nil)), WithWorkDir("/work"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/work", "boltz_output"), cfg.OutputDir("boltz"))
}

func TestApplyDefaults(t *testing.T) {
	type opts struct {
		SamplingSteps int     `mapstructure:"sampling_steps"`
		StepScale     float64 `mapstructure:"step_scale"`
		OutDir        string  `mapstructure:"out_dir"`
	}

	cfg, err := Load("", WithEnviron(fakeEnv(nil)), WithWorkDir("/work"))
	require.NoError(t, err)
	cfg.Tools["boltz"] = ToolConfig{Defaults: map[string]any{
		"sampling_steps": 100,
		"step_scale":     "1.2", // weakly typed on purpose
	}}

	o := opts{SamplingSteps: 200, StepScale: 1.638, OutDir: "/keep"}
	require.NoError(t, cfg.ApplyDefaults("boltz", &o))

	assert.Equal(t, 100, o.SamplingSteps)
	assert.InDelta(t, 1.2, o.StepScale, 1e-9)
	// Untouched fields keep their built-in defaults.
	assert.Equal(t, "/keep", o.OutDir)
}
