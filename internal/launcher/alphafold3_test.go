package launcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildAlphaFold3_JSONInput(t *testing.T) {
	cfg := testConfig(t, nil)
	l, _ := testLauncher(t, cfg, "")

	jsonPath := filepath.Join(t.TempDir(), "fold_input.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte("{}"), 0o644))

	opts := DefaultAlphaFold3Options(cfg)
	opts.SIFPath = dummyImage(t)
	opts.JSONPath = jsonPath
	opts.ModelDir = t.TempDir()
	opts.DBDirs = []string{t.TempDir()}

	launch, err := l.BuildAlphaFold3(opts)
	require.NoError(t, err)

	assert.Equal(t, "python", launch.Invocation.Executable)
	assert.Equal(t, []string{"/app/run_alphafold.py"}, launch.Invocation.Args)

	flags := launch.Invocation.FlagArgs
	assert.Equal(t, "--json_path=/mnt/json_input/fold_input.json", flags[0])
	assert.Contains(t, flags, "--output_dir=/mnt/output")
	assert.Contains(t, flags, "--model_dir=/mnt/models")
	assert.Contains(t, flags, "--db_dir=/mnt/db_0")

	// run_alphafold.py expects every flag explicitly, defaults included.
	assert.Contains(t, flags, "--run_data_pipeline=true")
	assert.Contains(t, flags, "--run_inference=true")
	assert.Contains(t, flags, "--conformer_max_iterations=10000")
	assert.Contains(t, flags, "--max_template_date=2021-09-30")
	assert.Contains(t, flags, "--num_recycles=10")
	assert.Contains(t, flags, "--num_diffusion_samples=5")
	assert.Contains(t, flags, "--flash_attention_implementation=triton")
	assert.Contains(t, flags, "--save_embeddings=false")
	assert.Contains(t, flags, "--force_output_dir=false")
	assert.Contains(t, flags, "--logtostderr")
	// num_seeds is only emitted when set.
	for _, f := range flags {
		assert.NotContains(t, f, "num_seeds")
	}
}

func TestBuildAlphaFold3_InputDirPrecedence(t *testing.T) {
	cfg := testConfig(t, nil)
	l, _ := testLauncher(t, cfg, "")

	inputDir := t.TempDir()
	jsonPath := filepath.Join(inputDir, "fold_input.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte("{}"), 0o644))

	opts := DefaultAlphaFold3Options(cfg)
	opts.SIFPath = dummyImage(t)
	opts.JSONPath = jsonPath
	opts.InputDir = inputDir
	opts.ModelDir = t.TempDir()
	opts.DBDirs = []string{t.TempDir()}

	launch, err := l.BuildAlphaFold3(opts)
	require.NoError(t, err)

	flags := launch.Invocation.FlagArgs
	assert.Equal(t, "--input_dir=/mnt/input_dir", flags[0])
	for _, f := range flags {
		assert.NotContains(t, f, "json_path")
	}
}

func TestBuildAlphaFold3_DBDirOrdering(t *testing.T) {
	cfg := testConfig(t, nil)
	l, _ := testLauncher(t, cfg, "")

	ssd := t.TempDir()
	hdd := t.TempDir()
	opts := DefaultAlphaFold3Options(cfg)
	opts.SIFPath = dummyImage(t)
	opts.InputDir = t.TempDir()
	opts.ModelDir = t.TempDir()
	opts.DBDirs = []string{ssd, hdd}

	launch, err := l.BuildAlphaFold3(opts)
	require.NoError(t, err)

	// Earlier db dirs keep priority: db_0 before db_1, both flags present.
	flags := launch.Invocation.FlagArgs
	var dbFlags []string
	for _, f := range flags {
		if len(f) > 9 && f[:9] == "--db_dir=" {
			dbFlags = append(dbFlags, f)
		}
	}
	assert.Equal(t, []string{"--db_dir=/mnt/db_0", "--db_dir=/mnt/db_1"}, dbFlags)
}

func TestBuildAlphaFold3_NumSeeds(t *testing.T) {
	cfg := testConfig(t, nil)
	l, _ := testLauncher(t, cfg, "")

	seeds := 3
	opts := DefaultAlphaFold3Options(cfg)
	opts.SIFPath = dummyImage(t)
	opts.InputDir = t.TempDir()
	opts.ModelDir = t.TempDir()
	opts.DBDirs = []string{t.TempDir()}
	opts.NumSeeds = &seeds

	launch, err := l.BuildAlphaFold3(opts)
	require.NoError(t, err)
	flags := launch.Invocation.FlagArgs
	assert.Equal(t, "--num_seeds=3", flags[len(flags)-1])
}

func TestBuildAlphaFold3_ConfigurationErrors(t *testing.T) {
	cfg := testConfig(t, nil)
	l, _ := testLauncher(t, cfg, "")

	base := func() AlphaFold3Options {
		opts := DefaultAlphaFold3Options(cfg)
		opts.SIFPath = dummyImage(t)
		opts.InputDir = t.TempDir()
		opts.ModelDir = t.TempDir()
		opts.DBDirs = []string{t.TempDir()}
		return opts
	}

	t.Run("No Input", func(t *testing.T) {
		opts := base()
		opts.InputDir = ""
		_, err := l.BuildAlphaFold3(opts)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "--json_path or --input_dir")
	})

	t.Run("No Model Dir", func(t *testing.T) {
		opts := base()
		opts.ModelDir = ""
		_, err := l.BuildAlphaFold3(opts)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "--model_dir")
	})

	t.Run("No DB Dirs", func(t *testing.T) {
		opts := base()
		opts.DBDirs = nil
		_, err := l.BuildAlphaFold3(opts)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "--db_dir")
	})
}

func TestRunAlphaFold3_CleansUpEmptyDefaultOutput(t *testing.T) {
	cfg := testConfig(t, nil)
	exe := fakeRuntime(t, `exit 1`)
	l, _ := testLauncher(t, cfg, exe)

	opts := DefaultAlphaFold3Options(cfg)
	opts.SIFPath = dummyImage(t)
	opts.InputDir = t.TempDir()
	opts.ModelDir = t.TempDir()
	opts.DBDirs = []string{t.TempDir()}

	err := l.RunAlphaFold3(context.Background(), opts)
	require.Error(t, err)
	// The run created the default output dir, wrote nothing into it, and
	// removed it again on failure.
	assert.NoDirExists(t, cfg.OutputDir("alphafold3"))
}

func TestRunAlphaFold3_KeepsNonDefaultOutputOnFailure(t *testing.T) {
	cfg := testConfig(t, nil)
	exe := fakeRuntime(t, `exit 1`)
	l, _ := testLauncher(t, cfg, exe)

	outDir := filepath.Join(t.TempDir(), "results")
	opts := DefaultAlphaFold3Options(cfg)
	opts.SIFPath = dummyImage(t)
	opts.InputDir = t.TempDir()
	opts.ModelDir = t.TempDir()
	opts.DBDirs = []string{t.TempDir()}
	opts.OutputDir = outDir

	err := l.RunAlphaFold3(context.Background(), opts)
	require.Error(t, err)
	assert.DirExists(t, outDir)
}
