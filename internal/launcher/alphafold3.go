package launcher

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strconv"

	"github.com/epigenomicscode/foldlaunch/internal/config"
	"github.com/epigenomicscode/foldlaunch/pkg/bind"
	"github.com/epigenomicscode/foldlaunch/pkg/singularity"
	"github.com/epigenomicscode/foldlaunch/pkg/toolcmd"
)

const (
	af3ImageEnv      = "ALPHAFOLD3_SIF"
	af3FallbackImage = "/opt/images/alphafold3.sif"
	af3MountRoot     = "/mnt/"
	// af3RunScript is the entrypoint baked into the AlphaFold 3 image.
	af3RunScript = "/app/run_alphafold.py"
)

// AlphaFold3Options are the user-facing options of the alphafold3
// subcommand. Unlike boltz and chai, the wrapped run_alphafold.py expects
// every flag explicitly, so most flags are always emitted.
type AlphaFold3Options struct {
	SIFPath string `mapstructure:"sif_path"`
	// JSONPath is a single prediction input file. Ignored when InputDir is
	// set.
	JSONPath string `mapstructure:"json_path"`
	// InputDir holds multiple JSON input files.
	InputDir       string   `mapstructure:"input_dir"`
	OutputDir      string   `mapstructure:"output_dir"`
	ForceOutputDir bool     `mapstructure:"force_output_dir"`
	ModelDir       string   `mapstructure:"model_dir"`
	DBDirs         []string `mapstructure:"db_dir"`

	UseGPU     bool   `mapstructure:"use_gpu"`
	GPUDevices string `mapstructure:"gpu_devices"`

	RunDataPipeline        bool   `mapstructure:"run_data_pipeline"`
	RunInference           bool   `mapstructure:"run_inference"`
	JackhmmerNCPU          int    `mapstructure:"jackhmmer_n_cpu"`
	NhmmerNCPU             int    `mapstructure:"nhmmer_n_cpu"`
	MaxTemplateDate        string `mapstructure:"max_template_date"`
	ConformerMaxIterations int    `mapstructure:"conformer_max_iterations"`
	NumRecycles            int    `mapstructure:"num_recycles"`
	NumDiffusionSamples    int    `mapstructure:"num_diffusion_samples"`
	NumSeeds               *int   `mapstructure:"num_seeds"`
	FlashAttention         string `mapstructure:"flash_attention_implementation"`
	SaveEmbeddings         bool   `mapstructure:"save_embeddings"`
}

// DefaultAlphaFold3Options returns the built-in defaults. The hmmer CPU
// counts default to the host CPU count capped at 8, matching what the
// data pipeline can usefully consume.
func DefaultAlphaFold3Options(cfg *config.Config) AlphaFold3Options {
	nCPU := min(runtime.NumCPU(), 8)
	return AlphaFold3Options{
		OutputDir:              cfg.OutputDir("alphafold3"),
		UseGPU:                 true,
		GPUDevices:             "all",
		RunDataPipeline:        true,
		RunInference:           true,
		JackhmmerNCPU:          nCPU,
		NhmmerNCPU:             nCPU,
		MaxTemplateDate:        "2021-09-30",
		ConformerMaxIterations: 10000,
		NumRecycles:            10,
		NumDiffusionSamples:    5,
		FlashAttention:         "triton",
	}
}

// af3Table covers the always-emitted portion of the run_alphafold.py
// command line. Order matches the wrapped script's documented invocation.
var af3Table = toolcmd.Table{
	{Name: "run_data_pipeline", Kind: toolcmd.Bool, Default: true, On: "--run_data_pipeline=true", Off: "--run_data_pipeline=false"},
	{Name: "run_inference", Kind: toolcmd.Bool, Default: true, On: "--run_inference=true", Off: "--run_inference=false"},
	{Name: "conformer_max_iterations", Kind: toolcmd.Int, Always: true},
	{Name: "jackhmmer_n_cpu", Kind: toolcmd.Int, Always: true},
	{Name: "nhmmer_n_cpu", Kind: toolcmd.Int, Always: true},
	{Name: "max_template_date", Kind: toolcmd.String, Always: true},
	{Name: "num_recycles", Kind: toolcmd.Int, Always: true},
	{Name: "num_diffusion_samples", Kind: toolcmd.Int, Always: true},
	{Name: "flash_attention_implementation", Kind: toolcmd.Enum, Always: true},
	{Name: "save_embeddings", Kind: toolcmd.Bool, Default: false, On: "--save_embeddings=true", Off: "--save_embeddings=false"},
	{Name: "force_output_dir", Kind: toolcmd.Bool, Default: false, On: "--force_output_dir=true", Off: "--force_output_dir=false"},
}

// BuildAlphaFold3 resolves binds and assembles the run_alphafold.py
// invocation. db_dir order is preserved: earlier directories win when a
// database exists in several of them.
func (l *Launcher) BuildAlphaFold3(opts AlphaFold3Options) (*Launch, error) {
	img, err := singularity.Load(l.cfg.Image("alphafold3", opts.SIFPath, af3ImageEnv, af3FallbackImage))
	if err != nil {
		return nil, err
	}

	if opts.JSONPath == "" && opts.InputDir == "" {
		return nil, fmt.Errorf("either --json_path or --input_dir must be specified")
	}
	if opts.JSONPath != "" && opts.InputDir != "" {
		l.logger.Warn("--input_dir specified, ignoring --json_path")
	}
	if opts.ModelDir == "" {
		return nil, fmt.Errorf("missing required flag: --model_dir")
	}
	if len(opts.DBDirs) == 0 {
		return nil, fmt.Errorf("missing required flag: --db_dir (repeatable)")
	}

	resolver := bind.NewResolver(af3MountRoot, bind.WithLogger(l.logger))
	var binds bind.Set
	var pathArgs []string

	if opts.InputDir != "" {
		spec, containerInput, err := resolver.Resolve("input_dir", opts.InputDir, true, false)
		if err != nil {
			return nil, err
		}
		binds.Add(spec)
		pathArgs = append(pathArgs, "--input_dir="+containerInput)
	} else {
		spec, containerJSON, err := resolver.Resolve("json_input", opts.JSONPath, false, false)
		if err != nil {
			return nil, err
		}
		binds.Add(spec)
		pathArgs = append(pathArgs, "--json_path="+containerJSON)
	}

	spec, containerOut, err := resolver.Resolve("output", opts.OutputDir, true, false)
	if err != nil {
		return nil, err
	}
	binds.Add(spec)
	pathArgs = append(pathArgs, "--output_dir="+containerOut)

	spec, containerModels, err := resolver.Resolve("models", opts.ModelDir, true, false)
	if err != nil {
		return nil, err
	}
	binds.Add(spec)
	pathArgs = append(pathArgs, "--model_dir="+containerModels)

	for i, dbDir := range opts.DBDirs {
		spec, containerDB, err := resolver.Resolve(fmt.Sprintf("db_%d", i), dbDir, true, false)
		if err != nil {
			return nil, err
		}
		binds.Add(spec)
		pathArgs = append(pathArgs, "--db_dir="+containerDB)
	}

	spec, _, err = resolver.Resolve("tmp", l.cfg.TmpDir, true, false)
	if err != nil {
		return nil, err
	}
	binds.Add(spec)

	values := map[string]any{
		"run_data_pipeline":              opts.RunDataPipeline,
		"run_inference":                  opts.RunInference,
		"conformer_max_iterations":       opts.ConformerMaxIterations,
		"jackhmmer_n_cpu":                opts.JackhmmerNCPU,
		"nhmmer_n_cpu":                   opts.NhmmerNCPU,
		"max_template_date":              opts.MaxTemplateDate,
		"num_recycles":                   opts.NumRecycles,
		"num_diffusion_samples":          opts.NumDiffusionSamples,
		"flash_attention_implementation": opts.FlashAttention,
		"save_embeddings":                opts.SaveEmbeddings,
		"force_output_dir":               opts.ForceOutputDir,
	}
	flagArgs, err := af3Table.Assemble(values)
	if err != nil {
		return nil, err
	}
	flagArgs = append(flagArgs, "--logtostderr")
	if opts.NumSeeds != nil {
		flagArgs = append(flagArgs, "--num_seeds="+strconv.Itoa(*opts.NumSeeds))
	}

	return &Launch{
		Tool:  "alphafold3",
		Image: img,
		GPU:   opts.UseGPU,
		Invocation: &toolcmd.Invocation{
			Executable: "python",
			Args:       []string{af3RunScript},
			FlagArgs:   append(pathArgs, flagArgs...),
			Binds:      binds,
			Env: map[string]string{
				"NVIDIA_VISIBLE_DEVICES": opts.GPUDevices,
			},
		},
	}, nil
}

// RunAlphaFold3 builds and executes an AlphaFold 3 prediction. On failure
// the default output directory is removed again if this run created it and
// nothing was written, a best-effort courtesy the other tools do not need.
func (l *Launcher) RunAlphaFold3(ctx context.Context, opts AlphaFold3Options) error {
	launch, err := l.BuildAlphaFold3(opts)
	if err != nil {
		return err
	}
	if err := l.Run(ctx, launch); err != nil {
		l.cleanupDefaultOutput(opts.OutputDir)
		return err
	}
	return nil
}

func (l *Launcher) cleanupDefaultOutput(outputDir string) {
	if outputDir != l.cfg.OutputDir("alphafold3") {
		return
	}
	entries, err := os.ReadDir(outputDir)
	if err != nil || len(entries) > 0 {
		return
	}
	if err := os.Remove(outputDir); err != nil {
		l.logger.Warn("could not remove empty default output directory", "dir", outputDir, "error", err)
		return
	}
	l.logger.Info("removed empty default output directory", "dir", outputDir)
}
