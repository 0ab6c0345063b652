package launcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/epigenomicscode/foldlaunch/internal/config"
	"github.com/epigenomicscode/foldlaunch/pkg/bind"
	"github.com/epigenomicscode/foldlaunch/pkg/singularity"
	"github.com/epigenomicscode/foldlaunch/pkg/toolcmd"
)

const (
	boltzImageEnv      = "BOLTZ_SIF"
	boltzCacheEnv      = "BOLTZ_CACHE"
	boltzFallbackImage = "/opt/images/boltz.sif"
	// Boltz historically used its own mount root to avoid clashes with
	// paths baked into the image.
	boltzMountRoot = "/mnt_launcher/"
)

// BoltzOptions are the user-facing options of the boltz subcommand.
// Defaults mirror the boltz predict CLI so unchanged values can be
// suppressed from the generated command.
type BoltzOptions struct {
	SIFPath   string `mapstructure:"sif_path"`
	InputData string `mapstructure:"input_data"`
	OutDir    string `mapstructure:"out_dir"`
	CacheDir  string `mapstructure:"boltz_cache_dir"`
	// Checkpoint is an optional model checkpoint file.
	Checkpoint string `mapstructure:"checkpoint"`

	UseGPU     bool   `mapstructure:"use_gpu"`
	GPUDevices string `mapstructure:"gpu_devices"`

	Devices          int     `mapstructure:"devices"`
	Accelerator      string  `mapstructure:"accelerator"`
	RecyclingSteps   int     `mapstructure:"recycling_steps"`
	SamplingSteps    int     `mapstructure:"sampling_steps"`
	DiffusionSamples int     `mapstructure:"diffusion_samples"`
	StepScale        float64 `mapstructure:"step_scale"`
	WriteFullPAE     bool    `mapstructure:"write_full_pae"`
	WriteFullPDE     bool    `mapstructure:"write_full_pde"`
	OutputFormat     string  `mapstructure:"output_format"`
	NumWorkers       int     `mapstructure:"num_workers"`
	Override         bool    `mapstructure:"override"`
	Seed             *int    `mapstructure:"seed"`

	UseMSAServer       bool   `mapstructure:"use_msa_server"`
	MSAServerURL       string `mapstructure:"msa_server_url"`
	MSAPairingStrategy string `mapstructure:"msa_pairing_strategy"`
	Potentials         bool   `mapstructure:"enable_potentials"`
}

// DefaultBoltzOptions returns the built-in defaults, resolved against the
// launcher configuration (cache dir env var, default output dir).
func DefaultBoltzOptions(cfg *config.Config) BoltzOptions {
	home, _ := os.UserHomeDir()
	return BoltzOptions{
		OutDir:             cfg.OutputDir("boltz"),
		CacheDir:           cfg.CacheDir("boltz", "", boltzCacheEnv, filepath.Join(home, ".boltz")),
		UseGPU:             true,
		GPUDevices:         "all",
		Devices:            1,
		Accelerator:        "gpu",
		RecyclingSteps:     3,
		SamplingSteps:      200,
		DiffusionSamples:   1,
		StepScale:          1.638,
		OutputFormat:       "mmcif",
		NumWorkers:         2,
		MSAServerURL:       colabfoldURL,
		MSAPairingStrategy: "greedy",
		Potentials:         true,
	}
}

// boltzTable is the boltz predict flag vocabulary. Boolean flags require
// explicit on/off tokens; scalars are suppressed when equal to the boltz
// built-in default. The MSA flags only apply when the server is enabled.
var boltzTable = toolcmd.Table{
	{Name: "write_full_pae", Kind: toolcmd.Bool, Default: false, On: "--write_full_pae", Off: "--no-write-full-pae"},
	{Name: "write_full_pde", Kind: toolcmd.Bool, Default: false, On: "--write_full_pde", Off: "--no-write-full-pde"},
	{Name: "override", Kind: toolcmd.Bool, Default: false, On: "--override", Off: "--no-override"},
	{Name: "use_msa_server", Kind: toolcmd.Bool, Default: false, On: "--use_msa_server", Off: "--no-use-msa-server"},
	{Name: "potentials", Kind: toolcmd.Bool, Default: true, On: "--potentials", Off: "--no_potentials"},
	{Name: "devices", Kind: toolcmd.Int, Default: 1},
	{Name: "accelerator", Kind: toolcmd.Enum, Default: "gpu"},
	{Name: "recycling_steps", Kind: toolcmd.Int, Default: 3},
	{Name: "sampling_steps", Kind: toolcmd.Int, Default: 200},
	{Name: "diffusion_samples", Kind: toolcmd.Int, Default: 1},
	{Name: "step_scale", Kind: toolcmd.Float, Default: 1.638},
	{Name: "output_format", Kind: toolcmd.Enum, Default: "mmcif"},
	{Name: "num_workers", Kind: toolcmd.Int, Default: 2},
	{Name: "seed", Kind: toolcmd.Int},
	{Name: "msa_server_url", Kind: toolcmd.String, Default: colabfoldURL, Requires: "use_msa_server"},
	{Name: "msa_pairing_strategy", Kind: toolcmd.Enum, Default: "greedy", Requires: "use_msa_server"},
}

// BuildBoltz resolves binds and assembles the boltz predict invocation.
// The image is checked first so a misconfigured image fails before any
// host-side directory is touched.
func (l *Launcher) BuildBoltz(opts BoltzOptions) (*Launch, error) {
	img, err := singularity.Load(l.cfg.Image("boltz", opts.SIFPath, boltzImageEnv, boltzFallbackImage))
	if err != nil {
		return nil, err
	}

	if opts.InputData == "" {
		return nil, fmt.Errorf("missing required flag: --input_data")
	}
	info, err := os.Stat(opts.InputData)
	if err != nil {
		return nil, fmt.Errorf("input data: %w: %s", bind.ErrMissingHostPath, opts.InputData)
	}

	resolver := bind.NewResolver(boltzMountRoot, bind.WithLogger(l.logger))
	var binds bind.Set

	spec, containerInput, err := resolver.Resolve("input_data", opts.InputData, info.IsDir(), true)
	if err != nil {
		return nil, err
	}
	binds.Add(spec)

	spec, containerOut, err := resolver.Resolve("output", opts.OutDir, true, false)
	if err != nil {
		return nil, err
	}
	binds.Add(spec)
	pathArgs := []string{"--out_dir=" + containerOut}

	spec, containerCache, err := resolver.Resolve("boltz_cache", opts.CacheDir, true, false)
	if err != nil {
		return nil, err
	}
	binds.Add(spec)
	pathArgs = append(pathArgs, "--cache="+containerCache)

	if opts.Checkpoint != "" {
		if fi, err := os.Stat(opts.Checkpoint); err != nil || fi.IsDir() {
			return nil, fmt.Errorf("checkpoint: %w: %s", bind.ErrMissingHostPath, opts.Checkpoint)
		}
		spec, containerCkpt, err := resolver.Resolve("checkpoint_file", opts.Checkpoint, false, true)
		if err != nil {
			return nil, err
		}
		binds.Add(spec)
		pathArgs = append(pathArgs, "--checkpoint="+containerCkpt)
	}

	spec, containerTmp, err := resolver.Resolve("tmp", l.cfg.TmpDir, true, false)
	if err != nil {
		return nil, err
	}
	binds.Add(spec)

	values := map[string]any{
		"write_full_pae":       opts.WriteFullPAE,
		"write_full_pde":       opts.WriteFullPDE,
		"override":             opts.Override,
		"use_msa_server":       opts.UseMSAServer,
		"potentials":           opts.Potentials,
		"devices":              opts.Devices,
		"accelerator":          opts.Accelerator,
		"recycling_steps":      opts.RecyclingSteps,
		"sampling_steps":       opts.SamplingSteps,
		"diffusion_samples":    opts.DiffusionSamples,
		"step_scale":           opts.StepScale,
		"output_format":        opts.OutputFormat,
		"num_workers":          opts.NumWorkers,
		"msa_server_url":       opts.MSAServerURL,
		"msa_pairing_strategy": opts.MSAPairingStrategy,
	}
	if opts.Seed != nil {
		values["seed"] = *opts.Seed
	}
	flagArgs, err := boltzTable.Assemble(values)
	if err != nil {
		return nil, err
	}

	return &Launch{
		Tool:  "boltz",
		Image: img,
		GPU:   opts.UseGPU,
		Invocation: &toolcmd.Invocation{
			Executable: "boltz",
			Args:       []string{"predict", containerInput},
			FlagArgs:   append(pathArgs, flagArgs...),
			Binds:      binds,
			Env: map[string]string{
				"NVIDIA_VISIBLE_DEVICES": opts.GPUDevices,
				"BOLTZ_CACHE":            containerCache,
				"TMPDIR":                 containerTmp,
			},
		},
	}, nil
}

// RunBoltz builds and executes a boltz prediction.
func (l *Launcher) RunBoltz(ctx context.Context, opts BoltzOptions) error {
	launch, err := l.BuildBoltz(opts)
	if err != nil {
		return err
	}
	return l.Run(ctx, launch)
}
