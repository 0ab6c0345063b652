package launcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/epigenomicscode/foldlaunch/internal/config"
	"github.com/epigenomicscode/foldlaunch/pkg/bind"
	"github.com/epigenomicscode/foldlaunch/pkg/singularity"
	"github.com/epigenomicscode/foldlaunch/pkg/toolcmd"
)

const (
	chaiImageEnv      = "CHAI_SIF"
	chaiFallbackImage = "/opt/images/chai_lab.sif"
	chaiMountRoot     = "/mnt/"
)

// ChaiOptions are the user-facing options of the chai subcommand. Defaults
// mirror the chai-lab fold CLI.
type ChaiOptions struct {
	SIFPath   string `mapstructure:"sif_path"`
	FastaFile string `mapstructure:"fasta_file"`
	OutputDir string `mapstructure:"output_dir"`
	// ForceOutputDir reuses a non-empty output directory instead of
	// creating a timestamped run subdirectory inside it.
	ForceOutputDir bool `mapstructure:"force_output_dir"`

	UseGPU     bool   `mapstructure:"use_gpu"`
	GPUDevices string `mapstructure:"gpu_devices"`

	UseESMEmbeddings   bool   `mapstructure:"use_esm_embeddings"`
	UseMSAServer       bool   `mapstructure:"use_msa_server"`
	MSAServerURL       string `mapstructure:"msa_server_url"`
	MSADirectory       string `mapstructure:"msa_directory"`
	ConstraintPath     string `mapstructure:"constraint_path"`
	UseTemplatesServer bool   `mapstructure:"use_templates_server"`
	TemplateHitsPath   string `mapstructure:"template_hits_path"`
	RecycleMSASubsamp  int    `mapstructure:"recycle_msa_subsample"`
	NumTrunkRecycles   int    `mapstructure:"num_trunk_recycles"`
	NumDiffnTimesteps  int    `mapstructure:"num_diffn_timesteps"`
	NumDiffnSamples    int    `mapstructure:"num_diffn_samples"`
	NumTrunkSamples    int    `mapstructure:"num_trunk_samples"`
	Seed               *int   `mapstructure:"seed"`
	Device             string `mapstructure:"device"`
	LowMemory          bool   `mapstructure:"low_memory"`
}

// DefaultChaiOptions returns the built-in defaults.
func DefaultChaiOptions(cfg *config.Config) ChaiOptions {
	return ChaiOptions{
		OutputDir:         cfg.OutputDir("chailab"),
		UseGPU:            true,
		GPUDevices:        "all",
		UseESMEmbeddings:  true,
		MSAServerURL:      colabfoldURL,
		NumTrunkRecycles:  3,
		NumDiffnTimesteps: 200,
		NumDiffnSamples:   5,
		NumTrunkSamples:   1,
		LowMemory:         true,
	}
}

// chaiTable is the chai-lab fold flag vocabulary. Chai treats absence as
// the default state, so each boolean only carries a token for its
// non-default side.
var chaiTable = toolcmd.Table{
	{Name: "use-esm-embeddings", Kind: toolcmd.Bool, Default: true, Off: "--use-esm-embeddings=false"},
	{Name: "use-msa-server", Kind: toolcmd.Bool, Default: false, On: "--use-msa-server"},
	{Name: "use-templates-server", Kind: toolcmd.Bool, Default: false, On: "--use-templates-server"},
	{Name: "low-memory", Kind: toolcmd.Bool, Default: true, Off: "--low-memory=false"},
	{Name: "msa-server-url", Kind: toolcmd.String, Default: colabfoldURL},
	{Name: "recycle-msa-subsample", Kind: toolcmd.Int, Default: 0},
	{Name: "num-trunk-recycles", Kind: toolcmd.Int, Default: 3},
	{Name: "num-diffn-timesteps", Kind: toolcmd.Int, Default: 200},
	{Name: "num-diffn-samples", Kind: toolcmd.Int, Default: 5},
	{Name: "num-trunk-samples", Kind: toolcmd.Int, Default: 1},
	{Name: "seed", Kind: toolcmd.Int},
	{Name: "device", Kind: toolcmd.String},
}

// BuildChai resolves binds and assembles the chai-lab fold invocation.
func (l *Launcher) BuildChai(opts ChaiOptions) (*Launch, error) {
	img, err := singularity.Load(l.cfg.Image("chailab", opts.SIFPath, chaiImageEnv, chaiFallbackImage))
	if err != nil {
		return nil, err
	}

	if opts.FastaFile == "" {
		return nil, fmt.Errorf("missing required flag: --fasta_file")
	}

	resolver := bind.NewResolver(chaiMountRoot, bind.WithLogger(l.logger))
	var binds bind.Set

	spec, containerFasta, err := resolver.Resolve("fasta", opts.FastaFile, false, false)
	if err != nil {
		return nil, err
	}
	binds.Add(spec)

	outputDir := opts.OutputDir
	if entries, err := os.ReadDir(outputDir); err == nil && len(entries) > 0 && !opts.ForceOutputDir {
		stamped := filepath.Join(outputDir, "run_"+time.Now().Format("2006-01-02_15-04-05"))
		l.logger.Warn("output directory is not empty, using timestamped subdirectory",
			"dir", outputDir, "subdir", stamped)
		outputDir = stamped
	}
	spec, containerOut, err := resolver.Resolve("output", outputDir, true, false)
	if err != nil {
		return nil, err
	}
	binds.Add(spec)

	var pathArgs []string
	if opts.MSADirectory != "" {
		spec, containerMSA, err := resolver.Resolve("msa_dir", opts.MSADirectory, true, false)
		if err != nil {
			return nil, err
		}
		binds.Add(spec)
		pathArgs = append(pathArgs, "--msa-directory="+containerMSA)
	}
	if opts.ConstraintPath != "" {
		spec, containerConstraints, err := resolver.Resolve("constraints", opts.ConstraintPath, false, false)
		if err != nil {
			return nil, err
		}
		binds.Add(spec)
		pathArgs = append(pathArgs, "--constraint-path="+containerConstraints)
	}
	if opts.TemplateHitsPath != "" {
		spec, containerTemplates, err := resolver.Resolve("template_hits", opts.TemplateHitsPath, false, false)
		if err != nil {
			return nil, err
		}
		binds.Add(spec)
		pathArgs = append(pathArgs, "--template-hits-path="+containerTemplates)
	}

	spec, containerTmp, err := resolver.Resolve("tmp", l.cfg.TmpDir, true, false)
	if err != nil {
		return nil, err
	}
	binds.Add(spec)

	values := map[string]any{
		"use-esm-embeddings":    opts.UseESMEmbeddings,
		"use-msa-server":        opts.UseMSAServer,
		"use-templates-server":  opts.UseTemplatesServer,
		"low-memory":            opts.LowMemory,
		"msa-server-url":        opts.MSAServerURL,
		"recycle-msa-subsample": opts.RecycleMSASubsamp,
		"num-trunk-recycles":    opts.NumTrunkRecycles,
		"num-diffn-timesteps":   opts.NumDiffnTimesteps,
		"num-diffn-samples":     opts.NumDiffnSamples,
		"num-trunk-samples":     opts.NumTrunkSamples,
	}
	if opts.Seed != nil {
		values["seed"] = *opts.Seed
	}
	if opts.Device != "" {
		values["device"] = opts.Device
	}
	flagArgs, err := chaiTable.Assemble(values)
	if err != nil {
		return nil, err
	}

	return &Launch{
		Tool:  "chailab",
		Image: img,
		GPU:   opts.UseGPU,
		Invocation: &toolcmd.Invocation{
			Executable: "chai-lab",
			Args:       []string{"fold", containerFasta, containerOut},
			FlagArgs:   append(pathArgs, flagArgs...),
			Binds:      binds,
			Env: map[string]string{
				"NVIDIA_VISIBLE_DEVICES": opts.GPUDevices,
				"TMPDIR":                 containerTmp,
			},
		},
	}, nil
}

// RunChai builds and executes a chai-lab prediction.
func (l *Launcher) RunChai(ctx context.Context, opts ChaiOptions) error {
	launch, err := l.BuildChai(opts)
	if err != nil {
		return err
	}
	return l.Run(ctx, launch)
}
