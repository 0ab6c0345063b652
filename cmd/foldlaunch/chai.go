package main

import (
	"github.com/spf13/cobra"

	"github.com/epigenomicscode/foldlaunch/internal/cli"
	"github.com/epigenomicscode/foldlaunch/internal/launcher"
)

var chaiCmd = &cobra.Command{
	Use:   "chai",
	Short: "Run a Chai Lab prediction inside its Singularity image",
	Long: `Runs 'chai-lab fold' inside the Chai Lab container. The image is taken
from --sif_path, the CHAI_SIF environment variable, the config file, or
the built-in fallback path, in that order.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		l, err := cli.NewLauncher(globalOptions(cmd))
		if err != nil {
			return err
		}

		opts := launcher.DefaultChaiOptions(l.Config())
		if err := l.Config().ApplyDefaults("chailab", &opts); err != nil {
			return err
		}
		if err := cli.ApplyFlagOverrides(cmd.Flags(), &opts); err != nil {
			return err
		}

		sc := cli.NewSignalContext(cmd.Context())
		defer sc.Cancel()
		return l.RunChai(sc, opts)
	},
}

func init() {
	rootCmd.AddCommand(chaiCmd)

	f := chaiCmd.Flags()
	f.String("sif_path", "", "Path to the Chai Lab Singularity image (.sif), overriding CHAI_SIF")
	f.String("fasta_file", "", "(Required) Path to the input FASTA file")
	f.String("output_dir", "", "Directory for storing results (default ./chailab_output)")
	f.Bool("force_output_dir", false, "Use the exact output directory even if it exists and is non-empty")

	f.Bool("use_gpu", true, "Enable the NVIDIA runtime (--nv) to run with GPUs")
	f.String("gpu_devices", "all", "GPU devices for NVIDIA_VISIBLE_DEVICES (e.g. \"0,1\")")

	f.Bool("use_esm_embeddings", true, "Use ESM embeddings")
	f.Bool("use_msa_server", false, "Use the MSA server")
	f.String("msa_server_url", "https://api.colabfold.com", "URL of the MSA server")
	f.String("msa_directory", "", "Directory containing precomputed MSAs")
	f.String("constraint_path", "", "Path to a constraints file")
	f.Bool("use_templates_server", false, "Use the templates server")
	f.String("template_hits_path", "", "Path to a template hits file")
	f.Int("recycle_msa_subsample", 0, "Number of MSA subsamples to recycle")
	f.Int("num_trunk_recycles", 3, "Number of trunk recycles")
	f.Int("num_diffn_timesteps", 200, "Number of diffusion timesteps")
	f.Int("num_diffn_samples", 5, "Number of diffusion samples")
	f.Int("num_trunk_samples", 1, "Number of trunk samples")
	f.Int("seed", 0, "Random seed (unset unless given)")
	f.String("device", "", "Device for chai-lab (e.g. \"cuda:0\")")
	f.Bool("low_memory", true, "Use low memory mode")

	cobra.CheckErr(chaiCmd.MarkFlagRequired("fasta_file"))
}
