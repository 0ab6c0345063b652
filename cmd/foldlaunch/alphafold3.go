package main

import (
	"github.com/spf13/cobra"

	"github.com/epigenomicscode/foldlaunch/internal/cli"
	"github.com/epigenomicscode/foldlaunch/internal/launcher"
)

var alphafold3Cmd = &cobra.Command{
	Use:   "alphafold3",
	Short: "Run an AlphaFold 3 prediction inside its Singularity image",
	Long: `Runs the AlphaFold 3 pipeline inside its container. The image is taken
from --sif_path, the ALPHAFOLD3_SIF environment variable, the config
file, or the built-in fallback path, in that order.

Either --json_path (single input) or --input_dir (directory of inputs)
must be given; --input_dir wins if both are set.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		l, err := cli.NewLauncher(globalOptions(cmd))
		if err != nil {
			return err
		}

		opts := launcher.DefaultAlphaFold3Options(l.Config())
		if err := l.Config().ApplyDefaults("alphafold3", &opts); err != nil {
			return err
		}
		if err := cli.ApplyFlagOverrides(cmd.Flags(), &opts); err != nil {
			return err
		}

		sc := cli.NewSignalContext(cmd.Context())
		defer sc.Cancel()
		return l.RunAlphaFold3(sc, opts)
	},
}

func init() {
	rootCmd.AddCommand(alphafold3Cmd)

	f := alphafold3Cmd.Flags()
	f.String("sif_path", "", "Path to the AlphaFold 3 Singularity image (.sif), overriding ALPHAFOLD3_SIF")
	f.String("json_path", "", "Path to a single JSON prediction input file")
	f.String("input_dir", "", "Directory containing multiple JSON input files (takes precedence over --json_path)")
	f.String("output_dir", "", "Base directory for storing results (default ./alphafold3_output)")
	f.Bool("force_output_dir", false, "Use the exact output directory even if it exists and is non-empty")
	f.String("model_dir", "", "(Required) Directory containing the AlphaFold 3 model parameters")
	f.StringSlice("db_dir", nil, "(Required) Genetic database directory; repeatable, earlier directories win")

	f.Bool("use_gpu", true, "Enable the NVIDIA runtime (--nv) to run with GPUs")
	f.String("gpu_devices", "all", "GPU devices for NVIDIA_VISIBLE_DEVICES (e.g. \"0,1\")")

	f.Bool("run_data_pipeline", true, "Run the data pipeline (genetic and template search)")
	f.Bool("run_inference", true, "Run the inference pipeline")
	f.Int("jackhmmer_n_cpu", 0, "CPUs for Jackhmmer (default min(NumCPU, 8))")
	f.Int("nhmmer_n_cpu", 0, "CPUs for Nhmmer (default min(NumCPU, 8))")
	f.String("max_template_date", "2021-09-30", "Maximum template release date (YYYY-MM-DD)")
	f.Int("conformer_max_iterations", 10000, "Maximum RDKit conformer generation iterations")
	f.Int("num_recycles", 10, "Number of recycles during inference")
	f.Int("num_diffusion_samples", 5, "Number of diffusion samples per seed")
	f.Int("num_seeds", 0, "Override the number of seeds (unset unless given)")
	f.String("flash_attention_implementation", "triton", "Flash attention implementation (triton, cudnn, xla)")
	f.Bool("save_embeddings", false, "Save the final trunk single and pair embeddings")

	cobra.CheckErr(alphafold3Cmd.MarkFlagRequired("model_dir"))
	cobra.CheckErr(alphafold3Cmd.MarkFlagRequired("db_dir"))
}
