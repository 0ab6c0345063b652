package main

import (
	"github.com/spf13/cobra"

	"github.com/epigenomicscode/foldlaunch/internal/cli"
	"github.com/epigenomicscode/foldlaunch/internal/launcher"
)

var boltzCmd = &cobra.Command{
	Use:   "boltz",
	Short: "Run a Boltz prediction inside its Singularity image",
	Long: `Runs 'boltz predict' inside the Boltz container. The image is taken
from --sif_path, the BOLTZ_SIF environment variable, the config file, or
the built-in fallback path, in that order.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		l, err := cli.NewLauncher(globalOptions(cmd))
		if err != nil {
			return err
		}

		opts := launcher.DefaultBoltzOptions(l.Config())
		if err := l.Config().ApplyDefaults("boltz", &opts); err != nil {
			return err
		}
		if err := cli.ApplyFlagOverrides(cmd.Flags(), &opts); err != nil {
			return err
		}

		sc := cli.NewSignalContext(cmd.Context())
		defer sc.Cancel()
		return l.RunBoltz(sc, opts)
	},
}

func init() {
	rootCmd.AddCommand(boltzCmd)

	f := boltzCmd.Flags()
	f.String("sif_path", "", "Path to the Boltz Singularity image (.sif), overriding BOLTZ_SIF")
	f.String("input_data", "", "(Required) Input data file or directory (FASTA/YAML)")
	f.String("out_dir", "", "Output directory for predictions (default ./boltz_output)")
	f.String("boltz_cache_dir", "", "Directory for Boltz to download data/models (default $BOLTZ_CACHE or ~/.boltz)")
	f.String("checkpoint", "", "Optional path to a model checkpoint file")

	f.Bool("use_gpu", true, "Enable the NVIDIA runtime (--nv) to run with GPUs")
	f.String("gpu_devices", "all", "GPU devices for NVIDIA_VISIBLE_DEVICES (e.g. \"0,1\")")
	f.Int("devices", 1, "Number of devices for prediction")
	f.String("accelerator", "gpu", "Accelerator type (gpu, cpu, tpu)")

	f.Int("recycling_steps", 3, "Number of recycling steps")
	f.Int("sampling_steps", 200, "Number of sampling steps")
	f.Int("diffusion_samples", 1, "Number of diffusion samples")
	f.Float64("step_scale", 1.638, "Step scale for diffusion")
	f.Bool("write_full_pae", false, "Dump the full PAE matrix")
	f.Bool("write_full_pde", false, "Dump the full PDE matrix")
	f.String("output_format", "mmcif", "Output format for structures (pdb, mmcif)")
	f.Int("num_workers", 2, "Number of data loader workers")
	f.Bool("override", false, "Override existing predictions")
	f.Int("seed", 0, "Random seed for reproducibility (unset unless given)")

	f.Bool("use_msa_server", false, "Use the MMSeqs2 server for MSA generation")
	f.String("msa_server_url", "https://api.colabfold.com", "MSA server URL")
	f.String("msa_pairing_strategy", "greedy", "MSA pairing strategy (greedy, complete)")
	f.Bool("enable_potentials", true, "Use potentials for steering")

	cobra.CheckErr(boltzCmd.MarkFlagRequired("input_data"))
}
