package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/epigenomicscode/foldlaunch/internal/cli"
)

var rootCmd = &cobra.Command{
	Use:   "foldlaunch",
	Short: "foldlaunch runs structure prediction tools inside Singularity images",
	Long: `foldlaunch wraps Boltz, Chai Lab and AlphaFold 3 so they can be run
inside Singularity/Apptainer containers: it maps host paths to bind
mounts, builds each tool's command line, and streams the container
output.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Any error, configuration or runtime,
// exits with code 1.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("config", cli.DefaultConfigFile, "Launcher config file (images, caches, flag defaults)")
	rootCmd.PersistentFlags().String("runtime", "singularity", "Container runtime executable (singularity or apptainer)")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().Bool("no-banner", false, "Suppress the run summary banner")
}

func globalOptions(cmd *cobra.Command) cli.GlobalOptions {
	f := cmd.Flags()
	configPath, _ := f.GetString("config")
	runtimeExec, _ := f.GetString("runtime")
	debug, _ := f.GetBool("debug")
	noBanner, _ := f.GetBool("no-banner")
	return cli.GlobalOptions{
		ConfigPath: configPath,
		Runtime:    runtimeExec,
		Debug:      debug,
		NoBanner:   noBanner,
	}
}
