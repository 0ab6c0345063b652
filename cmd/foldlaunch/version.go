package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/epigenomicscode/foldlaunch"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of foldlaunch",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("foldlaunch version %s\n", foldlaunch.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
