package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/netcfgd/netcfgd/configuration"
)

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Prints netcfgd version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("netcfgd version %s\n", configuration.GetVersion())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
