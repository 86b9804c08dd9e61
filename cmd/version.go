package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/luma/sonic/internal/meta"
)

var VersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the build information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		info := meta.GetInfo()

		fmt.Fprintf(cmd.OutOrStdout(), "sonic %s (%s, %s)\n", info.VersionOrDev(), info.Build, info.Branch)
		fmt.Fprintf(cmd.OutOrStdout(), "built %s with %s on %s\n", info.BuildTime, info.GoVersion, info.Platform)

		if info.GoTag != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "tags %s\n", info.GoTag)
		}

		return nil
	},
}
