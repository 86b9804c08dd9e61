package gen

import (
	"github.com/spf13/cobra"
)

var RootCmd = &cobra.Command{
	Use:   "gen",
	Short: "Generate man pages and config files",
	Long:  `Generate man pages and config files`,
}

func init() {
	RootCmd.AddCommand(ManPagesCmd, ConfigCmd)
}
