package gen

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/luma/sonic/internal/env"
)

var configOut string

var ConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Write a config file holding the defaults",
	Long: `Write a TOML config file holding every setting at its default, ready to
be edited and passed with --config. It is written to stdout unless --out is
given.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		w := cmd.OutOrStdout()

		if configOut != "" {
			f, err := os.OpenFile(configOut, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
			if err != nil {
				return err
			}
			defer f.Close()

			w = f
		}

		fmt.Fprintln(w, "# sonic configuration, SONIC_* environment variables and flags take precedence")

		return toml.NewEncoder(w).Encode(env.DefaultConfig())
	},
}

func init() {
	ConfigCmd.Flags().StringVarP(&configOut, "out", "o", "", "The file to write, it must not exist")
}
