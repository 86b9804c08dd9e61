package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/luma/sonic/client"
)

var ConsolidateCmd = &cobra.Command{
	Use:   "consolidate",
	Short: "Ask the server to consolidate its index now",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withControl(cmd.Context(), func(ch *client.ControlChannel) error {
			return ch.Consolidate(cmd.Context())
		})
	},
}

var BackupCmd = &cobra.Command{
	Use:   "backup <path>",
	Short: "Ask the server to back its index up to a path on the server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withControl(cmd.Context(), func(ch *client.ControlChannel) error {
			return ch.Backup(cmd.Context(), args[0])
		})
	},
}

var RestoreCmd = &cobra.Command{
	Use:   "restore <path>",
	Short: "Ask the server to restore its index from a path on the server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withControl(cmd.Context(), func(ch *client.ControlChannel) error {
			return ch.Restore(cmd.Context(), args[0])
		})
	},
}

var ShutdownCmd = &cobra.Command{
	Use:   "shutdown",
	Short: "Ask the server to shut down",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ch, err := client.StartControl(cmd.Context(), conf.ClientOptions(log.Named("client")))
		if err != nil {
			return err
		}

		// Shutdown closes the channel, there is nobody left to QUIT
		return ch.Shutdown(cmd.Context())
	},
}

var InfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Print the server's statistics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withControl(cmd.Context(), func(ch *client.ControlChannel) error {
			info, err := ch.Info(cmd.Context())
			if err != nil {
				return err
			}

			names := make([]string, 0, len(info))
			for name := range info {
				names = append(names, name)
			}
			sort.Strings(names)

			for _, name := range names {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", name, info[name])
			}

			return nil
		})
	},
}
