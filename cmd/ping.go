package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/luma/sonic/client"
	"github.com/luma/sonic/protocol"
)

var pingMode string

func init() {
	PingCmd.Flags().StringVarP(&pingMode, "mode", "m", string(protocol.ModeSearch), "The mode of the channel to ping on")
}

var PingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check the server is answering",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		started := time.Now()

		switch protocol.Mode(pingMode) {
		case protocol.ModeIngest:
			return withIngest(ctx, func(ch *client.IngestChannel) error {
				return ping(cmd, ch.Channel, started)
			})

		case protocol.ModeSearch:
			return withSearch(ctx, func(ch *client.SearchChannel) error {
				return ping(cmd, ch.Channel, started)
			})

		case protocol.ModeControl:
			return withControl(ctx, func(ch *client.ControlChannel) error {
				return ping(cmd, ch.Channel, started)
			})
		}

		return fmt.Errorf("Unknown mode %q, expected one of ingest, search or control", pingMode)
	},
}

// ping reports the round trip time since started, START included.
func ping(cmd *cobra.Command, ch *client.Channel, started time.Time) error {
	if err := ch.Ping(cmd.Context()); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "PONG in %s\n", time.Since(started).Round(time.Microsecond))
	return nil
}
