package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/luma/sonic/client"
)

var pushLang string

func init() {
	PushCmd.Flags().StringVar(&pushLang, "lang", "", "The ISO 639-3 code of the text, e.g. eng")
}

var PushCmd = &cobra.Command{
	Use:   "push <collection> <bucket> <object> <text>...",
	Short: "Index text for an object",
	Args:  cobra.MinimumNArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withIngest(cmd.Context(), func(ch *client.IngestChannel) error {
			n, err := ch.Push(cmd.Context(), client.PushRequest{
				Collection: args[0],
				Bucket:     args[1],
				Object:     args[2],
				Text:       strings.Join(args[3:], " "),
				Lang:       pushLang,
			})
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), n)
			return nil
		})
	},
}

var PopCmd = &cobra.Command{
	Use:   "pop <collection> <bucket> <object> <text>...",
	Short: "Remove text from an object",
	Args:  cobra.MinimumNArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withIngest(cmd.Context(), func(ch *client.IngestChannel) error {
			n, err := ch.Pop(cmd.Context(), args[0], args[1], args[2], strings.Join(args[3:], " "))
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), n)
			return nil
		})
	},
}

var CountCmd = &cobra.Command{
	Use:   "count <collection> [<bucket> [<object>]]",
	Short: "Count the buckets of a collection, objects of a bucket or terms of an object",
	Args:  cobra.RangeArgs(1, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids := append(append([]string{}, args...), "", "")

		return withIngest(cmd.Context(), func(ch *client.IngestChannel) error {
			n, err := ch.Count(cmd.Context(), ids[0], ids[1], ids[2])
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), n)
			return nil
		})
	},
}

var FlushCmd = &cobra.Command{
	Use:   "flush <collection> [<bucket> [<object>]]",
	Short: "Flush a collection, a bucket or an object",
	Long: `Flush a collection, a bucket or an object

The number of identifiers decides what is flushed:

	sonic flush wiki                 # FLUSHC
	sonic flush wiki articles        # FLUSHB
	sonic flush wiki articles a1     # FLUSHO
`,
	Args: cobra.RangeArgs(1, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withIngest(cmd.Context(), func(ch *client.IngestChannel) error {
			var (
				n   int
				err error
			)

			switch len(args) {
			case 1:
				n, err = ch.FlushCollection(cmd.Context(), args[0])
			case 2:
				n, err = ch.FlushBucket(cmd.Context(), args[0], args[1])
			default:
				n, err = ch.FlushObject(cmd.Context(), args[0], args[1], args[2])
			}

			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), n)
			return nil
		})
	},
}
