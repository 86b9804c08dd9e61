package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/luma/sonic/client"
)

var (
	searchLimit  int
	searchOffset int
	searchLang   string
)

func init() {
	for _, cmd := range []*cobra.Command{QueryCmd, SuggestCmd, ListCmd} {
		cmd.Flags().IntVar(&searchLimit, "limit", 0, "The maximum number of results, zero leaves it to the server")
	}

	for _, cmd := range []*cobra.Command{QueryCmd, ListCmd} {
		cmd.Flags().IntVar(&searchOffset, "offset", 0, "The number of results to skip")
	}

	QueryCmd.Flags().StringVar(&searchLang, "lang", "", "The ISO 639-3 code of the terms, e.g. eng")
}

var QueryCmd = &cobra.Command{
	Use:   "query <collection> <bucket> <terms>...",
	Short: "Find the objects matching terms",
	Args:  cobra.MinimumNArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSearch(cmd.Context(), func(ch *client.SearchChannel) error {
			results, err := ch.Query(cmd.Context(), client.QueryRequest{
				Collection: args[0],
				Bucket:     args[1],
				Terms:      strings.Join(args[2:], " "),
				Limit:      searchLimit,
				Offset:     searchOffset,
				Lang:       searchLang,
			})
			if err != nil {
				return err
			}

			printList(cmd.OutOrStdout(), results)
			return nil
		})
	},
}

var SuggestCmd = &cobra.Command{
	Use:   "suggest <collection> <bucket> <word>",
	Short: "Complete a word",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSearch(cmd.Context(), func(ch *client.SearchChannel) error {
			results, err := ch.Suggest(cmd.Context(), client.SuggestRequest{
				Collection: args[0],
				Bucket:     args[1],
				Word:       args[2],
				Limit:      searchLimit,
			})
			if err != nil {
				return err
			}

			printList(cmd.OutOrStdout(), results)
			return nil
		})
	},
}

var ListCmd = &cobra.Command{
	Use:   "list <collection> <bucket>",
	Short: "List the terms indexed in a bucket",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSearch(cmd.Context(), func(ch *client.SearchChannel) error {
			results, err := ch.List(cmd.Context(), client.ListRequest{
				Collection: args[0],
				Bucket:     args[1],
				Limit:      searchLimit,
				Offset:     searchOffset,
			})
			if err != nil {
				return err
			}

			printList(cmd.OutOrStdout(), results)
			return nil
		})
	},
}
