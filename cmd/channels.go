package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/luma/sonic/client"
)

// withIngest runs fn on a fresh ingest channel and quits it afterwards.
func withIngest(ctx context.Context, fn func(ch *client.IngestChannel) error) error {
	ch, err := client.StartIngest(ctx, conf.ClientOptions(log.Named("client")))
	if err != nil {
		return err
	}

	return finish(ctx, ch.Channel, fn(ch))
}

func withSearch(ctx context.Context, fn func(ch *client.SearchChannel) error) error {
	ch, err := client.StartSearch(ctx, conf.ClientOptions(log.Named("client")))
	if err != nil {
		return err
	}

	return finish(ctx, ch.Channel, fn(ch))
}

func withControl(ctx context.Context, fn func(ch *client.ControlChannel) error) error {
	ch, err := client.StartControl(ctx, conf.ClientOptions(log.Named("client")))
	if err != nil {
		return err
	}

	return finish(ctx, ch.Channel, fn(ch))
}

// finish quits ch, unless err already closed it, and returns err.
func finish(ctx context.Context, ch *client.Channel, err error) error {
	if err != nil && client.IsFatal(err) {
		ch.Close()
		return err
	}

	if quitErr := ch.Quit(ctx); quitErr != nil {
		log.Warn("Failed to quit channel", zap.Error(quitErr))
	}

	return err
}

func printList(w io.Writer, results []string) {
	if len(results) == 0 {
		fmt.Fprintln(w, "(no results)")
		return
	}

	fmt.Fprintln(w, strings.Join(results, "\n"))
}
