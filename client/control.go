package client

import (
	"context"

	"go.uber.org/multierr"

	"github.com/luma/sonic/protocol"
)

// ControlChannel administers the server.
type ControlChannel struct {
	*Channel
}

// NewControlChannel returns a control channel in the Created state.
func NewControlChannel(opts Options) *ControlChannel {
	return &ControlChannel{newChannel(protocol.ModeControl, controlCommands, opts)}
}

// StartControl returns a started control channel.
func StartControl(ctx context.Context, opts Options) (*ControlChannel, error) {
	ch := NewControlChannel(opts)
	if err := ch.Start(ctx); err != nil {
		return nil, err
	}

	return ch, nil
}

// Consolidate asks the server to compact its index now rather than at its
// next scheduled tick. It waits up to Options.LongTimeout.
func (ch *ControlChannel) Consolidate(ctx context.Context) error {
	return ch.trigger(ctx, protocol.TriggerConsolidate)
}

// Backup asks the server to back its index up to path, on the server.
func (ch *ControlChannel) Backup(ctx context.Context, path string) error {
	return ch.trigger(ctx, protocol.TriggerBackup, path)
}

// Restore asks the server to replace its index with the backup at path.
func (ch *ControlChannel) Restore(ctx context.Context, path string) error {
	return ch.trigger(ctx, protocol.TriggerRestore, path)
}

// Shutdown asks the server to terminate and closes the channel. No reply is
// awaited.
func (ch *ControlChannel) Shutdown(ctx context.Context) error {
	err := ch.fire(ctx, protocol.TRIGGER, []string{protocol.TriggerShutdown})

	return multierr.Append(err, ch.Close())
}

// Info returns the server's statistics as name/value pairs.
func (ch *ControlChannel) Info(ctx context.Context) (map[string]string, error) {
	resp, err := ch.call(ctx, protocol.INFO, nil, nil)
	if err != nil {
		return nil, err
	}

	return info(resp), nil
}

func (ch *ControlChannel) trigger(ctx context.Context, action string, args ...string) error {
	_, err := ch.call(ctx, protocol.TRIGGER, append([]string{action}, args...), nil)
	return err
}
