package client

import (
	"context"
	"strconv"

	"github.com/luma/sonic/protocol"
)

// SearchChannel reads from the index.
type SearchChannel struct {
	*Channel
}

// NewSearchChannel returns a search channel in the Created state.
func NewSearchChannel(opts Options) *SearchChannel {
	return &SearchChannel{newChannel(protocol.ModeSearch, searchCommands, opts)}
}

// StartSearch returns a started search channel.
func StartSearch(ctx context.Context, opts Options) (*SearchChannel, error) {
	ch := NewSearchChannel(opts)
	if err := ch.Start(ctx); err != nil {
		return nil, err
	}

	return ch, nil
}

type QueryRequest struct {
	Collection string
	Bucket     string
	Terms      string

	// Limit and Offset are left to the server when zero
	Limit  int
	Offset int

	// Lang is an optional ISO 639-3 code, e.g. "eng"
	Lang string
}

type SuggestRequest struct {
	Collection string
	Bucket     string
	Word       string

	// Limit is left to the server when zero
	Limit int
}

type ListRequest struct {
	Collection string
	Bucket     string

	// Limit and Offset are left to the server when zero
	Limit  int
	Offset int
}

// Query returns the ids of objects matching req.Terms. No match is an empty
// list, not an error.
func (ch *SearchChannel) Query(ctx context.Context, req QueryRequest) ([]string, error) {
	opts, err := pageOptions(protocol.QUERY, req.Limit, req.Offset)
	if err != nil {
		return nil, err
	}

	if req.Lang != "" {
		opts = append(opts, protocol.Option(protocol.OptLang, req.Lang))
	}

	return ch.list(ctx, protocol.QUERY, []string{req.Collection, req.Bucket, req.Terms}, opts)
}

// Suggest completes req.Word with terms from the index, best first.
func (ch *SearchChannel) Suggest(ctx context.Context, req SuggestRequest) ([]string, error) {
	opts, err := pageOptions(protocol.SUGGEST, req.Limit, 0)
	if err != nil {
		return nil, err
	}

	return ch.list(ctx, protocol.SUGGEST, []string{req.Collection, req.Bucket, req.Word}, opts)
}

// List enumerates the terms indexed in a bucket.
func (ch *SearchChannel) List(ctx context.Context, req ListRequest) ([]string, error) {
	opts, err := pageOptions(protocol.LIST, req.Limit, req.Offset)
	if err != nil {
		return nil, err
	}

	return ch.list(ctx, protocol.LIST, []string{req.Collection, req.Bucket}, opts)
}

func (ch *SearchChannel) list(ctx context.Context, name protocol.Command, args []string, opts []string) ([]string, error) {
	resp, err := ch.call(ctx, name, args, opts)
	if err != nil {
		return nil, err
	}

	return list(resp), nil
}

func pageOptions(name protocol.Command, limit, offset int) ([]string, error) {
	var opts []string

	if limit < 0 {
		return nil, &ValidationError{Command: name, Field: "limit", Value: strconv.Itoa(limit), Reason: "must not be negative"}
	}

	if offset < 0 {
		return nil, &ValidationError{Command: name, Field: "offset", Value: strconv.Itoa(offset), Reason: "must not be negative"}
	}

	if limit > 0 {
		opts = append(opts, protocol.IntOption(protocol.OptLimit, limit))
	}

	if offset > 0 {
		opts = append(opts, protocol.IntOption(protocol.OptOffset, offset))
	}

	return opts, nil
}
