// Package logging builds the slog loggers used by the joinopt commands.
//
// Records always go to a text handler on the supplied writer. When a Seq
// URL is configured they are also shipped to a Seq server.
package logging

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	slogseq "github.com/sokkalf/slog-seq"
)

// FlushInterval is how often buffered Seq events are sent.
const FlushInterval = 500 * time.Millisecond

// Options configures New.
type Options struct {
	// Writer receives the console output. Commands pass stderr so that
	// structured results on stdout stay parseable.
	Writer io.Writer

	// Verbose lowers the level from Info to Debug.
	Verbose bool

	// SeqURL enables the Seq handler when non-empty.
	SeqURL string
}

// Level returns the minimum level implied by opts.
func (o Options) Level() slog.Level {
	if o.Verbose {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// New returns a logger for opts and a function that flushes and closes
// any remote handler. The close function is never nil.
func New(opts Options) (*slog.Logger, func() error, error) {
	if opts.Writer == nil {
		return nil, nil, errors.New("logging: nil writer")
	}
	handlerOpts := &slog.HandlerOptions{Level: opts.Level()}
	console := slog.NewTextHandler(opts.Writer, handlerOpts)

	if opts.SeqURL == "" {
		return slog.New(console), func() error { return nil }, nil
	}

	_, seq := slogseq.NewLogger(
		opts.SeqURL,
		slogseq.WithBatchSize(1),
		slogseq.WithFlushInterval(FlushInterval),
		slogseq.WithHandlerOptions(handlerOpts),
	)
	if seq == nil {
		return slog.New(console), func() error { return nil }, nil
	}

	logger := slog.New(&multiHandler{handlers: []slog.Handler{console, seq}})
	closeFn := func() error {
		seq.Close()
		return nil
	}
	return logger, closeFn, nil
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

// multiHandler fans each record out to every handler.
type multiHandler struct {
	handlers []slog.Handler
}

func (m *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (m *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range m.handlers {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		handlers[i] = h.WithAttrs(attrs)
	}
	return &multiHandler{handlers: handlers}
}

func (m *multiHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		handlers[i] = h.WithGroup(name)
	}
	return &multiHandler{handlers: handlers}
}
