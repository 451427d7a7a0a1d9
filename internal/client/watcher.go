package client

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/pollchat/internal/proto"
)

// Fetcher is the part of the client a Watcher polls.
type Fetcher interface {
	GetMessages(ctx context.Context, lastID int64, room string) ([]proto.Message, error)
}

// Watcher tracks a per-room watermark and polls for messages beyond it.
type Watcher struct {
	fetcher  Fetcher
	room     string
	self     string
	interval time.Duration
	lastID   int64
	log      *zerolog.Logger
}

// WatcherOption customizes a Watcher.
type WatcherOption func(*Watcher)

// WithSelf hides messages authored by username; they still advance the watermark.
func WithSelf(username string) WatcherOption {
	return func(w *Watcher) { w.self = username }
}

// WithInterval sets the polling interval.
func WithInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithLogger sets the logger used for poll failures.
func WithLogger(logger *zerolog.Logger) WatcherOption {
	return func(w *Watcher) {
		if logger != nil {
			w.log = logger
		}
	}
}

// NewWatcher creates a watcher for room starting at watermark 0.
func NewWatcher(fetcher Fetcher, room string, opts ...WatcherOption) *Watcher {
	nop := zerolog.Nop()
	w := &Watcher{
		fetcher:  fetcher,
		room:     room,
		interval: time.Second,
		log:      &nop,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// LastID returns the highest message id observed so far.
func (w *Watcher) LastID() int64 {
	return w.lastID
}

// Poll fetches messages newer than the watermark and advances it.
// Messages from the watcher's own user are dropped from the result.
func (w *Watcher) Poll(ctx context.Context) ([]proto.Message, error) {
	msgs, err := w.fetcher.GetMessages(ctx, w.lastID, w.room)
	if err != nil {
		return nil, err
	}

	out := msgs[:0]
	for _, msg := range msgs {
		if msg.ID > w.lastID {
			w.lastID = msg.ID
		}
		if w.self != "" && msg.Username == w.self {
			continue
		}
		out = append(out, msg)
	}
	return out, nil
}

// Run polls until ctx is done, handing each new message to fn.
// Poll failures are logged and retried on the next tick.
func (w *Watcher) Run(ctx context.Context, fn func(proto.Message)) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		msgs, err := w.Poll(ctx)
		switch {
		case err == nil:
			for _, msg := range msgs {
				fn(msg)
			}
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			if ctx.Err() != nil {
				return nil
			}
			w.log.Warn().Err(err).Str("room", w.room).Msg("poll timed out")
		default:
			w.log.Warn().Err(err).Str("room", w.room).Msg("error while receiving messages")
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
