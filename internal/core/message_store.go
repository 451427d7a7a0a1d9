package core

import (
	"context"
	"fmt"
	"iter"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/pollchat/internal/store"
)

// MessageStore owns the append-only message log: validation, room partitioning
// and id allocation on top of a durable backend.
type MessageStore struct {
	backend store.MessageLog
	log     *zerolog.Logger

	// mu spans id allocation and the durable insert, so id order equals commit order.
	mu sync.Mutex
}

// NewMessageStore bootstraps the backend schema and returns a ready store.
// The store must not be used if this returns an error.
func NewMessageStore(ctx context.Context, backend store.MessageLog, logger *zerolog.Logger) (*MessageStore, error) {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	if err := backend.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	logger.Debug().Str("table", store.TableName).Msg("message schema ready")

	return &MessageStore{
		backend: backend,
		log:     logger,
	}, nil
}

// Append validates and durably stores a message, returning its id.
func (s *MessageStore) Append(ctx context.Context, username, text, room string) (int64, error) {
	username = strings.TrimSpace(username)
	text = strings.TrimSpace(text)

	if username == "" {
		return 0, validationError(ErrEmptyUsername)
	}
	if text == "" {
		return 0, validationError(ErrEmptyText)
	}
	r, err := ParseRoom(room)
	if err != nil {
		return 0, err
	}

	msg := &store.Message{
		Username: username,
		Room:     string(r),
		Text:     text,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.backend.Insert(ctx, msg); err != nil {
		s.log.Error().Err(err).Str("username", username).Str("room", string(r)).Msg("failed to append message")
		return 0, storeError("append message", err)
	}

	s.log.Debug().
		Int64("id", msg.ID).
		Str("username", username).
		Str("room", string(r)).
		Msg("message stored")
	return msg.ID, nil
}

// Query yields the messages of room with id greater than sinceID, oldest first.
// The room is not checked against the allowed set; unknown rooms are simply empty.
// Every range over the returned sequence re-runs the query.
func (s *MessageStore) Query(ctx context.Context, sinceID int64, room string) iter.Seq2[Message, error] {
	r := NormalizeRoom(room)

	return func(yield func(Message, error) bool) {
		for row, err := range s.backend.Since(ctx, string(r), sinceID) {
			if err != nil {
				s.log.Error().Err(err).Str("room", string(r)).Int64("since_id", sinceID).Msg("failed to query messages")
				yield(Message{}, storeError("query messages", err))
				return
			}
			if !yield(fromStore(row), nil) {
				return
			}
		}
	}
}

// Close tears down the backend.
func (s *MessageStore) Close() error {
	return s.backend.Close()
}

func fromStore(m *store.Message) Message {
	return Message{
		ID:        m.ID,
		Username:  m.Username,
		Room:      Room(m.Room),
		Text:      m.Text,
		CreatedAt: m.CreatedAt,
	}
}
