//go:generate go run go.uber.org/mock/mockgen -source=service.go -destination=mocks/mock_service.go -package=mocks

package rpc

import (
	"context"

	"github.com/samber/lo"

	"github.com/vovakirdan/pollchat/internal/core"
	"github.com/vovakirdan/pollchat/internal/proto"
)

// ChatService is the closed set of remote-callable procedures.
type ChatService interface {
	// SendMessage appends a message and returns its id.
	SendMessage(ctx context.Context, username, text, room string) (int64, error)

	// GetMessages returns the messages of room newer than sinceID, oldest first.
	GetMessages(ctx context.Context, sinceID int64, room string) ([]proto.Message, error)
}

// Service implements ChatService on top of the message store.
type Service struct {
	messages *core.MessageStore
}

// NewService creates a store-backed ChatService.
func NewService(messages *core.MessageStore) *Service {
	return &Service{messages: messages}
}

// SendMessage proxies to MessageStore.Append.
func (s *Service) SendMessage(ctx context.Context, username, text, room string) (int64, error) {
	return s.messages.Append(ctx, username, text, room)
}

// GetMessages proxies to MessageStore.Query and converts the rows for transport.
func (s *Service) GetMessages(ctx context.Context, sinceID int64, room string) ([]proto.Message, error) {
	var msgs []core.Message
	for msg, err := range s.messages.Query(ctx, sinceID, room) {
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}

	return lo.Map(msgs, func(item core.Message, _ int) proto.Message {
		return proto.Message{
			ID:        item.ID,
			Username:  item.Username,
			Text:      item.Text,
			Timestamp: item.Timestamp(),
		}
	}), nil
}
