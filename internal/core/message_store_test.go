package core

import (
	"context"
	"errors"
	"iter"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"golang.org/x/sync/errgroup"

	"github.com/vovakirdan/pollchat/internal/store"
	"github.com/vovakirdan/pollchat/internal/store/mocks"
	"github.com/vovakirdan/pollchat/internal/store/sqlite"
)

func newTestMessageStore(t *testing.T) *MessageStore {
	t.Helper()

	backend, err := sqlite.New(":memory:")
	require.NoError(t, err)

	ms, err := NewMessageStore(context.Background(), backend, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ms.Close() })
	return ms
}

func collect(t *testing.T, ms *MessageStore, sinceID int64, room string) []Message {
	t.Helper()

	var out []Message
	for msg, err := range ms.Query(context.Background(), sinceID, room) {
		require.NoError(t, err)
		out = append(out, msg)
	}
	return out
}

func ids(msgs []Message) []int64 {
	out := make([]int64, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.ID)
	}
	return out
}

func TestMessageStoreScenario(t *testing.T) {
	ms := newTestMessageStore(t)
	ctx := context.Background()

	id, err := ms.Append(ctx, "alice", "hello", "public")
	require.NoError(t, err)
	require.Equal(t, int64(1), id)

	id, err = ms.Append(ctx, "bob", "hi", "public")
	require.NoError(t, err)
	require.Equal(t, int64(2), id)

	all := collect(t, ms, 0, "public")
	require.Len(t, all, 2)
	require.Equal(t, "alice", all[0].Username)
	require.Equal(t, "hello", all[0].Text)
	require.Equal(t, "bob", all[1].Username)
	require.Equal(t, "hi", all[1].Text)
	require.Positive(t, all[0].Timestamp())

	require.Equal(t, []int64{2}, ids(collect(t, ms, 1, "public")))
	require.Empty(t, collect(t, ms, 2, "public"))

	id, err = ms.Append(ctx, "carol", "secret", "founders")
	require.NoError(t, err)
	require.Equal(t, int64(3), id)

	require.Equal(t, []int64{1, 2}, ids(collect(t, ms, 0, "public")))
	founders := collect(t, ms, 0, "founders")
	require.Equal(t, []int64{3}, ids(founders))
	require.Equal(t, RoomFounders, founders[0].Room)
}

func TestAppendValidation(t *testing.T) {
	ms := newTestMessageStore(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		username string
		text     string
		room     string
		wantErr  error
	}{
		{name: "empty username", username: "", text: "x", room: "public", wantErr: ErrEmptyUsername},
		{name: "blank username", username: "   ", text: "x", room: "public", wantErr: ErrEmptyUsername},
		{name: "empty text", username: "u", text: "", room: "public", wantErr: ErrEmptyText},
		{name: "blank text", username: "u", text: "\t\n", room: "public", wantErr: ErrEmptyText},
		{name: "unknown room", username: "u", text: "x", room: "unknown-room", wantErr: ErrInvalidRoom},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := ms.Append(ctx, tt.username, tt.text, tt.room)
			require.Zero(t, id)
			require.ErrorIs(t, err, tt.wantErr)
			require.True(t, IsValidation(err))
			require.False(t, IsStoreUnavailable(err))
		})
	}

	// Failed calls never consume an id.
	id, err := ms.Append(ctx, "u", "x", "public")
	require.NoError(t, err)
	require.Equal(t, int64(1), id)
}

func TestAppendNormalizesInput(t *testing.T) {
	ms := newTestMessageStore(t)
	ctx := context.Background()

	_, err := ms.Append(ctx, "  alice ", "  hello  ", "")
	require.NoError(t, err)
	_, err = ms.Append(ctx, "bob", "hey", " Founders ")
	require.NoError(t, err)

	public := collect(t, ms, 0, "PUBLIC")
	require.Len(t, public, 1)
	require.Equal(t, "alice", public[0].Username)
	require.Equal(t, "hello", public[0].Text)
	require.Equal(t, RoomPublic, public[0].Room)

	require.Len(t, collect(t, ms, 0, "founders"), 1)
	require.Empty(t, collect(t, ms, 0, "lobby"))
}

func TestConcurrentAppendsGetDistinctOrderedIDs(t *testing.T) {
	ms := newTestMessageStore(t)
	ctx := context.Background()

	const writers = 50
	got := make([]int64, writers)

	var g errgroup.Group
	for i := range writers {
		g.Go(func() error {
			room := "public"
			if i%2 == 1 {
				room = "founders"
			}
			id, err := ms.Append(ctx, "writer", "msg", room)
			got[i] = id
			return err
		})
	}
	require.NoError(t, g.Wait())

	sort.Slice(got, func(i, j int) bool { return got[i] < got[j] })
	for i, id := range got {
		require.Equal(t, int64(i+1), id)
	}

	// Within each room the log reads back in strictly ascending id order.
	for _, room := range Rooms() {
		msgs := collect(t, ms, 0, string(room))
		require.Len(t, msgs, writers/2)
		for i := 1; i < len(msgs); i++ {
			require.Greater(t, msgs[i].ID, msgs[i-1].ID)
		}
	}
}

func TestQueryIsRestartable(t *testing.T) {
	ms := newTestMessageStore(t)
	ctx := context.Background()

	for _, text := range []string{"a", "b"} {
		_, err := ms.Append(ctx, "u", text, "public")
		require.NoError(t, err)
	}

	seq := ms.Query(ctx, 0, "public")
	first := drain(t, seq)
	second := drain(t, seq)
	require.Equal(t, first, second)
	require.Equal(t, []int64{1, 2}, ids(first))
}

func drain(t *testing.T, seq iter.Seq2[Message, error]) []Message {
	t.Helper()

	var out []Message
	for msg, err := range seq {
		require.NoError(t, err)
		out = append(out, msg)
	}
	return out
}

func TestNewMessageStoreFailsWhenBootstrapFails(t *testing.T) {
	ctrl := gomock.NewController(t)
	backend := mocks.NewMockMessageLog(ctrl)

	backend.EXPECT().EnsureSchema(gomock.Any()).Return(errors.New("connection refused"))

	ms, err := NewMessageStore(context.Background(), backend, nil)
	require.Error(t, err)
	require.Nil(t, ms)
}

func TestAppendSurfacesBackendFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	backend := mocks.NewMockMessageLog(ctrl)
	ctx := context.Background()

	backend.EXPECT().EnsureSchema(gomock.Any()).Return(nil)
	ms, err := NewMessageStore(ctx, backend, nil)
	require.NoError(t, err)

	cause := errors.New("connection reset")
	backend.EXPECT().Insert(gomock.Any(), gomock.Any()).Return(cause)
	backend.EXPECT().Insert(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, msg *store.Message) error {
		msg.ID = 7
		return nil
	})

	id, err := ms.Append(ctx, "u", "x", "public")
	require.Zero(t, id)
	require.ErrorIs(t, err, cause)
	require.True(t, IsStoreUnavailable(err))

	// The write lock is released after a failed insert.
	id, err = ms.Append(ctx, "u", "x", "public")
	require.NoError(t, err)
	require.Equal(t, int64(7), id)
}

func TestAppendValidationNeverReachesBackend(t *testing.T) {
	ctrl := gomock.NewController(t)
	backend := mocks.NewMockMessageLog(ctrl)

	backend.EXPECT().EnsureSchema(gomock.Any()).Return(nil)
	backend.EXPECT().Insert(gomock.Any(), gomock.Any()).Times(0)

	ms, err := NewMessageStore(context.Background(), backend, nil)
	require.NoError(t, err)

	_, err = ms.Append(context.Background(), "", "x", "public")
	require.True(t, IsValidation(err))
}

func TestQuerySurfacesBackendFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	backend := mocks.NewMockMessageLog(ctrl)
	ctx := context.Background()

	backend.EXPECT().EnsureSchema(gomock.Any()).Return(nil)
	ms, err := NewMessageStore(ctx, backend, nil)
	require.NoError(t, err)

	cause := errors.New("query timeout")
	backend.EXPECT().Since(gomock.Any(), "public", int64(0)).Return(
		iter.Seq2[*store.Message, error](func(yield func(*store.Message, error) bool) {
			yield(nil, cause)
		}),
	)

	var gotErr error
	for _, err := range ms.Query(ctx, 0, "") {
		gotErr = err
	}
	require.ErrorIs(t, gotErr, cause)
	require.True(t, IsStoreUnavailable(gotErr))
}
