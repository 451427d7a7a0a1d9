package postgres

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"

	"github.com/vovakirdan/pollchat/internal/store"
)

func TestConfigDSN(t *testing.T) {
	cfg := Config{
		Host:     "db.internal",
		Port:     5433,
		User:     "chatuser",
		Password: "chatpass",
		DBName:   "chatdb",
	}
	require.Equal(t,
		"host=db.internal port=5433 user=chatuser password=chatpass dbname=chatdb sslmode=disable",
		cfg.DSN(),
	)

	cfg.SSLMode = "require"
	require.Contains(t, cfg.DSN(), "sslmode=require")
}

func TestGormWarningsReachInfoLogger(t *testing.T) {
	var buf bytes.Buffer
	zl := zerolog.New(&buf).Level(zerolog.InfoLevel)

	gl := logger.New(gormWriter{log: &zl}, logger.Config{LogLevel: logger.Warn})
	gl.Warn(context.Background(), "slow query on %s", store.TableName)

	require.Contains(t, buf.String(), `"level":"warn"`)
	require.Contains(t, buf.String(), "slow query on chat_messages")
}

// newTestStore connects to the database named by CHAT_TEST_POSTGRES_DSN and
// isolates the test in a throwaway schema.
func newTestStore(t *testing.T) *PostgresStore {
	t.Helper()

	dsn := os.Getenv("CHAT_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("CHAT_TEST_POSTGRES_DSN not set")
	}

	schema := fmt.Sprintf("pollchat_test_%d", time.Now().UnixNano())
	admin, err := Open(dsn, 1, 1, nil)
	require.NoError(t, err)
	require.NoError(t, admin.db.Exec("CREATE SCHEMA "+schema).Error)
	t.Cleanup(func() {
		_ = admin.db.Exec("DROP SCHEMA " + schema + " CASCADE").Error
		_ = admin.Close()
	})

	s, err := Open(dsn+" search_path="+schema, 4, 4, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.EnsureSchema(context.Background()))
	return s
}

func TestPostgresAppendAndSince(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.EnsureSchema(ctx))

	alice := &store.Message{Username: "alice", Room: "public", Text: "hello"}
	carol := &store.Message{Username: "carol", Room: "founders", Text: "secret"}
	bob := &store.Message{Username: "bob", Room: "public", Text: "hi"}
	for _, msg := range []*store.Message{alice, carol, bob} {
		require.NoError(t, s.Insert(ctx, msg))
		require.NotZero(t, msg.ID)
		require.False(t, msg.CreatedAt.IsZero())
	}
	require.Less(t, alice.ID, carol.ID)
	require.Less(t, carol.ID, bob.ID)

	var public []string
	for msg, err := range s.Since(ctx, "public", alice.ID) {
		require.NoError(t, err)
		public = append(public, msg.Text)
	}
	require.Equal(t, []string{"hi"}, public)
}

func TestPostgresConcurrentInsertsAreDistinct(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	const writers = 20
	ids := make([]int64, writers)
	var wg sync.WaitGroup
	for i := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			msg := &store.Message{Username: "w", Room: "public", Text: "x"}
			if err := s.Insert(ctx, msg); err == nil {
				ids[i] = msg.ID
			}
		}()
	}
	wg.Wait()

	seen := make(map[int64]bool, writers)
	for _, id := range ids {
		require.NotZero(t, id)
		require.False(t, seen[id], "duplicate id %d", id)
		seen[id] = true
	}
}
