package http

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/pollchat/internal/config"
	"github.com/vovakirdan/pollchat/internal/core"
	"github.com/vovakirdan/pollchat/internal/rpc"
	"github.com/vovakirdan/pollchat/internal/store/sqlite"
)

// createTestService creates a ChatService over an in-memory SQLite log.
func createTestService(t *testing.T) *rpc.Service {
	t.Helper()

	backend, err := sqlite.New(":memory:")
	require.NoError(t, err)

	ms, err := core.NewMessageStore(context.Background(), backend, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ms.Close() })

	return rpc.NewService(ms)
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Addr = ":0"
	cfg.ReadHeaderTimeout = time.Second
	cfg.ShutdownTimeout = time.Second
	cfg.MaxMessageBytes = 4 << 10
	return &cfg
}

func startTestServer(t *testing.T, svc rpc.ChatService) *httptest.Server {
	t.Helper()

	ts, _ := startTestServerWithHandle(t, svc)
	return ts
}

// startTestServerWithHandle also returns the Server so tests can drive its shutdown.
func startTestServerWithHandle(t *testing.T, svc rpc.ChatService) (*httptest.Server, *Server) {
	t.Helper()

	disabledLogger := zerolog.New(nil)
	server := NewServer(svc, testConfig(), &disabledLogger)

	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)
	return ts, server
}

func wsURL(ts *httptest.Server) string {
	return strings.Replace(ts.URL, "http", "ws", 1) + "/ws"
}
