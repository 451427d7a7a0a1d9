package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	chatlog "github.com/vovakirdan/pollchat/internal/log"
	"github.com/vovakirdan/pollchat/internal/proto"
	"github.com/vovakirdan/pollchat/internal/rpc/mocks"
)

type rpcReply struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result"`
	Error   *proto.Error    `json:"error"`
	ID      json.RawMessage `json:"id"`
}

func postRPC(t *testing.T, url, body string) rpcReply {
	t.Helper()

	resp, err := http.Post(url+"/rpc", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var reply rpcReply
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&reply))
	require.Equal(t, proto.Version, reply.JSONRPC)
	return reply
}

func TestHealthEndpoint(t *testing.T) {
	ts := startTestServer(t, createTestService(t))

	resp, err := ts.Client().Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "ok", string(body))
	require.NotEmpty(t, resp.Header.Get(chatlog.HeaderRequestID))
}

func TestRequestIDIsEchoed(t *testing.T) {
	ts := startTestServer(t, createTestService(t))

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/health", nil)
	require.NoError(t, err)
	req.Header.Set(chatlog.HeaderRequestID, "req-123")

	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "req-123", resp.Header.Get(chatlog.HeaderRequestID))
}

func TestRPCOverHTTP(t *testing.T) {
	ts := startTestServer(t, createTestService(t))

	reply := postRPC(t, ts.URL, `{"jsonrpc":"2.0","id":1,"method":"send_message","params":["alice","hello","public"]}`)
	require.Nil(t, reply.Error)
	require.JSONEq(t, "1", string(reply.Result))

	reply = postRPC(t, ts.URL, `{"jsonrpc":"2.0","id":2,"method":"send_message","params":{"username":"bob","text":"hi"}}`)
	require.Nil(t, reply.Error)
	require.JSONEq(t, "2", string(reply.Result))

	reply = postRPC(t, ts.URL, `{"jsonrpc":"2.0","id":3,"method":"send_message","params":["u","","public"]}`)
	require.NotNil(t, reply.Error)
	require.Equal(t, proto.FaultValidation, reply.Error.Fault())

	reply = postRPC(t, ts.URL, `{"jsonrpc":"2.0","id":4,"method":"get_messages","params":[1,"public"]}`)
	require.Nil(t, reply.Error)
	var msgs []proto.Message
	require.NoError(t, json.Unmarshal(reply.Result, &msgs))
	require.Len(t, msgs, 1)
	require.Equal(t, "bob", msgs[0].Username)

	reply = postRPC(t, ts.URL, `{"jsonrpc":"2.0","id":5,"method":"get_messages","params":[2]}`)
	require.Nil(t, reply.Error)
	require.JSONEq(t, "[]", string(reply.Result))

	reply = postRPC(t, ts.URL, `not json`)
	require.NotNil(t, reply.Error)
	require.Equal(t, proto.CodeParseError, reply.Error.Code)
}

func TestRPCBodyLimit(t *testing.T) {
	ts := startTestServer(t, createTestService(t))

	text := strings.Repeat("x", 8<<10)
	body := `{"jsonrpc":"2.0","id":1,"method":"send_message","params":["alice","` + text + `"]}`

	reply := postRPC(t, ts.URL, body)
	require.NotNil(t, reply.Error)
	require.Equal(t, proto.CodeInvalidRequest, reply.Error.Code)
	require.Equal(t, proto.FaultProtocol, reply.Error.Fault())
	require.JSONEq(t, "null", string(reply.ID))
}

func TestRESTFacade(t *testing.T) {
	ts := startTestServer(t, createTestService(t))

	post := func(body string) (int, map[string]any) {
		t.Helper()
		resp, err := http.Post(ts.URL+"/api/messages", "application/json", bytes.NewBufferString(body))
		require.NoError(t, err)
		defer resp.Body.Close()

		var out map[string]any
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		return resp.StatusCode, out
	}

	status, out := post(`{"username":"alice","text":"hello"}`)
	require.Equal(t, http.StatusOK, status)
	require.EqualValues(t, 1, out["id"])

	status, out = post(`{"username":"carol","text":"secret","room":"founders"}`)
	require.Equal(t, http.StatusOK, status)
	require.EqualValues(t, 2, out["id"])

	status, out = post(`{"username":"dave","text":"x","room":"lobby"}`)
	require.Equal(t, http.StatusBadRequest, status)
	require.NotEmpty(t, out["error"])

	status, _ = post(`{"username":`)
	require.Equal(t, http.StatusBadRequest, status)

	get := func(query string) []proto.Message {
		t.Helper()
		resp, err := http.Get(ts.URL + "/api/messages" + query)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var msgs []proto.Message
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&msgs))
		return msgs
	}

	public := get("")
	require.Len(t, public, 1)
	require.Equal(t, "alice", public[0].Username)

	founders := get("?room=founders&since_id=0")
	require.Len(t, founders, 1)
	require.Equal(t, int64(2), founders[0].ID)

	require.Empty(t, get("?room=founders&last_id=2"))
	require.Len(t, get("?since_id=abc"), 1)
}

func TestRPCOverWebSocket(t *testing.T) {
	ts := startTestServer(t, createTestService(t))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, resp, err := websocket.Dial(ctx, wsURL(ts), nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "done")
	require.NotEmpty(t, resp.Header.Get(chatlog.HeaderRequestID))

	call := func(req string) rpcReply {
		t.Helper()
		require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte(req)))

		var reply rpcReply
		require.NoError(t, wsjson.Read(ctx, conn, &reply))
		return reply
	}

	reply := call(`{"jsonrpc":"2.0","id":"a","method":"send_message","params":["alice","over ws"]}`)
	require.Nil(t, reply.Error)
	require.JSONEq(t, `"a"`, string(reply.ID))
	require.JSONEq(t, "1", string(reply.Result))

	reply = call(`{"jsonrpc":"2.0","id":"b","method":"get_messages","params":{"last_id":0}}`)
	require.Nil(t, reply.Error)
	var msgs []proto.Message
	require.NoError(t, json.Unmarshal(reply.Result, &msgs))
	require.Len(t, msgs, 1)
	require.Equal(t, "over ws", msgs[0].Text)

	reply = call(`{"jsonrpc":"2.0","id":"c","method":"nope"}`)
	require.NotNil(t, reply.Error)
	require.Equal(t, proto.CodeMethodNotFound, reply.Error.Code)
}

func TestWebSocketFramesDispatchConcurrently(t *testing.T) {
	ts := startTestServer(t, createTestService(t))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, wsURL(ts), nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "done")

	const calls = 40
	for i := 1; i <= calls; i++ {
		frame := fmt.Sprintf(`{"jsonrpc":"2.0","id":%d,"method":"send_message","params":["user%d","msg %d"]}`, i, i, i)
		require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte(frame)))
	}

	byRequest := make(map[int64]int64, calls)
	seenIDs := make(map[int64]bool, calls)
	for range calls {
		var reply rpcReply
		require.NoError(t, wsjson.Read(ctx, conn, &reply))
		require.Nil(t, reply.Error)

		var reqID, msgID int64
		require.NoError(t, json.Unmarshal(reply.ID, &reqID))
		require.NoError(t, json.Unmarshal(reply.Result, &msgID))

		_, dup := byRequest[reqID]
		require.False(t, dup, "request %d answered twice", reqID)
		require.False(t, seenIDs[msgID], "message id %d handed out twice", msgID)

		byRequest[reqID] = msgID
		seenIDs[msgID] = true
	}

	for i := int64(1); i <= calls; i++ {
		require.Contains(t, byRequest, i)
		require.True(t, seenIDs[i])
	}
}

func TestShutdownWaitsForWebSocketCalls(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockChatService(ctrl)

	started := make(chan struct{})
	release := make(chan struct{})
	var finished atomic.Bool

	svc.EXPECT().SendMessage(gomock.Any(), "alice", "slow", "").
		DoAndReturn(func(context.Context, string, string, string) (int64, error) {
			close(started)
			<-release
			finished.Store(true)
			return 1, nil
		})

	ts, server := startTestServerWithHandle(t, svc)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, wsURL(ts), nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "done")

	frame := `{"jsonrpc":"2.0","id":1,"method":"send_message","params":["alice","slow"]}`
	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte(frame)))
	<-started

	shutdownErr := make(chan error, 1)
	go func() { shutdownErr <- server.Shutdown(ctx) }()

	select {
	case err := <-shutdownErr:
		t.Fatalf("shutdown returned before the call finished: %v", err)
	case <-time.After(100 * time.Millisecond):
	}

	close(release)
	require.NoError(t, <-shutdownErr)
	require.True(t, finished.Load())

	_, resp, err := websocket.Dial(ctx, wsURL(ts), nil)
	require.Error(t, err)
	if resp != nil {
		require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	}
}
