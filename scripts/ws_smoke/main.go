package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/pollchat/internal/proto"
)

func main() {
	if err := run(); err != nil {
		log.Printf("ws_smoke: %v", err)
		os.Exit(1)
	}
}

type reply struct {
	ID     int64           `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *proto.Error    `json:"error"`
}

func run() error {
	addr := flag.String("addr", "ws://localhost:9000/ws", "WebSocket address")
	user := flag.String("user", "tester", "sender name")
	room := flag.String("room", "public", "room name")
	text := flag.String("text", "hello from smoke test", "message text to send")
	timeout := flag.Duration("timeout", 5*time.Second, "total timeout for the run")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, *addr, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	call := func(id int64, method string, params any) (json.RawMessage, error) {
		raw, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("marshal %s params: %w", method, err)
		}
		rawID, _ := json.Marshal(id)
		req := proto.Request{JSONRPC: proto.Version, Method: method, Params: raw, ID: rawID}
		if err := wsjson.Write(ctx, conn, req); err != nil {
			return nil, fmt.Errorf("send %s: %w", method, err)
		}

		var resp reply
		if err := wsjson.Read(ctx, conn, &resp); err != nil {
			return nil, fmt.Errorf("read %s: %w", method, err)
		}
		if resp.Error != nil {
			return nil, resp.Error
		}
		return resp.Result, nil
	}

	result, err := call(1, proto.MethodSendMessage, proto.SendMessageParams{Username: *user, Text: *text, Room: *room})
	if err != nil {
		return err
	}
	var id int64
	if err := json.Unmarshal(result, &id); err != nil {
		return fmt.Errorf("decode id: %w", err)
	}
	fmt.Printf("sent message id=%d room=%s\n", id, *room)

	result, err = call(2, proto.MethodGetMessages, proto.GetMessagesParams{LastID: id - 1, Room: *room})
	if err != nil {
		return err
	}
	var msgs []proto.Message
	if err := json.Unmarshal(result, &msgs); err != nil {
		return fmt.Errorf("decode messages: %w", err)
	}

	for _, m := range msgs {
		fmt.Printf("message: id=%d user=%s text=%q ts=%.3f\n", m.ID, m.Username, m.Text, m.Timestamp)
	}
	if len(msgs) == 0 || msgs[0].ID != id {
		return fmt.Errorf("message %d not returned by get_messages", id)
	}
	return nil
}
