package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/vovakirdan/pollchat/internal/proto"
)

// ErrUnexpectedStatus is returned when the server answers with a non-200 status.
var ErrUnexpectedStatus = errors.New("unexpected http status")

// Client calls the chat procedures over JSON-RPC on HTTP.
type Client struct {
	endpoint string
	http     *http.Client
	nextID   atomic.Int64
}

// New creates a client for the given server address.
// addr may be a host:port, a base URL, or the full /rpc endpoint.
func New(addr string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{endpoint: Endpoint(addr), http: httpClient}
}

// Endpoint normalizes addr into the JSON-RPC endpoint URL.
func Endpoint(addr string) string {
	addr = strings.TrimRight(strings.TrimSpace(addr), "/")
	if !strings.HasPrefix(addr, "http://") && !strings.HasPrefix(addr, "https://") {
		addr = "http://" + addr
	}
	if !strings.HasSuffix(addr, "/rpc") {
		addr += "/rpc"
	}
	return addr
}

// SendMessage calls send_message and returns the new message id.
func (c *Client) SendMessage(ctx context.Context, username, text, room string) (int64, error) {
	var id int64
	params := proto.SendMessageParams{Username: username, Text: text, Room: room}
	if err := c.call(ctx, proto.MethodSendMessage, params, &id); err != nil {
		return 0, err
	}
	return id, nil
}

// GetMessages calls get_messages for messages of room newer than lastID.
func (c *Client) GetMessages(ctx context.Context, lastID int64, room string) ([]proto.Message, error) {
	var msgs []proto.Message
	params := proto.GetMessagesParams{LastID: lastID, Room: room}
	if err := c.call(ctx, proto.MethodGetMessages, params, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

type response struct {
	Result json.RawMessage `json:"result"`
	Error  *proto.Error    `json:"error"`
}

// call performs one request. Faults come back as *proto.Error.
func (c *Client) call(ctx context.Context, method string, params, result any) error {
	rawParams, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("marshal params: %w", err)
	}
	rawID, err := json.Marshal(c.nextID.Add(1))
	if err != nil {
		return fmt.Errorf("marshal id: %w", err)
	}

	body, err := json.Marshal(proto.Request{
		JSONRPC: proto.Version,
		Method:  method,
		Params:  rawParams,
		ID:      rawID,
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: %w: %d", method, ErrUnexpectedStatus, resp.StatusCode)
	}

	var out response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("decode %s response: %w", method, err)
	}
	if out.Error != nil {
		return out.Error
	}
	if err := json.Unmarshal(out.Result, result); err != nil {
		return fmt.Errorf("decode %s result: %w", method, err)
	}
	return nil
}
