package rpc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vovakirdan/pollchat/internal/core"
)

var errParamsShape = errors.New("params must be an array or an object")

// paramSet gives positional and named access to request params.
type paramSet struct {
	positional []json.RawMessage
	named      map[string]json.RawMessage
}

func parseParams(raw json.RawMessage) (paramSet, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return paramSet{named: map[string]json.RawMessage{}}, nil
	}

	switch raw[0] {
	case '[':
		var list []json.RawMessage
		if err := json.Unmarshal(raw, &list); err != nil {
			return paramSet{}, fmt.Errorf("decode params: %w", err)
		}
		return paramSet{positional: list}, nil
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(raw, &obj); err != nil {
			return paramSet{}, fmt.Errorf("decode params: %w", err)
		}
		return paramSet{named: obj}, nil
	default:
		return paramSet{}, errParamsShape
	}
}

// lookup returns the param at position pos, or the first of names present.
func (p paramSet) lookup(pos int, names ...string) json.RawMessage {
	if p.named == nil {
		if pos < len(p.positional) {
			return p.positional[pos]
		}
		return nil
	}
	for _, name := range names {
		if v, ok := p.named[name]; ok {
			return v
		}
	}
	return nil
}

// str decodes an optional string param; absent and null read as "".
func (p paramSet) str(pos int, names ...string) (string, error) {
	raw := p.lookup(pos, names...)
	if len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return "", nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("%s must be a string", names[0])
	}
	return s, nil
}

type sendMessageArgs struct {
	username string
	text     string
	room     string
}

func decodeSendMessage(raw json.RawMessage) (sendMessageArgs, error) {
	params, err := parseParams(raw)
	if err != nil {
		return sendMessageArgs{}, err
	}

	var args sendMessageArgs
	if args.username, err = params.str(0, "username"); err != nil {
		return sendMessageArgs{}, err
	}
	if args.text, err = params.str(1, "text"); err != nil {
		return sendMessageArgs{}, err
	}
	if args.room, err = params.str(2, "room"); err != nil {
		return sendMessageArgs{}, err
	}
	return args, nil
}

type getMessagesArgs struct {
	sinceID int64
	room    string
}

func decodeGetMessages(raw json.RawMessage) (getMessagesArgs, error) {
	params, err := parseParams(raw)
	if err != nil {
		return getMessagesArgs{}, err
	}

	args := getMessagesArgs{
		sinceID: core.ParseWatermark(params.lookup(0, "last_id", "since_id")),
	}
	if args.room, err = params.str(1, "room"); err != nil {
		return getMessagesArgs{}, err
	}
	return args, nil
}
