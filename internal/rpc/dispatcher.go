package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/pollchat/internal/core"
	chatlog "github.com/vovakirdan/pollchat/internal/log"
	"github.com/vovakirdan/pollchat/internal/proto"
)

// Dispatcher routes JSON-RPC requests to a ChatService.
// It keeps no state between calls and may be used concurrently.
type Dispatcher struct {
	svc ChatService
	log *zerolog.Logger
}

// NewDispatcher creates a dispatcher for svc.
func NewDispatcher(svc ChatService, logger *zerolog.Logger) *Dispatcher {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Dispatcher{svc: svc, log: logger}
}

// Handle decodes one JSON-RPC request from payload and returns its response.
func (d *Dispatcher) Handle(ctx context.Context, payload []byte) *proto.Response {
	payload = bytes.TrimSpace(payload)
	if len(payload) == 0 || payload[0] != '{' {
		if !json.Valid(payload) {
			return errorResponse(nil, proto.NewFault(proto.CodeParseError, proto.FaultProtocol, "parse error"))
		}
		return errorResponse(nil, proto.NewFault(proto.CodeInvalidRequest, proto.FaultProtocol, "request must be a JSON object"))
	}

	var req proto.Request
	if err := json.Unmarshal(payload, &req); err != nil {
		if !json.Valid(payload) {
			return errorResponse(nil, proto.NewFault(proto.CodeParseError, proto.FaultProtocol, "parse error"))
		}
		return errorResponse(nil, proto.NewFault(proto.CodeInvalidRequest, proto.FaultProtocol, "malformed request"))
	}

	return d.Call(ctx, &req)
}

// Call dispatches a decoded request against the fixed procedure set.
func (d *Dispatcher) Call(ctx context.Context, req *proto.Request) *proto.Response {
	if req.JSONRPC != proto.Version {
		return errorResponse(req.ID, proto.NewFault(proto.CodeInvalidRequest, proto.FaultProtocol, "jsonrpc must be \"2.0\""))
	}
	if req.Method == "" {
		return errorResponse(req.ID, proto.NewFault(proto.CodeInvalidRequest, proto.FaultProtocol, "method is required"))
	}

	logger := chatlog.Ctx(ctx, d.log).With().Str("rpc_method", req.Method).Logger()

	switch req.Method {
	case proto.MethodSendMessage:
		args, err := decodeSendMessage(req.Params)
		if err != nil {
			return errorResponse(req.ID, proto.NewFault(proto.CodeInvalidParams, proto.FaultProtocol, err.Error()))
		}
		id, err := d.svc.SendMessage(ctx, args.username, args.text, args.room)
		if err != nil {
			logger.Debug().Err(err).Msg("send_message failed")
			return errorResponse(req.ID, faultFromError(err))
		}
		return resultResponse(req.ID, id)

	case proto.MethodGetMessages:
		args, err := decodeGetMessages(req.Params)
		if err != nil {
			return errorResponse(req.ID, proto.NewFault(proto.CodeInvalidParams, proto.FaultProtocol, err.Error()))
		}
		msgs, err := d.svc.GetMessages(ctx, args.sinceID, args.room)
		if err != nil {
			logger.Debug().Err(err).Msg("get_messages failed")
			return errorResponse(req.ID, faultFromError(err))
		}
		if msgs == nil {
			msgs = []proto.Message{}
		}
		return resultResponse(req.ID, msgs)

	default:
		return errorResponse(req.ID, proto.NewFault(proto.CodeMethodNotFound, proto.FaultProtocol, "unknown method: "+req.Method))
	}
}

// faultFromError maps service errors onto named protocol faults.
func faultFromError(err error) *proto.Error {
	var coreErr *core.CoreError
	if errors.As(err, &coreErr) && coreErr.Code == core.ErrCodeValidation {
		return proto.NewFault(proto.CodeValidation, proto.FaultValidation, coreErr.Message)
	}
	return proto.NewFault(proto.CodeStoreFailure, proto.FaultTransientStore, "message store unavailable")
}

func resultResponse(id json.RawMessage, result any) *proto.Response {
	return &proto.Response{JSONRPC: proto.Version, Result: result, ID: normalizeID(id)}
}

func errorResponse(id json.RawMessage, rpcErr *proto.Error) *proto.Response {
	return &proto.Response{JSONRPC: proto.Version, Error: rpcErr, ID: normalizeID(id)}
}

func normalizeID(id json.RawMessage) json.RawMessage {
	if len(id) == 0 {
		return json.RawMessage("null")
	}
	return id
}
