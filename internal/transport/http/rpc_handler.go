package http

import (
	"errors"
	"io"
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	chatlog "github.com/vovakirdan/pollchat/internal/log"
	"github.com/vovakirdan/pollchat/internal/proto"
	"github.com/vovakirdan/pollchat/internal/rpc"
)

// RPCHandler serves one JSON-RPC call per HTTP POST.
type RPCHandler struct {
	dispatcher *rpc.Dispatcher
	log        *zerolog.Logger
}

// NewRPCHandler creates a new RPC handler instance.
func NewRPCHandler(dispatcher *rpc.Dispatcher, logger *zerolog.Logger) *RPCHandler {
	return &RPCHandler{dispatcher: dispatcher, log: logger}
}

// Call handles a JSON-RPC request.
// POST /rpc
func (h *RPCHandler) Call(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var tooLarge *stdhttp.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(stdhttp.StatusOK, &proto.Response{
				JSONRPC: proto.Version,
				Error:   proto.NewFault(proto.CodeInvalidRequest, proto.FaultProtocol, "request body too large"),
				ID:      []byte("null"),
			})
			return
		}
		chatlog.Ctx(c.Request.Context(), h.log).Debug().Err(err).Msg("read rpc body")
		c.Status(stdhttp.StatusBadRequest)
		return
	}

	resp := h.dispatcher.Handle(c.Request.Context(), body)
	c.JSON(stdhttp.StatusOK, resp)
}
