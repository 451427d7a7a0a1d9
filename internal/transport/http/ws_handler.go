package http

import (
	"context"
	"errors"
	"io"
	stdhttp "net/http"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	chatlog "github.com/vovakirdan/pollchat/internal/log"
	"github.com/vovakirdan/pollchat/internal/rpc"
)

// WSHandler upgrades HTTP connections and answers JSON-RPC requests sent as text frames.
// Each frame is an independent call; the connection carries no chat state.
type WSHandler struct {
	dispatcher *rpc.Dispatcher
	readLimit  int64
	log        *zerolog.Logger

	// base is cancelled by Stop and ends every read loop.
	base   context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	stopped bool
	active  sync.WaitGroup
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(dispatcher *rpc.Dispatcher, readLimit int64, logger *zerolog.Logger) *WSHandler {
	base, cancel := context.WithCancel(context.Background())
	return &WSHandler{
		dispatcher: dispatcher,
		readLimit:  readLimit,
		log:        logger,
		base:       base,
		cancel:     cancel,
	}
}

// Stop refuses new connections and makes open ones stop reading frames.
// Calls already dispatched still run to completion.
func (h *WSHandler) Stop() {
	h.mu.Lock()
	h.stopped = true
	h.mu.Unlock()
	h.cancel()
}

// Wait blocks until every connection has finished its in-flight calls, or ctx is done.
func (h *WSHandler) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		h.active.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *WSHandler) track() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		return false
	}
	h.active.Add(1)
	return true
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	if !h.track() {
		stdhttp.Error(w, "server shutting down", stdhttp.StatusServiceUnavailable)
		return
	}
	defer h.active.Done()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")

	if h.readLimit > 0 {
		conn.SetReadLimit(h.readLimit)
	}

	connID := uuid.New().String()
	logger := chatlog.Ctx(r.Context(), h.log).With().Str("conn_id", connID).Logger()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	stopAfter := context.AfterFunc(h.base, cancel)
	defer stopAfter()

	err = h.readLoop(ctx, conn, &logger)

	status := websocket.StatusNormalClosure
	reason := "closing"
	if h.base.Err() != nil {
		status = websocket.StatusGoingAway
		reason = "server shutting down"
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != -1 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = err.Error()
			logger.Warn().Err(err).Msg("ws connection closed with error")
		}
	}

	conn.Close(status, reason)
}

// readLoop dispatches every inbound frame on its own goroutine and waits for
// in-flight calls before returning. Calls are not cancelled when ctx ends.
func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, logger *zerolog.Logger) error {
	var wg sync.WaitGroup
	defer wg.Wait()

	callCtx := context.WithoutCancel(ctx)

	for {
		typ, payload, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		if typ != websocket.MessageText {
			logger.Debug().Msg("ignoring binary frame")
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()

			resp := h.dispatcher.Handle(callCtx, payload)
			if err := wsjson.Write(callCtx, conn, resp); err != nil {
				logger.Debug().Err(err).Msg("write ws response")
			}
		}()
	}
}
