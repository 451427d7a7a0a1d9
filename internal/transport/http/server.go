package http

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/pollchat/internal/config"
	chatlog "github.com/vovakirdan/pollchat/internal/log"
	"github.com/vovakirdan/pollchat/internal/rpc"
)

// Server is the HTTP server plus the WebSocket connections it has handed off.
type Server struct {
	*stdhttp.Server
	ws *WSHandler
}

// NewServer builds the HTTP server exposing the RPC transports and the REST facade.
// /ws is served outside gin so the upgrade can hijack an unwritten connection.
func NewServer(svc rpc.ChatService, cfg *config.Config, logger *zerolog.Logger) *Server {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	dispatcher := rpc.NewDispatcher(svc, logger)
	ws := NewWSHandler(dispatcher, cfg.MaxMessageBytes, logger)

	mux := stdhttp.NewServeMux()
	mux.Handle("/ws", chatlog.HTTPMiddleware(logger, ws))
	mux.Handle("/", newRouter(dispatcher, svc, cfg, logger))

	srv := &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
	srv.RegisterOnShutdown(ws.Stop)

	return &Server{Server: srv, ws: ws}
}

// Shutdown stops accepting requests, tells WebSocket connections to stop reading,
// and waits for in-flight calls on both.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.Server.Shutdown(ctx)
	s.ws.Stop()
	return errors.Join(err, s.ws.Wait(ctx))
}

// NewRouter registers the gin routes: /rpc, /api/messages and /health.
func NewRouter(svc rpc.ChatService, cfg *config.Config, logger *zerolog.Logger) *gin.Engine {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return newRouter(rpc.NewDispatcher(svc, logger), svc, cfg, logger)
}

func newRouter(dispatcher *rpc.Dispatcher, svc rpc.ChatService, cfg *config.Config, logger *zerolog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery(), chatlog.GinMiddleware(logger))

	router.GET("/health", healthHandler)
	router.POST("/rpc", BodyLimitMiddleware(cfg.MaxMessageBytes), NewRPCHandler(dispatcher, logger).Call)

	messages := NewMessageHandlers(svc, logger)
	api := router.Group("/api", BodyLimitMiddleware(cfg.MaxMessageBytes))
	api.GET("/messages", messages.List)
	api.POST("/messages", messages.Create)

	return router
}

func healthHandler(c *gin.Context) {
	_, _ = fmt.Fprint(c.Writer, "ok")
}
