package cli

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/vovakirdan/pollchat/internal/client"
	chatlog "github.com/vovakirdan/pollchat/internal/log"
)

const defaultServer = "http://127.0.0.1:9000/rpc"

// clientOptions are shared by the commands talking to a running server.
type clientOptions struct {
	server  string
	room    string
	timeout time.Duration
}

func (o *clientOptions) bind(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVar(&o.server, "server", defaultServer, "server address or RPC endpoint")
	flags.StringVar(&o.room, "room", "public", "chat room (public or founders)")
	flags.DurationVar(&o.timeout, "timeout", 10*time.Second, "per-call timeout")
}

func (o *clientOptions) client() *client.Client {
	return client.New(o.server, nil)
}

func clientLogger(cmd *cobra.Command, root *rootOptions) *zerolog.Logger {
	level := root.logLevel
	if level == "" {
		level = "warn"
	}
	return chatlog.NewWithWriter(cmd.ErrOrStderr(), level, "console")
}
