package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/gookit/color"
	"github.com/spf13/cobra"

	"github.com/vovakirdan/pollchat/internal/client"
	"github.com/vovakirdan/pollchat/internal/proto"
)

const quitCommand = "/quit"

func newChatCommand(root *rootOptions) *cobra.Command {
	var (
		opts     clientOptions
		user     string
		interval time.Duration
		noColor  bool
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Interactive terminal chat",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if noColor {
				color.Enable = false
			}
			logger := clientLogger(cmd, root)

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			c := opts.client()
			out := &lineWriter{w: cmd.OutOrStdout()}
			out.println(color.New(color.FgGreen).Render(
				fmt.Sprintf("connected to %s as %s in #%s (type %s to exit)", opts.server, user, opts.room, quitCommand)))

			watcher := client.NewWatcher(c, opts.room,
				client.WithSelf(user),
				client.WithInterval(interval),
				client.WithLogger(logger),
			)

			var wg sync.WaitGroup
			wg.Add(1)
			go func() {
				defer wg.Done()
				_ = watcher.Run(ctx, func(msg proto.Message) {
					out.println(formatMessage(msg))
				})
			}()

			inputDone := make(chan error, 1)
			go func() {
				inputDone <- readInput(ctx, cmd.InOrStdin(), func(line string) {
					callCtx, callCancel := context.WithTimeout(ctx, opts.timeout)
					defer callCancel()
					if _, err := c.SendMessage(callCtx, user, line, opts.room); err != nil {
						logger.Warn().Err(err).Msg("error while sending message")
					}
				})
			}()

			var err error
			select {
			case err = <-inputDone:
			case <-ctx.Done():
			}

			cancel()
			wg.Wait()
			return err
		},
	}

	opts.bind(cmd)
	flags := cmd.Flags()
	flags.StringVarP(&user, "user", "u", "", "your name")
	flags.DurationVar(&interval, "interval", time.Second, "polling interval")
	flags.BoolVar(&noColor, "no-color", false, "disable colored output")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

// readInput hands every non-blank line of r to send until EOF, /quit or ctx is done.
func readInput(ctx context.Context, r io.Reader, send func(string)) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == quitCommand {
			return nil
		}
		send(line)
	}
	return scanner.Err()
}

// formatMessage renders msg as "[HH:MM:SS] user: text".
func formatMessage(msg proto.Message) string {
	stamp := messageTime(msg).Format("15:04:05")
	return fmt.Sprintf("[%s] %s: %s", stamp, color.New(color.FgCyan, color.OpBold).Render(msg.Username), msg.Text)
}

func messageTime(msg proto.Message) time.Time {
	sec, frac := math.Modf(msg.Timestamp)
	return time.Unix(int64(sec), int64(frac*1e9)).Local()
}

// lineWriter serializes whole lines from the poller and the prompt.
type lineWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lineWriter) println(s string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = fmt.Fprintln(l.w, s)
}
