package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newSendCommand(_ *rootOptions) *cobra.Command {
	var (
		opts clientOptions
		user string
	)

	cmd := &cobra.Command{
		Use:   "send [text...]",
		Short: "Send one message and print its id",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()

			id, err := opts.client().SendMessage(ctx, user, strings.Join(args, " "), opts.room)
			if err != nil {
				return fmt.Errorf("send message: %w", err)
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), id)
			return err
		},
	}

	opts.bind(cmd)
	cmd.Flags().StringVarP(&user, "user", "u", "", "sender name")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}
