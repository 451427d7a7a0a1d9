package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/vovakirdan/pollchat/internal/proto"
)

func newHistoryCommand(_ *rootOptions) *cobra.Command {
	var (
		opts  clientOptions
		since int64
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print the messages of a room newer than a watermark",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()

			msgs, err := opts.client().GetMessages(ctx, since, opts.room)
			if err != nil {
				return fmt.Errorf("get messages: %w", err)
			}

			renderHistory(cmd.OutOrStdout(), msgs)
			return nil
		},
	}

	opts.bind(cmd)
	cmd.Flags().Int64Var(&since, "since", 0, "only show messages with a greater id")

	return cmd
}

func renderHistory(w io.Writer, msgs []proto.Message) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"ID", "Time", "User", "Text"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	for _, msg := range msgs {
		table.Append([]string{
			strconv.FormatInt(msg.ID, 10),
			messageTime(msg).Format("2006-01-02 15:04:05"),
			msg.Username,
			msg.Text,
		})
	}
	table.Render()
}
