package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/phrazzld/imglabel/internal/app"
	"github.com/phrazzld/imglabel/internal/domain"
	"github.com/phrazzld/imglabel/internal/queue"
)

func newDLQCommand(ctx *commandContext) *cobra.Command {
	dlqCmd := &cobra.Command{
		Use:   "dlq",
		Short: "Inspect and redrive dead-lettered messages",
	}

	dlqCmd.AddCommand(newDLQListCommand(ctx))
	dlqCmd.AddCommand(newDLQShowCommand(ctx))
	dlqCmd.AddCommand(newDLQRedriveCommand(ctx))

	return dlqCmd
}

func newDLQListCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List dead letters, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd.Context(), func(a *app.App) error {
				entries, err := a.DeadLetters.ListDeadLetters(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if len(entries) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Dead-letter queue is empty")
					return nil
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Object", "Failures", "Moved", "Redriven"},
					buildDeadLetterRows(entries),
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum number of entries to list")
	return cmd
}

func newDLQShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one dead letter with its payload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd.Context(), func(a *app.App) error {
				dl, err := a.DeadLetters.GetDeadLetter(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				rows := [][]string{
					{"ID", dl.ID},
					{"Message ID", dl.Message.ID},
					{"Object", objectKey(dl)},
					{"Failures", strconv.Itoa(dl.FailureCount)},
					{"Last error", dl.LastError},
					{"Enqueued", formatTime(dl.Message.EnqueuedAt)},
					{"Moved", formatTime(dl.MovedAt)},
					{"Redriven", formatRedriven(dl.RedrivenAt)},
				}
				out := cmd.OutOrStdout()
				fmt.Fprint(out, renderTable([]string{"Field", "Value"}, rows, nil))
				fmt.Fprintf(out, "Payload:\n%s\n", dl.Message.Body)
				return nil
			})
		},
	}
}

func newDLQRedriveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "redrive <id>...",
		Short: "Send dead letters back to the queue as fresh messages",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd.Context(), func(a *app.App) error {
				for _, id := range args {
					msgID, err := a.DeadLetters.Redrive(cmd.Context(), id)
					if err != nil {
						return fmt.Errorf("redrive %s: %w", id, err)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Redrove %s as message %s\n", id, msgID)
				}
				return nil
			})
		},
	}
}

func buildDeadLetterRows(entries []*queue.DeadLetter) [][]string {
	rows := make([][]string, 0, len(entries))
	for _, dl := range entries {
		rows = append(rows, []string{
			dl.ID,
			objectKey(dl),
			strconv.Itoa(dl.FailureCount),
			formatTime(dl.MovedAt),
			formatRedriven(dl.RedrivenAt),
		})
	}
	return rows
}

// objectKey names the object a dead letter was about, or "(unreadable)" when
// the payload is not a notification.
func objectKey(dl *queue.DeadLetter) string {
	n, err := domain.ParseNotification(dl.Message.Body)
	if err != nil {
		return "(unreadable)"
	}
	return n.ObjectKey
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}

func formatRedriven(t *time.Time) string {
	if t == nil {
		return "no"
	}
	return formatTime(*t)
}
