package main

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/therealutkarshpriyadarshi/captionpipe/internal/database"
	"github.com/therealutkarshpriyadarshi/captionpipe/pkg/models"
)

func newMigrateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ctx.migrate(cmd.Context()); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Schema is up to date")
			return nil
		},
	}
}

func newItemsCommand(ctx *commandContext) *cobra.Command {
	itemsCmd := &cobra.Command{
		Use:   "items",
		Short: "Inspect and requeue queue items",
	}

	itemsCmd.AddCommand(newItemsListCommand(ctx))
	itemsCmd.AddCommand(newItemsStatsCommand(ctx))
	itemsCmd.AddCommand(newItemsShowCommand(ctx))
	itemsCmd.AddCommand(newItemsRequeueCommand(ctx))

	return itemsCmd
}

func newItemsListCommand(ctx *commandContext) *cobra.Command {
	var status string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queue items, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := parseStatus(status)
			if err != nil {
				return err
			}
			return ctx.withStore(cmd.Context(), func(store itemStore) error {
				items, err := store.ListQueueItems(cmd.Context(), filter, limit, 0)
				if err != nil {
					return err
				}
				if len(items) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No queue items")
					return nil
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Name", "Status", "Progress", "Attempts", "Updated"},
					buildItemRows(items),
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Only show items with this status (pending, processing, completed, failed)")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of items to show")
	return cmd
}

func newItemsStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Count queue items by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd.Context(), func(store itemStore) error {
				counts, err := store.CountQueueItemsByStatus(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(
					[]string{"Status", "Count"},
					buildStatsRows(counts),
					[]columnAlignment{alignLeft, alignRight},
				))
				return nil
			})
		},
	}
}

func newItemsShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one queue item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd.Context(), func(store itemStore) error {
				item, err := store.GetQueueItem(cmd.Context(), args[0])
				if errors.Is(err, database.ErrNotFound) {
					return fmt.Errorf("queue item %s not found", args[0])
				}
				if err != nil {
					return err
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(
					[]string{"Field", "Value"},
					buildDetailRows(item),
					[]columnAlignment{alignLeft, alignLeft},
				))
				return nil
			})
		},
	}
}

func newItemsRequeueCommand(ctx *commandContext) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "requeue <id>",
		Short: "Publish a pending item to the work queue again",
		Long: `Publish a pending item to the work queue again.

An item that is still processing may be held by a running worker, and a
second claim would share its scratch directory. Pass --force only when that
worker is known to be gone.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd.Context(), func(store itemStore) error {
				item, err := store.GetQueueItem(cmd.Context(), args[0])
				if errors.Is(err, database.ErrNotFound) {
					return fmt.Errorf("queue item %s not found", args[0])
				}
				if err != nil {
					return err
				}
				if item.IsTerminal() {
					return fmt.Errorf("queue item %s is %s; only pending items can be requeued", item.ID, item.Status)
				}
				if item.Status == models.QueueStatusProcessing && !force {
					return fmt.Errorf("queue item %s is processing; pass --force if no worker holds it", item.ID)
				}

				q, closeFn, err := ctx.openQueue(cmd.Context())
				if err != nil {
					return err
				}
				defer closeFn()

				if err := q.Requeue(cmd.Context(), item.ID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Requeued %s\n", item.ID)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Also requeue an item that is still processing")
	return cmd
}

func parseStatus(raw string) (models.QueueStatus, error) {
	switch status := models.QueueStatus(raw); status {
	case "", models.QueueStatusPending, models.QueueStatusProcessing, models.QueueStatusCompleted, models.QueueStatusFailed:
		return status, nil
	default:
		return "", fmt.Errorf("unknown status %q", raw)
	}
}

func buildItemRows(items []*models.QueueItem) [][]string {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			item.ID,
			item.OriginalName,
			string(item.Status),
			fmt.Sprintf("%d%%", item.Progress),
			strconv.Itoa(item.Attempts),
			formatTime(item.UpdatedAt),
		})
	}
	return rows
}

var statusOrder = []models.QueueStatus{
	models.QueueStatusPending,
	models.QueueStatusProcessing,
	models.QueueStatusCompleted,
	models.QueueStatusFailed,
}

func buildStatsRows(counts map[models.QueueStatus]int) [][]string {
	rows := make([][]string, 0, len(counts))
	seen := map[models.QueueStatus]bool{}
	for _, status := range statusOrder {
		seen[status] = true
		rows = append(rows, []string{string(status), strconv.Itoa(counts[status])})
	}

	var extra []string
	for status := range counts {
		if !seen[status] {
			extra = append(extra, string(status))
		}
	}
	sort.Strings(extra)
	for _, status := range extra {
		rows = append(rows, []string{status, strconv.Itoa(counts[models.QueueStatus(status)])})
	}
	return rows
}

func buildDetailRows(item *models.QueueItem) [][]string {
	rows := [][]string{
		{"ID", item.ID},
		{"User", item.UserID},
		{"Folder", item.FolderID},
		{"Name", item.OriginalName},
		{"File", item.FilePath},
		{"Size", strconv.FormatInt(item.FileSize, 10)},
		{"Status", string(item.Status)},
		{"Progress", fmt.Sprintf("%d%%", item.Progress)},
		{"Attempts", strconv.Itoa(item.Attempts)},
	}
	if item.ErrorMessage != "" {
		rows = append(rows, []string{"Error", item.ErrorMessage})
	}
	if item.MediaUploadID != nil {
		rows = append(rows, []string{"Media upload", *item.MediaUploadID})
	}
	if item.ProcessedAt != nil {
		rows = append(rows, []string{"Processed", formatTime(*item.ProcessedAt)})
	}
	rows = append(rows,
		[]string{"Created", formatTime(item.CreatedAt)},
		[]string{"Updated", formatTime(item.UpdatedAt)},
	)
	return rows
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
