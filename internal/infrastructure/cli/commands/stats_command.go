package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/doeshing/phocache/internal/app"
	"github.com/doeshing/phocache/internal/domain"
	"github.com/doeshing/phocache/internal/infrastructure/cli/helpers"
)

// statsReport is the JSON shape of 'phocache stats --json'.
type statsReport struct {
	Storage domain.StorageStats     `json:"storage"`
	Counts  map[domain.Category]int `json:"counts"`
}

// NewStatsCommand creates the stats command
func NewStatsCommand(container *app.Container) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show storage usage and record counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showStorageStats(cmd.Context(), cmd.OutOrStdout(), container, asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print stats as JSON")
	return cmd
}

// showStorageStats displays usage against quota and per-category counts
func showStorageStats(ctx context.Context, out io.Writer, container *app.Container, asJSON bool) error {
	service, err := historyService(container)
	if err != nil {
		return err
	}

	report := statsReport{
		Storage: service.StorageStats(ctx),
		Counts:  make(map[domain.Category]int, len(domain.Categories())),
	}
	for _, cat := range domain.Categories() {
		report.Counts[cat] = service.Count(ctx, cat)
	}

	if asJSON {
		return helpers.WriteJSON(out, report)
	}

	fmt.Fprintf(out, "Storage: %s / %s (%.2f%%)\n",
		report.Storage.UsedFormatted,
		report.Storage.QuotaFormatted,
		report.Storage.Percentage)
	fmt.Fprintln(out, helpers.UsageBar(report.Storage.Percentage, usageBarWidth))
	for _, cat := range domain.Categories() {
		fmt.Fprintf(out, "  %-18s %d\n", cat, report.Counts[cat])
	}
	return nil
}
