package commands

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/doeshing/phocache/internal/app"
	historyapp "github.com/doeshing/phocache/internal/application/history"
	"github.com/doeshing/phocache/internal/domain"
	"github.com/doeshing/phocache/internal/infrastructure/cli/helpers"
	"github.com/doeshing/phocache/internal/infrastructure/imaging"
)

// NewHistoryCommand creates the history command with all subcommands
func NewHistoryCommand(container *app.Container) *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Save and inspect captured photos",
	}

	historyCmd.AddCommand(
		newHistorySaveCommand(container),
		newHistoryListCommand(container),
		newHistoryShowCommand(container),
		newHistoryDeleteCommand(container),
		newHistoryClearCommand(container),
		newHistoryCountCommand(container),
		newHistoryExportCommand(container),
	)

	return historyCmd
}

func addCategoryFlag(cmd *cobra.Command, target *string) {
	cmd.Flags().StringVarP(target, flagCategory, "c", "", "Category (scanner|food-recognition|price-check)")
	_ = cmd.MarkFlagRequired(flagCategory)
}

// newHistorySaveCommand creates the 'history save' subcommand
func newHistorySaveCommand(container *app.Container) *cobra.Command {
	var (
		category string
		result   string
		location string
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "save <image>",
		Short: "Save a photo with its analysis result (\"-\" reads the image from stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := domain.ParseCategory(category)
			if err != nil {
				return err
			}
			image, err := helpers.ReadImageArgument(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}
			payload, err := helpers.ReadPayloadArgument(result, cmd.InOrStdin())
			if err != nil {
				return err
			}
			return saveHistoryRecord(cmd.Context(), cmd.OutOrStdout(), container, cat, image, payload, location, asJSON)
		},
	}

	addCategoryFlag(cmd, &category)
	cmd.Flags().StringVarP(&result, "result", "r", "null", "Analysis result as JSON, or @file to read it")
	cmd.Flags().StringVarP(&location, "location", "l", "", "Where the photo was taken")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the saved record summary as JSON")
	return cmd
}

// newHistoryListCommand creates the 'history list' subcommand
func newHistoryListCommand(container *app.Container) *cobra.Command {
	var (
		category string
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List saved records, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := domain.ParseCategory(category)
			if err != nil {
				return err
			}
			return listHistoryRecords(cmd.Context(), cmd.OutOrStdout(), container, cat, asJSON)
		},
	}

	addCategoryFlag(cmd, &category)
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print summaries as JSON")
	return cmd
}

// newHistoryShowCommand creates the 'history show' subcommand
func newHistoryShowCommand(container *app.Container) *cobra.Command {
	var (
		category     string
		imageOut     string
		thumbnailOut string
	)

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one record and optionally write its images",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := domain.ParseCategory(category)
			if err != nil {
				return err
			}
			return showHistoryRecord(cmd.Context(), cmd.OutOrStdout(), container, cat, args[0], imageOut, thumbnailOut)
		},
	}

	addCategoryFlag(cmd, &category)
	cmd.Flags().StringVar(&imageOut, "image-out", "", "Write the stored JPEG to this path")
	cmd.Flags().StringVar(&thumbnailOut, "thumbnail-out", "", "Write the thumbnail JPEG to this path")
	return cmd
}

// newHistoryDeleteCommand creates the 'history delete' subcommand
func newHistoryDeleteCommand(container *app.Container) *cobra.Command {
	var category string

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete one record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := domain.ParseCategory(category)
			if err != nil {
				return err
			}
			service, err := historyService(container)
			if err != nil {
				return err
			}
			if err := service.DeleteItem(cmd.Context(), cat, args[0]); err != nil {
				return fmt.Errorf("failed to delete %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}

	addCategoryFlag(cmd, &category)
	return cmd
}

// newHistoryClearCommand creates the 'history clear' subcommand
func newHistoryClearCommand(container *app.Container) *cobra.Command {
	var (
		category string
		yes      bool
	)

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every record of a category",
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := domain.ParseCategory(category)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !yes {
				reader := bufio.NewReader(cmd.InOrStdin())
				if !helpers.PromptForYesNo(out, reader, fmt.Sprintf("Clear all %s history?", cat), false) {
					fmt.Fprintln(out, MsgClearCancelled)
					return nil
				}
			}
			return clearHistory(cmd.Context(), out, container, cat)
		},
	}

	addCategoryFlag(cmd, &category)
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip confirmation")
	return cmd
}

// newHistoryCountCommand creates the 'history count' subcommand
func newHistoryCountCommand(container *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "count [category]",
		Short: "Count records (all categories when none is given)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			service, err := historyService(container)
			if err != nil {
				return err
			}
			categories := domain.Categories()
			if len(args) == 1 {
				cat, err := domain.ParseCategory(args[0])
				if err != nil {
					return err
				}
				categories = []domain.Category{cat}
			}
			for _, cat := range categories {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d\n", cat, service.Count(cmd.Context(), cat))
			}
			return nil
		},
	}
}

// newHistoryExportCommand creates the 'history export' subcommand
func newHistoryExportCommand(container *app.Container) *cobra.Command {
	var category string

	cmd := &cobra.Command{
		Use:   "export <path>",
		Short: "Export records to a JSONL file (\"-\" for stdout)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := domain.ParseCategory(category)
			if err != nil {
				return err
			}
			return exportHistory(cmd.Context(), cmd.OutOrStdout(), container, cat, args[0])
		},
	}

	addCategoryFlag(cmd, &category)
	return cmd
}

func historyService(container *app.Container) (*historyapp.Service, error) {
	if container == nil || container.HistoryService == nil {
		return nil, fmt.Errorf(ErrHistoryServiceUnavailable)
	}
	return container.HistoryService, nil
}

// saveHistoryRecord saves one photo and prints its summary
func saveHistoryRecord(ctx context.Context, out io.Writer, container *app.Container, cat domain.Category, image string, payload domain.Payload, location string, asJSON bool) error {
	service, err := historyService(container)
	if err != nil {
		return err
	}

	rec, err := service.Save(ctx, cat, image, payload, location)
	if err != nil && rec.ID == "" {
		return fmt.Errorf("failed to save record: %w", err)
	}

	summary := helpers.Summarize(rec)
	if asJSON {
		if werr := helpers.WriteJSON(out, summary); werr != nil {
			return werr
		}
	} else {
		fmt.Fprintf(out, "Saved %s (image %s, thumbnail %s)\n", rec.ID, summary.ImageSize, summary.ThumbnailSize)
	}
	if err != nil {
		return fmt.Errorf("record saved but history cap not enforced: %w", err)
	}
	return nil
}

// listHistoryRecords lists saved records
func listHistoryRecords(ctx context.Context, out io.Writer, container *app.Container, cat domain.Category, asJSON bool) error {
	service, err := historyService(container)
	if err != nil {
		return err
	}

	records := service.List(ctx, cat)
	if asJSON {
		summaries := make([]helpers.RecordSummary, 0, len(records))
		for _, rec := range records {
			summaries = append(summaries, helpers.Summarize(rec))
		}
		return helpers.WriteJSON(out, summaries)
	}

	if len(records) == 0 {
		fmt.Fprintln(out, MsgNoHistoryRecorded)
		return nil
	}
	helpers.RenderRecordLines(out, records)
	return nil
}

// showHistoryRecord prints one record and writes its images on request
func showHistoryRecord(ctx context.Context, out io.Writer, container *app.Container, cat domain.Category, id, imageOut, thumbnailOut string) error {
	service, err := historyService(container)
	if err != nil {
		return err
	}

	rec, ok := service.Get(ctx, cat, id)
	if !ok {
		return fmt.Errorf("%s: %s", ErrRecordNotFound, id)
	}

	if err := writeImageFile(imageOut, rec.Image); err != nil {
		return err
	}
	if err := writeImageFile(thumbnailOut, rec.Thumbnail); err != nil {
		return err
	}
	return helpers.WriteJSON(out, helpers.Summarize(rec))
}

func writeImageFile(path, encoded string) error {
	if path == "" {
		return nil
	}
	data, err := imaging.DecodeBase64(encoded)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, domain.SecureFilePermissions); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// clearHistory removes every record of a category
func clearHistory(ctx context.Context, out io.Writer, container *app.Container, cat domain.Category) error {
	service, err := historyService(container)
	if err != nil {
		return err
	}

	if err := service.ClearAll(ctx, cat); err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}
	fmt.Fprintf(out, "Cleared %s history\n", cat)
	return nil
}

// exportHistory exports records to a JSONL file
func exportHistory(ctx context.Context, out io.Writer, container *app.Container, cat domain.Category, path string) error {
	service, err := historyService(container)
	if err != nil {
		return err
	}

	if path == "-" {
		_, err := service.Export(ctx, cat, out)
		return err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, domain.SecureFilePermissions)
	if err != nil {
		return fmt.Errorf("failed to export history to %s: %w", path, err)
	}
	n, err := service.Export(ctx, cat, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("failed to export history to %s: %w", path, err)
	}

	fmt.Fprintf(out, "Exported %d records to %s\n", n, path)
	return nil
}
