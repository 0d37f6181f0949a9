package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/attendance-api/internal/clientcache"
	"github.com/noah-isme/attendance-api/internal/localcache"
	"github.com/noah-isme/attendance-api/pkg/storage"
)

const progressInterval = 200 * time.Millisecond

func (a *app) importCmd() *cobra.Command {
	var quiet bool
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Upload a CSV or XLSX roster",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if _, err := os.Stat(args[0]); err != nil {
				return fmt.Errorf("roster file: %w", err)
			}

			stop := func() {}
			if !quiet && !a.jsonOutput() {
				stop = a.showProgress(ctx, cmd.ErrOrStderr())
			}
			res, err := a.api.Import(ctx, args[0])
			stop()
			if err != nil {
				return err
			}

			if err := a.store.Remove(ctx, clientcache.KeyStudents, clientcache.KeyMetrics, clientcache.KeyAttendanceHistory); err != nil {
				a.logger.Warn("failed to invalidate cache after import", zap.Error(err))
			}

			out := cmd.OutOrStdout()
			if a.jsonOutput() {
				return printJSON(out, res)
			}
			if err := printTable(out, []string{"RECORDS", "COUNT"}, [][]string{
				{"Total", fmt.Sprint(res.TotalRecords)},
				{"Cleaned", fmt.Sprint(res.CleanedRecords)},
				{"Unique", fmt.Sprint(res.UniqueRecords)},
				{"Processed", fmt.Sprint(res.ProcessedRecords)},
				{"Imported or updated", fmt.Sprint(res.ImportedOrUpdatedRecords)},
				{"Skipped", fmt.Sprint(res.SkippedRecords)},
			}); err != nil {
				return err
			}
			if len(res.SkippedRecordsDetails) == 0 {
				return nil
			}
			fmt.Fprintln(out)
			rows := make([][]string, 0, len(res.SkippedRecordsDetails))
			for _, s := range res.SkippedRecordsDetails {
				rows = append(rows, []string{fmt.Sprint(s.Row), s.Name, s.Reason})
			}
			return printTable(out, []string{"ROW", "NAME", "REASON"}, rows)
		},
	}
	cmd.Flags().BoolVar(&quiet, "quiet", false, "Suppress upload progress")
	return cmd
}

// showProgress prints a simulated upload progress until the returned func is called.
func (a *app) showProgress(ctx context.Context, w io.Writer) func() {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	ticker := a.opts.Clock.NewTicker(progressInterval)
	go func() {
		defer close(done)
		defer ticker.Stop()
		pct := 0
		for {
			select {
			case <-ctx.Done():
				fmt.Fprintf(w, "\rUploading roster... done%s\n", strings.Repeat(" ", 8))
				return
			case <-ticker.Chan():
				// Creep towards 90% and hold there until the server answers.
				if pct < 90 {
					pct += 10
				}
				fmt.Fprintf(w, "\rUploading roster... %3d%%", pct)
			}
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

func (a *app) exportCmd() *cobra.Command {
	var format, outDir string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Download the roster as CSV, XLSX or PDF",
		RunE: func(cmd *cobra.Command, _ []string) error {
			export, err := a.api.ExportRoster(cmd.Context(), format)
			if err != nil {
				return err
			}
			store, err := storage.NewLocalStorage(outDir)
			if err != nil {
				return fmt.Errorf("open output dir: %w", err)
			}
			path, err := store.Save(export.Filename, export.Content)
			if err != nil {
				return fmt.Errorf("save export: %w", err)
			}
			if a.jsonOutput() {
				return printJSON(cmd.OutOrStdout(), map[string]interface{}{
					"path":        path,
					"contentType": export.ContentType,
					"bytes":       len(export.Content),
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s (%d bytes).\n", path, len(export.Content))
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "csv", "Export format: csv, xlsx or pdf")
	cmd.Flags().StringVar(&outDir, "out", ".", "Directory to write the file to")
	return cmd
}

func (a *app) cacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the local cache",
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Drop every cached entry",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.backend.Clear(cmd.Context()); err != nil {
				return fmt.Errorf("clear cache: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Cache cleared.")
			return nil
		},
	}

	var olderThan time.Duration
	prune := &cobra.Command{
		Use:   "prune",
		Short: "Delete cache files older than a duration (file backend only)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			fb, ok := a.backend.(*localcache.FileBackend)
			if !ok {
				return errors.New("prune is only supported by the file cache backend")
			}
			removed, err := fb.Prune(olderThan)
			if err != nil {
				return fmt.Errorf("prune cache: %w", err)
			}
			if a.jsonOutput() {
				return printJSON(cmd.OutOrStdout(), removed)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d entries.\n", len(removed))
			return nil
		},
	}
	prune.Flags().DurationVar(&olderThan, "older-than", clientcache.DefaultTTL, "Minimum age of files to delete")

	cmd.AddCommand(clearCmd, prune)
	return cmd
}
