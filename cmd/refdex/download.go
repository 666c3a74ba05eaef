package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/spf13/cobra"

	"github.com/refdex-dev/refdex/internal/errors"
	"github.com/refdex-dev/refdex/internal/fetch"
	"github.com/refdex-dev/refdex/internal/registry"
)

func downloadCmd() *cobra.Command {
	var (
		dest        string
		concurrency int
		all         bool
	)

	cmd := &cobra.Command{
		Use:     "download [label]",
		Aliases: []string{"d", "dl", "fetch"},
		Short:   "Download registered files",
		Long: `Download the files of one dataset, or of every dataset with --all.

Each URL is validated before anything is fetched; files that fail
validation are skipped while the rest still download. Fetches run
concurrently, land through temp files, and record a sha256 checksum
in the registry. The command exits non-zero when any file fails or
is skipped.

Examples:
  refdex download grch38
  refdex download grch38 -d data/refs -c 8
  refdex download --all -d data/refs
  refdex dl yeast`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if all && len(args) > 0 {
				return errors.Newf(errors.CategoryCLI, "--all cannot be combined with a dataset label")
			}
			if !all && len(args) == 0 {
				return errors.Newf(errors.CategoryCLI, "a dataset label or --all is required")
			}
			label := ""
			if len(args) == 1 {
				label = args[0]
			}
			return runDownload(label, all, dest, concurrency)
		},
	}

	cmd.Flags().StringVarP(&dest, "dest", "d", ".", "Destination directory")
	cmd.Flags().IntVarP(&concurrency, "concurrency", "c", 4, "Concurrent downloads")
	cmd.Flags().BoolVar(&all, "all", false, "Download every dataset")

	return cmd
}

func runDownload(label string, all bool, dest string, concurrency int) error {
	path, err := manifestPath()
	if err != nil {
		return err
	}

	engine := fetch.New(fetch.WithWorkers(concurrency))
	svc := registry.New(path, registry.WithEngine(engine))

	if all {
		fmt.Println("  Downloading all datasets...")
	} else {
		fmt.Printf("  Downloading %q...\n", label)
	}
	fmt.Println()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	// Redraw a one-line progress readout while the fetches run.
	stopProgress := make(chan struct{})
	progressDone := make(chan struct{})
	go func() {
		defer close(progressDone)
		ticker := time.NewTicker(200 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stopProgress:
				return
			case <-ticker.C:
				snap := engine.Progress().Snapshot()
				fmt.Printf("\r  %d/%d files  %s", snap.DoneFiles, snap.TotalFiles, formatBytes(snap.Bytes))
			}
		}
	}()

	var report *fetch.Report
	if all {
		report, err = svc.DownloadAll(ctx, dest)
	} else {
		report, err = svc.Download(ctx, label, dest)
	}
	close(stopProgress)
	<-progressDone
	fmt.Print("\r\033[K")
	if err != nil {
		return err
	}

	if len(report.Outcomes) == 0 {
		info("Nothing to download")
		return nil
	}

	printReport(report)
	fmt.Println()

	if n := report.Skipped(); n > 0 {
		warn("%d file(s) failed validation and were skipped", n)
	}
	if !report.Ok() {
		return errors.New("E060").WithDetailf("%d of %d files were not fetched",
			report.Failed()+report.Skipped(), len(report.Outcomes))
	}

	snap := engine.Progress().Snapshot()
	success("Downloaded %d file(s) to %s (%s)", report.Succeeded(), dest, formatBytes(snap.Bytes))
	fmt.Println()

	return nil
}

// printReport renders the per-file outcome table.
func printReport(r *fetch.Report) {
	table := tablewriter.NewTable(os.Stdout,
		tablewriter.WithHeaderAlignment(tw.AlignLeft),
		tablewriter.WithRowAlignment(tw.AlignLeft),
	)
	table.Header("Dataset", "Kind", "Status", "Detail")
	for _, o := range r.Outcomes {
		_ = table.Append(o.Dataset, string(o.Kind), string(o.Status), outcomeDetail(o))
	}
	_ = table.Render()
}

// outcomeDetail summarizes one outcome for the report table.
func outcomeDetail(o fetch.Outcome) string {
	if o.Status == fetch.StatusSucceeded {
		return fmt.Sprintf("%s (%s)", o.Path, formatBytes(o.Bytes))
	}
	var re *errors.RefdexError
	if stderrors.As(o.Err, &re) {
		return re.FormatCompact()
	}
	if o.Err != nil {
		return o.Err.Error()
	}
	return ""
}

// formatBytes formats bytes as a human-readable string.
func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}
