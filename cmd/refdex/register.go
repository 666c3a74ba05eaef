package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/refdex-dev/refdex/internal/errors"
	"github.com/refdex-dev/refdex/internal/manifest"
)

func registerCmd() *cobra.Command {
	var (
		label   string
		fasta   string
		genbank string
		gfa     string
		gff     string
		gtf     string
		bed     string
	)

	cmd := &cobra.Command{
		Use:     "register",
		Aliases: []string{"r", "reg"},
		Short:   "Register a dataset of remote files",
		Long: `Register a labeled dataset of remote reference files.

Every URL is checked for syntax and reachability before the registry
is written, so a dataset registers completely or not at all.
Annotation files (gff, gtf, bed) need a sequence file (fasta or
genbank) registered alongside them.

Examples:
  refdex register -l grch38 --fasta https://example.org/grch38.fa
  refdex register -l yeast --fasta https://example.org/sc.fa --gff https://example.org/sc.gff
  refdex register -l pangenome --gfa https://example.org/pan.gfa --global`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRegister(label, map[manifest.FileKind]string{
				manifest.KindFasta:   fasta,
				manifest.KindGenBank: genbank,
				manifest.KindGfa:     gfa,
				manifest.KindGff:     gff,
				manifest.KindGtf:     gtf,
				manifest.KindBed:     bed,
			})
		},
	}

	cmd.Flags().StringVarP(&label, "label", "l", "", "Dataset label (required)")
	cmd.Flags().StringVar(&fasta, "fasta", "", "FASTA sequence URL")
	cmd.Flags().StringVar(&genbank, "genbank", "", "GenBank sequence URL")
	cmd.Flags().StringVar(&gfa, "gfa", "", "GFA assembly graph URL")
	cmd.Flags().StringVar(&gff, "gff", "", "GFF annotation URL")
	cmd.Flags().StringVar(&gtf, "gtf", "", "GTF annotation URL")
	cmd.Flags().StringVar(&bed, "bed", "", "BED annotation URL")

	return cmd
}

func runRegister(label string, flagged map[manifest.FileKind]string) error {
	if label == "" {
		return errors.Newf(errors.CategoryCLI, "a dataset label is required").
			WithSuggestion("Pass one with -l, e.g. 'refdex register -l grch38 --fasta URL'")
	}

	urls := make(map[manifest.FileKind]string)
	for kind, url := range flagged {
		if url != "" {
			urls[kind] = url
		}
	}

	svc, err := newService()
	if err != nil {
		return err
	}

	fmt.Println("  Validating URLs...")
	fmt.Println()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	ds, err := svc.Register(ctx, label, urls)
	if err != nil {
		return err
	}

	for _, entry := range ds.Entries() {
		success("%-7s %s", entry.Kind, entry.URL)
	}
	fmt.Println()
	success("Registered dataset %q (%d files)", ds.Label, len(ds.Files))
	fmt.Println()

	return nil
}
