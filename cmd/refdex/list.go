package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/spf13/cobra"
)

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list [label]",
		Aliases: []string{"l"},
		Short:   "List datasets or one dataset's files",
		Long: `List every dataset in the registry, or the file entries of a single
dataset when a label is given.

Examples:
  refdex list
  refdex list grch38
  refdex l --global`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				return runListDataset(args[0])
			}
			return runList()
		},
	}
}

func runList() error {
	svc, err := newService()
	if err != nil {
		return err
	}

	m, err := svc.List(context.Background())
	if err != nil {
		return err
	}

	fmt.Printf("  Registry: %s\n", svc.Path())
	fmt.Println()

	if len(m.Project.Datasets) == 0 {
		info("No datasets registered")
		fmt.Println()
		fmt.Println("  Register one with:")
		fmt.Println()
		fmt.Println("    refdex register -l grch38 --fasta https://example.org/grch38.fa")
		fmt.Println()
		return nil
	}

	table := tablewriter.NewTable(os.Stdout,
		tablewriter.WithHeaderAlignment(tw.AlignLeft),
		tablewriter.WithRowAlignment(tw.AlignLeft),
	)
	table.Header("Label", "Files", "Created", "Last Modified")
	for i := range m.Project.Datasets {
		ds := &m.Project.Datasets[i]
		_ = table.Append(ds.Label,
			fmt.Sprintf("%d", len(ds.Files)),
			ds.Created.Format(time.RFC3339),
			ds.LastModified.Format(time.RFC3339))
	}
	if err := table.Render(); err != nil {
		return err
	}

	fmt.Println()
	fmt.Printf("  %d dataset(s)\n", len(m.Project.Datasets))
	fmt.Println()

	return nil
}

func runListDataset(label string) error {
	svc, err := newService()
	if err != nil {
		return err
	}

	ds, err := svc.Get(context.Background(), label)
	if err != nil {
		return err
	}

	fmt.Printf("  Dataset: %s\n", ds.Label)
	fmt.Println()

	table := tablewriter.NewTable(os.Stdout,
		tablewriter.WithHeaderAlignment(tw.AlignLeft),
		tablewriter.WithRowAlignment(tw.AlignLeft),
	)
	table.Header("Kind", "URL", "Validated")
	for _, entry := range ds.Entries() {
		validated := "never"
		if entry.LastValidated != nil {
			validated = entry.LastValidated.Format(time.RFC3339)
		}
		_ = table.Append(string(entry.Kind), entry.URL, validated)
	}
	if err := table.Render(); err != nil {
		return err
	}
	fmt.Println()

	return nil
}
