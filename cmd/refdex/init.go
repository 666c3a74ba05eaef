package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func initCmd() *cobra.Command {
	var (
		title       string
		description string
	)

	cmd := &cobra.Command{
		Use:     "init",
		Aliases: []string{"i", "new"},
		Short:   "Create a new registry",
		Long: `Create an empty refdex.toml registry.

The registry lives in the working directory unless --registry points
somewhere else or --global selects the per-user registry under
$REFDEX_HOME (falling back to ~/.refdex). An existing registry is
never overwritten.

Examples:
  refdex init -t "Human references" -d "GRCh38 assemblies and annotation"
  refdex init --global -t "Shared references"
  refdex init --registry data/registry -t "Pipeline inputs"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(title, description)
		},
	}

	cmd.Flags().StringVarP(&title, "title", "t", "", "Registry title")
	cmd.Flags().StringVarP(&description, "description", "d", "", "Registry description")

	return cmd
}

func runInit(title, description string) error {
	printBanner()
	fmt.Println("  Creating a new registry...")
	fmt.Println()

	svc, err := newService()
	if err != nil {
		return err
	}

	if _, err := svc.Init(context.Background(), title, description, globalReg); err != nil {
		return err
	}

	success("Created %s", svc.Path())
	fmt.Println()
	fmt.Println("  Register a dataset with:")
	fmt.Println()
	fmt.Println("    refdex register -l grch38 --fasta https://example.org/grch38.fa")
	fmt.Println()

	return nil
}
