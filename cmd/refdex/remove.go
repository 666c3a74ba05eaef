package main

import (
	"context"

	"github.com/spf13/cobra"
)

func removeCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "remove <label>",
		Aliases: []string{"rm"},
		Short:   "Remove a dataset from the registry",
		Long: `Remove a dataset and its file entries from the registry.

Files already downloaded stay on disk; only the registry entry goes
away. Removing the final dataset leaves an empty registry behind.

Examples:
  refdex remove grch38
  refdex rm yeast --global`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRemove(args[0])
		},
	}
}

func runRemove(label string) error {
	svc, err := newService()
	if err != nil {
		return err
	}

	if err := svc.Remove(context.Background(), label); err != nil {
		return err
	}

	success("Removed dataset %q", label)
	return nil
}
