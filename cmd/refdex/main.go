package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/refdex-dev/refdex/internal/errors"
	"github.com/refdex-dev/refdex/internal/manifest"
	"github.com/refdex-dev/refdex/internal/registry"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const banner = `
  ┬─┐┌─┐┌─┐┌┬┐┌─┐─┐ ┬
  ├┬┘├┤ ├┤  ││├┤ ┌┴┬┘
  ┴└─└─┘└  ─┴┘└─┘┴ └─
`

// Registry location flags shared by every subcommand.
var (
	registryDir string
	globalReg   bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "refdex",
		Short: "Registry for remote genomic reference data",
		Long: `Refdex tracks remote reference files in a refdex.toml registry.

Register FASTA, GenBank, GFA, GFF, GTF, and BED files by URL under a
dataset label, keep the registry validated, and fetch everything with
one command. Features include:

  • Labeled datasets with one entry per file kind
  • URL validation with transient-failure retries
  • Concurrent downloads with sha256 checksum capture
  • Atomic writes for the registry and every download
  • Project-local and global (~/.refdex) registries`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&registryDir, "registry", "", "Directory holding the registry (default: working directory)")
	rootCmd.PersistentFlags().BoolVarP(&globalReg, "global", "g", false, "Use the global registry ($REFDEX_HOME or ~/.refdex)")

	// Add commands
	rootCmd.AddCommand(
		initCmd(),
		registerCmd(),
		removeCmd(),
		listCmd(),
		downloadCmd(),
		versionCmd(),
	)

	// Execute
	if err := rootCmd.Execute(); err != nil {
		errors.PrintError(err)
		os.Exit(1)
	}
}

// manifestPath resolves the registry file location from the shared flags.
func manifestPath() (string, error) {
	return manifest.ResolvePath(registryDir, globalReg)
}

// newService builds a registry service for the resolved manifest path.
func newService() (*registry.Service, error) {
	path, err := manifestPath()
	if err != nil {
		return nil, err
	}
	return registry.New(path), nil
}

// printBanner prints the refdex ASCII art banner.
func printBanner() {
	fmt.Print(banner)
}

// success prints a success message.
func success(format string, args ...any) {
	fmt.Printf("\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}

// info prints an info message.
func info(format string, args ...any) {
	fmt.Printf("  %s\n", fmt.Sprintf(format, args...))
}

// warn prints a warning message.
func warn(format string, args ...any) {
	fmt.Printf("\033[33m⚠\033[0m %s\n", fmt.Sprintf(format, args...))
}
