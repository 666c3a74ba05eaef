// Package registry implements the operations behind the refdex commands:
// initializing a manifest, registering and removing datasets, listing
// them, and downloading their files.
//
// Every operation follows the same load-mutate-save discipline: the
// manifest is reloaded from disk, mutated in memory, and written back
// atomically only once the whole operation has succeeded. A failed
// registration therefore never leaves a partial dataset behind, and
// listings always reflect the file as it currently is on disk.
//
// # Usage
//
//	svc := registry.New("refdex.toml")
//
//	// Register a dataset after validating its URLs
//	ds, err := svc.Register(ctx, "grch38", map[manifest.FileKind]string{
//	    manifest.KindFasta: "https://example.org/grch38.fa",
//	    manifest.KindGff:   "https://example.org/grch38.gff",
//	})
//
//	// Download it
//	report, err := svc.Download(ctx, "grch38", "data/")
//
// Operations are traced through the global OpenTelemetry provider; the
// spans are no-ops unless the embedder installs an SDK.
package registry
