// Package manifest provides the registry data model and its TOML store.
//
// The registry is stored in refdex.toml, a human-editable file whose field
// names and nesting are a stability contract.
//
// # Manifest File Structure
//
//	[project]
//	title = "grch38"
//	description = "Human reference build 38"
//	last_modified = 2026-08-23T12:00:00Z
//	global = false
//
//	[[project.datasets]]
//	label = "demo"
//	created = 2026-08-23T12:00:00Z
//	last_modified = 2026-08-23T12:00:00Z
//
//	[project.datasets.files.fasta]
//	kind = "fasta"
//	url = "https://example.org/ref.fa"
//	checksum = "fde68050fc55a7b9970f2a5ea0cabbc7cd97b6fa24770717a9524517c45c3a11"
//	last_validated = 2026-08-23T12:01:09Z
//
// A freshly initialized registry serializes datasets = [].
//
// # Usage
//
//	m, err := manifest.Load("refdex.toml")
//	if err != nil {
//	    return err
//	}
//
//	if err := m.AddDataset(ds); err != nil {
//	    return err
//	}
//
//	return manifest.Save("refdex.toml", m)
//
// Save is atomic: the file is written next to its target and renamed into
// place, so a crash mid-write never corrupts an existing manifest.
package manifest
