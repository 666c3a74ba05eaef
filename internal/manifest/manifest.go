package manifest

import (
	"time"

	"github.com/refdex-dev/refdex/internal/errors"
)

// FileKind is the declared role of a remote file. The set is closed;
// declaration order here is the order used for reports and listings.
type FileKind string

const (
	KindFasta   FileKind = "fasta"
	KindGenBank FileKind = "genbank"
	KindGfa     FileKind = "gfa"
	KindGff     FileKind = "gff"
	KindGtf     FileKind = "gtf"
	KindBed     FileKind = "bed"
)

// Kinds returns every file kind in declaration order.
func Kinds() []FileKind {
	return []FileKind{KindFasta, KindGenBank, KindGfa, KindGff, KindGtf, KindBed}
}

// ParseKind converts a string into a FileKind.
func ParseKind(s string) (FileKind, error) {
	for _, k := range Kinds() {
		if s == string(k) {
			return k, nil
		}
	}
	return "", errors.New("E005").WithDetailf("%q is not a recognized file kind", s)
}

// Order returns the kind's position in declaration order.
// Unknown kinds sort last.
func (k FileKind) Order() int {
	for i, known := range Kinds() {
		if k == known {
			return i
		}
	}
	return len(Kinds())
}

// IsSequence reports whether the kind holds sequence data.
func (k FileKind) IsSequence() bool {
	return k == KindFasta || k == KindGenBank
}

// IsAnnotation reports whether the kind describes positions on a sequence.
func (k FileKind) IsAnnotation() bool {
	return k == KindGff || k == KindGtf || k == KindBed
}

// FileEntry is one remote resource tracked by the registry.
type FileEntry struct {
	// Kind is the entry's declared file kind. It is persisted and must
	// match the key the entry is stored under.
	Kind FileKind `toml:"kind"`

	// URL is the absolute http(s) location of the file.
	URL string `toml:"url"`

	// Checksum is the sha256 hex digest of the last downloaded body.
	Checksum string `toml:"checksum,omitempty"`

	// LastValidated records when the URL was last confirmed reachable.
	LastValidated *time.Time `toml:"last_validated,omitempty"`
}

// Dataset is one named collection of related files.
type Dataset struct {
	// Label is the dataset's primary key within a manifest.
	Label string `toml:"label"`

	// Created is set once when the dataset is first registered.
	Created time.Time `toml:"created"`

	// LastModified updates whenever the dataset's entries change.
	LastModified time.Time `toml:"last_modified"`

	// Files maps each file kind to its entry. The map is sparse but
	// never empty in a persisted manifest.
	Files map[FileKind]FileEntry `toml:"files"`
}

// Entries returns the dataset's file entries in kind declaration order.
func (d *Dataset) Entries() []FileEntry {
	var entries []FileEntry
	for _, k := range Kinds() {
		if e, ok := d.Files[k]; ok {
			entries = append(entries, e)
		}
	}
	return entries
}

// Project is the manifest's header table plus its datasets.
type Project struct {
	Title        string    `toml:"title"`
	Description  string    `toml:"description"`
	LastModified time.Time `toml:"last_modified"`
	Global       bool      `toml:"global"`
	Datasets     []Dataset `toml:"datasets"`
}

// Manifest is the root object of the on-disk registry file.
type Manifest struct {
	Project Project `toml:"project"`
}

// New creates a manifest with an empty dataset list.
func New(title, description string, global bool) *Manifest {
	now := now()
	return &Manifest{
		Project: Project{
			Title:        title,
			Description:  description,
			LastModified: now,
			Global:       global,
			Datasets:     []Dataset{},
		},
	}
}

// now returns the current UTC time at second precision, which is what the
// manifest file stores.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}

// Touch updates the project-level modification timestamp.
func (m *Manifest) Touch() {
	m.Project.LastModified = now()
}

// Dataset returns the dataset with the given label.
func (m *Manifest) Dataset(label string) (*Dataset, bool) {
	for i := range m.Project.Datasets {
		if m.Project.Datasets[i].Label == label {
			return &m.Project.Datasets[i], true
		}
	}
	return nil, false
}

// AddDataset appends a dataset to the manifest. The label must be new,
// the dataset must carry at least one file entry, every entry's kind must
// match its key, and annotation entries (gff, gtf, bed) require a sequence
// entry (fasta or genbank) alongside them.
func (m *Manifest) AddDataset(ds Dataset) error {
	if ds.Label == "" {
		return errors.Newf(errors.CategoryRegistry, "dataset label must not be empty")
	}
	if _, ok := m.Dataset(ds.Label); ok {
		return errors.New("E001").WithDetailf("a dataset labeled %q is already registered", ds.Label)
	}
	if len(ds.Files) == 0 {
		return errors.New("E003").WithDetailf("dataset %q has no file entries", ds.Label)
	}

	hasSequence := false
	hasAnnotation := false
	for key, entry := range ds.Files {
		if _, err := ParseKind(string(key)); err != nil {
			return err
		}
		if entry.Kind != key {
			return errors.Newf(errors.CategoryRegistry,
				"file entry kind %q does not match its key %q", entry.Kind, key)
		}
		if key.IsSequence() {
			hasSequence = true
		}
		if key.IsAnnotation() {
			hasAnnotation = true
		}
	}
	if hasAnnotation && !hasSequence {
		return errors.New("E004").WithDetailf(
			"dataset %q registers annotation files without a fasta or genbank entry", ds.Label)
	}

	if ds.Created.IsZero() {
		ds.Created = now()
	}
	if ds.LastModified.IsZero() {
		ds.LastModified = ds.Created
	}
	m.Project.Datasets = append(m.Project.Datasets, ds)
	m.Touch()
	return nil
}

// RemoveDataset deletes the dataset with the given label. Removing the
// final dataset is allowed; the manifest then holds an empty list.
func (m *Manifest) RemoveDataset(label string) error {
	for i := range m.Project.Datasets {
		if m.Project.Datasets[i].Label == label {
			m.Project.Datasets = append(m.Project.Datasets[:i], m.Project.Datasets[i+1:]...)
			m.Touch()
			return nil
		}
	}
	return errors.New("E002").WithDetailf("no dataset labeled %q", label)
}

// Validate checks the structural invariants of a loaded manifest.
// Violations are reported as corruption so a hand-edited file that breaks
// the rules is caught at load time.
func (m *Manifest) Validate() error {
	seen := make(map[string]bool)
	for i := range m.Project.Datasets {
		ds := &m.Project.Datasets[i]
		if ds.Label == "" {
			return errors.New("E021").WithDetail("a dataset has an empty label")
		}
		if seen[ds.Label] {
			return errors.New("E021").WithDetailf("dataset label %q appears more than once", ds.Label)
		}
		seen[ds.Label] = true

		if len(ds.Files) == 0 {
			return errors.New("E021").WithDetailf("dataset %q has no file entries", ds.Label)
		}
		for key, entry := range ds.Files {
			if _, err := ParseKind(string(key)); err != nil {
				return errors.New("E021").WithDetailf(
					"dataset %q uses unknown file kind %q", ds.Label, key)
			}
			if entry.Kind != key {
				return errors.New("E021").WithDetailf(
					"dataset %q: entry under key %q declares kind %q", ds.Label, key, entry.Kind)
			}
			if entry.URL == "" {
				return errors.New("E021").WithDetailf(
					"dataset %q: %s entry has an empty url", ds.Label, key)
			}
		}
	}
	return nil
}
