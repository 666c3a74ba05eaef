package fetch

import (
	"sort"

	"github.com/refdex-dev/refdex/internal/manifest"
)

// Status classifies one file's outcome in a Report.
type Status string

const (
	// StatusSucceeded means the file was fetched and renamed into place.
	StatusSucceeded Status = "succeeded"

	// StatusFailed means the fetch itself failed after validation passed,
	// or the run was interrupted before the file could be fetched.
	StatusFailed Status = "failed"

	// StatusSkipped means validation rejected the URL and no fetch was
	// attempted.
	StatusSkipped Status = "skipped"
)

// Outcome records what happened to a single file.
type Outcome struct {
	Dataset  string
	Kind     manifest.FileKind
	URL      string
	Status   Status
	Path     string // final on-disk path, set on success
	Bytes    int64  // body size, set on success
	Checksum string // sha256 hex of the body, set on success
	Err      error  // set on failure or skip
}

// Report enumerates every file of a run, ordered by dataset label and then
// by file kind declaration order. Fetches themselves run concurrently and
// unordered; the ordering here exists so output is reproducible.
type Report struct {
	Outcomes []Outcome
}

func (r *Report) sort() {
	sort.SliceStable(r.Outcomes, func(i, j int) bool {
		if r.Outcomes[i].Dataset != r.Outcomes[j].Dataset {
			return r.Outcomes[i].Dataset < r.Outcomes[j].Dataset
		}
		return r.Outcomes[i].Kind.Order() < r.Outcomes[j].Kind.Order()
	})
}

// Succeeded returns the number of files fetched and renamed into place.
func (r *Report) Succeeded() int { return r.count(StatusSucceeded) }

// Failed returns the number of files whose fetch failed.
func (r *Report) Failed() int { return r.count(StatusFailed) }

// Skipped returns the number of files rejected by validation.
func (r *Report) Skipped() int { return r.count(StatusSkipped) }

func (r *Report) count(s Status) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == s {
			n++
		}
	}
	return n
}

// Ok reports whether every file succeeded.
func (r *Report) Ok() bool {
	return r.Failed() == 0 && r.Skipped() == 0
}
