package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/refdex-dev/refdex/internal/errors"
	"github.com/refdex-dev/refdex/internal/manifest"
)

func testEngine(opts ...Option) *Engine {
	base := []Option{
		WithWorkers(2),
		WithRetryBudget(2 * time.Second),
		WithRetryUnit(5 * time.Millisecond),
	}
	return New(append(base, opts...)...)
}

func testDataset(label string, urls map[manifest.FileKind]string) *manifest.Dataset {
	files := make(map[manifest.FileKind]manifest.FileEntry, len(urls))
	for kind, u := range urls {
		files[kind] = manifest.FileEntry{Kind: kind, URL: u}
	}
	return &manifest.Dataset{Label: label, Files: files}
}

// fileServer answers HEAD and GET for the given path-to-body map and 404s
// everything else.
func fileServer(bodies map[string]string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := bodies[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if r.Method == http.MethodHead {
			return
		}
		w.Write([]byte(body))
	})
}

func assertNoTemp(t *testing.T, dir string) {
	t.Helper()
	stale, err := filepath.Glob(filepath.Join(dir, tmpPattern))
	if err != nil {
		t.Fatal(err)
	}
	if len(stale) != 0 {
		t.Errorf("temp files left behind: %v", stale)
	}
}

func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func TestFetchDataset(t *testing.T) {
	fasta := ">chr1\nACGTACGT\n"
	gff := "##gff-version 3\nchr1\t.\tgene\t1\t8\t.\t+\t.\tID=g1\n"
	srv := httptest.NewServer(fileServer(map[string]string{
		"/ref.fa":  fasta,
		"/ann.gff": gff,
	}))
	defer srv.Close()

	ds := testDataset("demo", map[manifest.FileKind]string{
		manifest.KindFasta: srv.URL + "/ref.fa",
		manifest.KindGff:   srv.URL + "/ann.gff",
	})
	dir := t.TempDir()
	e := testEngine()

	report, err := e.FetchDataset(context.Background(), ds, dir)
	if err != nil {
		t.Fatalf("FetchDataset error: %v", err)
	}
	if !report.Ok() {
		t.Fatalf("report not ok: %+v", report.Outcomes)
	}
	if len(report.Outcomes) != 2 {
		t.Fatalf("outcome count = %d, want 2", len(report.Outcomes))
	}
	if report.Outcomes[0].Kind != manifest.KindFasta || report.Outcomes[1].Kind != manifest.KindGff {
		t.Errorf("outcome order = %s, %s, want fasta, gff",
			report.Outcomes[0].Kind, report.Outcomes[1].Kind)
	}

	got, err := os.ReadFile(filepath.Join(dir, "ref.fa"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != fasta {
		t.Errorf("ref.fa content = %q, want %q", got, fasta)
	}

	first := report.Outcomes[0]
	if first.Path != filepath.Join(dir, "ref.fa") {
		t.Errorf("path = %q, want %q", first.Path, filepath.Join(dir, "ref.fa"))
	}
	if first.Bytes != int64(len(fasta)) {
		t.Errorf("bytes = %d, want %d", first.Bytes, len(fasta))
	}
	if first.Checksum != sha256Hex(fasta) {
		t.Errorf("checksum = %q, want %q", first.Checksum, sha256Hex(fasta))
	}

	snap := e.Progress().Snapshot()
	if snap.TotalFiles != 2 || snap.DoneFiles != 2 {
		t.Errorf("progress files = %d/%d, want 2/2", snap.DoneFiles, snap.TotalFiles)
	}
	if want := int64(len(fasta) + len(gff)); snap.Bytes != want {
		t.Errorf("progress bytes = %d, want %d", snap.Bytes, want)
	}
	assertNoTemp(t, dir)
}

func TestFetchDataset_SkipsUnreachable(t *testing.T) {
	fasta := ">chr1\nACGT\n"
	var badGets atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/ref.fa" {
			if r.Method == http.MethodGet {
				w.Write([]byte(fasta))
			}
			return
		}
		if r.Method == http.MethodGet {
			badGets.Add(1)
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	ds := testDataset("demo", map[manifest.FileKind]string{
		manifest.KindFasta: srv.URL + "/ref.fa",
		manifest.KindGff:   srv.URL + "/missing.gff",
	})
	dir := t.TempDir()

	report, err := testEngine().FetchDataset(context.Background(), ds, dir)
	if err != nil {
		t.Fatalf("FetchDataset error: %v", err)
	}
	if report.Ok() {
		t.Error("report should not be ok")
	}
	if report.Succeeded() != 1 || report.Skipped() != 1 || report.Failed() != 0 {
		t.Errorf("counts = %d succeeded, %d failed, %d skipped, want 1, 0, 1",
			report.Succeeded(), report.Failed(), report.Skipped())
	}

	skipped := report.Outcomes[1]
	if skipped.Status != StatusSkipped {
		t.Errorf("gff status = %s, want skipped", skipped.Status)
	}
	if !errors.HasCode(skipped.Err, "E041") {
		t.Errorf("gff error code = %q, want E041", errors.CodeOf(skipped.Err))
	}
	if badGets.Load() != 0 {
		t.Errorf("skipped URL was fetched %d times, want 0", badGets.Load())
	}

	names, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 1 || names[0].Name() != "ref.fa" {
		t.Errorf("destination holds %v, want only ref.fa", names)
	}
	assertNoTemp(t, dir)
}

func TestFetchDataset_FailedFetchKeepsSiblings(t *testing.T) {
	fasta := ">chr1\nACGT\n"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			return // validation passes for both
		}
		if r.URL.Path == "/ref.fa" {
			w.Write([]byte(fasta))
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ds := testDataset("demo", map[manifest.FileKind]string{
		manifest.KindFasta: srv.URL + "/ref.fa",
		manifest.KindGff:   srv.URL + "/ann.gff",
	})
	dir := t.TempDir()

	report, err := testEngine().FetchDataset(context.Background(), ds, dir)
	if err != nil {
		t.Fatalf("FetchDataset error: %v", err)
	}
	if report.Succeeded() != 1 || report.Failed() != 1 || report.Skipped() != 0 {
		t.Errorf("counts = %d succeeded, %d failed, %d skipped, want 1, 1, 0",
			report.Succeeded(), report.Failed(), report.Skipped())
	}

	failed := report.Outcomes[1]
	if failed.Kind != manifest.KindGff || failed.Status != StatusFailed {
		t.Fatalf("second outcome = %s %s, want gff failed", failed.Kind, failed.Status)
	}
	if !errors.HasCode(failed.Err, "E060") {
		t.Errorf("error code = %q, want E060", errors.CodeOf(failed.Err))
	}

	names, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 1 || names[0].Name() != "ref.fa" {
		t.Errorf("destination holds %v, want only ref.fa", names)
	}
	assertNoTemp(t, dir)
}

func TestFetchDataset_RetriesCutStream(t *testing.T) {
	full := strings.Repeat(">chr1\nACGTACGT\n", 16)
	var gets atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			return
		}
		if gets.Add(1) == 1 {
			// Declare the full length but send a fragment, so the client
			// sees the stream cut mid-body.
			w.Header().Set("Content-Length", strconv.Itoa(len(full)))
			w.Write([]byte(full[:10]))
			return
		}
		w.Write([]byte(full))
	}))
	defer srv.Close()

	ds := testDataset("demo", map[manifest.FileKind]string{
		manifest.KindFasta: srv.URL + "/ref.fa",
	})
	dir := t.TempDir()
	e := testEngine()

	report, err := e.FetchDataset(context.Background(), ds, dir)
	if err != nil {
		t.Fatalf("FetchDataset error: %v", err)
	}
	if !report.Ok() {
		t.Fatalf("report not ok: %v", report.Outcomes[0].Err)
	}
	if gets.Load() < 2 {
		t.Errorf("GET count = %d, want at least 2", gets.Load())
	}

	got, err := os.ReadFile(filepath.Join(dir, "ref.fa"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != full {
		t.Errorf("content length = %d, want %d", len(got), len(full))
	}
	if report.Outcomes[0].Checksum != sha256Hex(full) {
		t.Error("checksum does not match the full body")
	}
	if snap := e.Progress().Snapshot(); snap.Bytes != int64(len(full)) {
		t.Errorf("progress bytes = %d, want %d (failed attempt backed out)", snap.Bytes, len(full))
	}
	assertNoTemp(t, dir)
}

func TestFetchDataset_Idempotent(t *testing.T) {
	fasta := ">chr1\nACGT\n"
	srv := httptest.NewServer(fileServer(map[string]string{"/ref.fa": fasta}))
	defer srv.Close()

	ds := testDataset("demo", map[manifest.FileKind]string{
		manifest.KindFasta: srv.URL + "/ref.fa",
	})
	dir := t.TempDir()

	for run := 0; run < 2; run++ {
		report, err := testEngine().FetchDataset(context.Background(), ds, dir)
		if err != nil {
			t.Fatalf("run %d: FetchDataset error: %v", run, err)
		}
		if !report.Ok() || report.Succeeded() != 1 {
			t.Fatalf("run %d: report = %d succeeded, want 1", run, report.Succeeded())
		}
		if report.Outcomes[0].Checksum != sha256Hex(fasta) {
			t.Errorf("run %d: checksum mismatch", run)
		}
	}

	got, err := os.ReadFile(filepath.Join(dir, "ref.fa"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != fasta {
		t.Errorf("content = %q, want %q", got, fasta)
	}
}

func TestFetchDataset_Canceled(t *testing.T) {
	srv := httptest.NewServer(fileServer(map[string]string{"/ref.fa": "x"}))
	defer srv.Close()

	ds := testDataset("demo", map[manifest.FileKind]string{
		manifest.KindFasta: srv.URL + "/ref.fa",
	})
	dir := t.TempDir()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := testEngine()
	report, err := e.FetchDataset(ctx, ds, dir)
	if err != nil {
		t.Fatalf("FetchDataset error: %v", err)
	}
	if report.Failed() != 1 {
		t.Fatalf("failed count = %d, want 1", report.Failed())
	}
	if !stderrors.Is(report.Outcomes[0].Err, context.Canceled) {
		t.Errorf("outcome error = %v, want context.Canceled in chain", report.Outcomes[0].Err)
	}

	names, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 0 {
		t.Errorf("destination holds %v, want nothing", names)
	}
	if snap := e.Progress().Snapshot(); snap.DoneFiles != snap.TotalFiles {
		t.Errorf("progress files = %d/%d, want all done", snap.DoneFiles, snap.TotalFiles)
	}
}

func TestFetchDataset_SweepsStaleTemp(t *testing.T) {
	fasta := ">chr1\nACGT\n"
	srv := httptest.NewServer(fileServer(map[string]string{"/ref.fa": fasta}))
	defer srv.Close()

	dir := t.TempDir()
	stale := filepath.Join(dir, ".refdex-tmp-stale123")
	if err := os.WriteFile(stale, []byte("junk"), 0644); err != nil {
		t.Fatal(err)
	}

	ds := testDataset("demo", map[manifest.FileKind]string{
		manifest.KindFasta: srv.URL + "/ref.fa",
	})
	report, err := testEngine().FetchDataset(context.Background(), ds, dir)
	if err != nil {
		t.Fatalf("FetchDataset error: %v", err)
	}
	if !report.Ok() {
		t.Fatalf("report not ok: %+v", report.Outcomes)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Error("stale temp file was not swept")
	}
}

func TestFetchAll(t *testing.T) {
	srv := httptest.NewServer(fileServer(map[string]string{
		"/a.fa": ">a\nAAAA\n",
		"/b.fa": ">b\nCCCC\n",
	}))
	defer srv.Close()

	m := manifest.New("proj", "", false)
	// Insertion order deliberately reversed; the report sorts by label.
	m.Project.Datasets = append(m.Project.Datasets,
		*testDataset("beta", map[manifest.FileKind]string{manifest.KindFasta: srv.URL + "/b.fa"}),
		*testDataset("alpha", map[manifest.FileKind]string{manifest.KindFasta: srv.URL + "/a.fa"}),
	)
	dir := t.TempDir()

	report, err := testEngine().FetchAll(context.Background(), m, dir)
	if err != nil {
		t.Fatalf("FetchAll error: %v", err)
	}
	if !report.Ok() || len(report.Outcomes) != 2 {
		t.Fatalf("report = %d outcomes, ok=%v, want 2 ok", len(report.Outcomes), report.Ok())
	}
	if report.Outcomes[0].Dataset != "alpha" || report.Outcomes[1].Dataset != "beta" {
		t.Errorf("order = %s, %s, want alpha, beta",
			report.Outcomes[0].Dataset, report.Outcomes[1].Dataset)
	}

	for _, name := range []string{"a.fa", "b.fa"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("missing %s: %v", name, err)
		}
	}
}

func TestFilename(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{url: "https://example.org/data/ref.fa", want: "ref.fa"},
		{url: "https://example.org/ref.fa?dl=1", want: "ref.fa"},
		{url: "https://example.org/a/b/c.gff.gz", want: "c.gff.gz"},
		{url: "https://example.org/data/", want: ""},
		{url: "https://example.org/", want: ""},
		{url: "https://example.org", want: ""},
		{url: "%%bad", want: ""},
	}

	for _, tt := range tests {
		if got := filename(tt.url); got != tt.want {
			t.Errorf("filename(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestReport_Ordering(t *testing.T) {
	r := &Report{Outcomes: []Outcome{
		{Dataset: "b", Kind: manifest.KindFasta, Status: StatusSucceeded},
		{Dataset: "a", Kind: manifest.KindGff, Status: StatusFailed},
		{Dataset: "a", Kind: manifest.KindFasta, Status: StatusSucceeded},
	}}
	r.sort()

	want := []struct {
		dataset string
		kind    manifest.FileKind
	}{
		{"a", manifest.KindFasta},
		{"a", manifest.KindGff},
		{"b", manifest.KindFasta},
	}
	for i, w := range want {
		if r.Outcomes[i].Dataset != w.dataset || r.Outcomes[i].Kind != w.kind {
			t.Errorf("outcome %d = %s/%s, want %s/%s",
				i, r.Outcomes[i].Dataset, r.Outcomes[i].Kind, w.dataset, w.kind)
		}
	}

	if r.Succeeded() != 2 || r.Failed() != 1 || r.Skipped() != 0 {
		t.Errorf("counts = %d, %d, %d, want 2, 1, 0", r.Succeeded(), r.Failed(), r.Skipped())
	}
	if r.Ok() {
		t.Error("report with a failure should not be ok")
	}
}
