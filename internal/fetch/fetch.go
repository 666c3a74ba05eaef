package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	stderrors "errors"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/refdex-dev/refdex/internal/errors"
	"github.com/refdex-dev/refdex/internal/manifest"
	"github.com/refdex-dev/refdex/internal/validate"
	"github.com/siderolabs/go-retry/retry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const (
	defaultWorkers     = 4
	defaultRetryBudget = 30 * time.Second
	defaultRetryUnit   = 500 * time.Millisecond

	// Temp files carry this pattern so interrupted runs can be swept
	// later.
	tmpPattern = ".refdex-tmp-*"

	tracerName = "refdex/fetch"
)

// Engine runs the two-phase download pipeline: validate every URL first,
// then stream the survivors concurrently under a bounded worker pool.
type Engine struct {
	client      *http.Client
	checker     *validate.Checker
	workers     int
	retryBudget time.Duration
	retryUnit   time.Duration
	progress    *Progress
	tracer      trace.Tracer
}

// Option adjusts how an Engine runs.
type Option func(*Engine)

// WithWorkers bounds how many tasks run at once.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithChecker substitutes the URL checker used for the validation phase.
func WithChecker(c *validate.Checker) Option {
	return func(e *Engine) {
		if c != nil {
			e.checker = c
		}
	}
}

// WithClient substitutes the HTTP client used for fetching.
func WithClient(c *http.Client) Option {
	return func(e *Engine) {
		if c != nil {
			e.client = c
		}
	}
}

// WithRetryBudget bounds the total time spent retrying one file's
// transient failures.
func WithRetryBudget(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.retryBudget = d
		}
	}
}

// WithRetryUnit sets the base backoff interval between retries.
func WithRetryUnit(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.retryUnit = d
		}
	}
}

// New returns an Engine with default limits. The tracer comes from the
// global OpenTelemetry provider; without an installed SDK the spans are
// no-ops.
func New(opts ...Option) *Engine {
	e := &Engine{
		client:      &http.Client{},
		checker:     validate.New(),
		workers:     defaultWorkers,
		retryBudget: defaultRetryBudget,
		retryUnit:   defaultRetryUnit,
		progress:    &Progress{},
		tracer:      otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Progress exposes the shared counters for polling while a fetch runs.
func (e *Engine) Progress() *Progress {
	return e.progress
}

// task is one FileEntry resolved against its dataset and destination name.
type task struct {
	dataset string
	kind    manifest.FileKind
	entry   manifest.FileEntry
	name    string
}

// FetchDataset downloads every file of one dataset into destDir and
// reports per-file outcomes. Only setup failures (an unusable destination
// directory) surface as an error; per-file failures mark their Report
// entry and never abort siblings.
func (e *Engine) FetchDataset(ctx context.Context, ds *manifest.Dataset, destDir string) (*Report, error) {
	return e.fetch(ctx, "refdex.fetch.dataset", tasksFor(ds), destDir)
}

// FetchAll downloads the files of every dataset in the manifest.
func (e *Engine) FetchAll(ctx context.Context, m *manifest.Manifest, destDir string) (*Report, error) {
	var tasks []task
	for i := range m.Project.Datasets {
		tasks = append(tasks, tasksFor(&m.Project.Datasets[i])...)
	}
	return e.fetch(ctx, "refdex.fetch.all", tasks, destDir)
}

func (e *Engine) fetch(ctx context.Context, spanName string, tasks []task, destDir string) (*Report, error) {
	ctx, span := e.tracer.Start(ctx, spanName,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.Int("refdex.files", len(tasks)),
			attribute.String("refdex.dest", destDir),
		))
	defer span.End()

	if err := os.MkdirAll(destDir, 0755); err != nil {
		ferr := errors.New("E080").
			WithDetailf("creating destination directory %s", destDir).
			Wrap(err)
		span.RecordError(ferr)
		span.SetStatus(codes.Error, ferr.Error())
		return nil, ferr
	}
	sweepTemp(destDir)

	e.progress.begin(len(tasks))
	report := &Report{Outcomes: e.run(ctx, tasks, destDir)}
	report.sort()

	span.SetAttributes(
		attribute.Int("refdex.succeeded", report.Succeeded()),
		attribute.Int("refdex.failed", report.Failed()),
		attribute.Int("refdex.skipped", report.Skipped()),
	)
	if report.Ok() {
		span.SetStatus(codes.Ok, "")
	} else {
		span.SetStatus(codes.Error, "one or more files were not fetched")
	}
	return report, nil
}

func (e *Engine) run(ctx context.Context, tasks []task, destDir string) []Outcome {
	outcomes := make([]Outcome, len(tasks))
	for i, t := range tasks {
		outcomes[i] = Outcome{Dataset: t.dataset, Kind: t.kind, URL: t.entry.URL}
	}

	// Phase 1: every URL is validated before a single byte is fetched, so
	// partial-failure accounting stays race free.
	verdicts := make([]error, len(tasks))
	var vg errgroup.Group
	vg.SetLimit(e.workers)
	for i := range tasks {
		if tasks[i].name == "" {
			verdicts[i] = errors.New("E040").
				WithDetailf("cannot derive a filename from %s", tasks[i].entry.URL)
			continue
		}
		vg.Go(func() error {
			verdicts[i] = e.checker.Check(ctx, tasks[i].entry.URL)
			return nil
		})
	}
	// Workers report through their verdict slot, never through the group.
	_ = vg.Wait()

	runnable := make([]int, 0, len(tasks))
	for i := range tasks {
		err := verdicts[i]
		if err == nil {
			runnable = append(runnable, i)
			continue
		}
		outcomes[i].Err = err
		if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
			outcomes[i].Status = StatusFailed
		} else {
			outcomes[i].Status = StatusSkipped
		}
		e.progress.fileDone()
	}

	// Phase 2: fetch the survivors. A failing task never aborts its
	// siblings; cancellation only stops tasks that have not started.
	var fg errgroup.Group
	fg.SetLimit(e.workers)
	for _, i := range runnable {
		if err := ctx.Err(); err != nil {
			outcomes[i].Status = StatusFailed
			outcomes[i].Err = errors.New("E060").
				WithDetailf("%s was not fetched", tasks[i].entry.URL).
				Wrap(err)
			e.progress.fileDone()
			continue
		}
		fg.Go(func() error {
			outcomes[i] = e.fetchOne(ctx, tasks[i], destDir)
			e.progress.fileDone()
			return nil
		})
	}
	_ = fg.Wait()

	return outcomes
}

func (e *Engine) fetchOne(ctx context.Context, t task, destDir string) Outcome {
	ctx, span := e.tracer.Start(ctx, "refdex.fetch.file",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("refdex.url", t.entry.URL),
			attribute.String("refdex.kind", string(t.kind)),
		))
	defer span.End()

	out := Outcome{Dataset: t.dataset, Kind: t.kind, URL: t.entry.URL}
	final := filepath.Join(destDir, t.name)

	var size int64
	var sum string
	err := retry.Exponential(e.retryBudget, retry.WithUnits(e.retryUnit)).
		RetryWithContext(ctx, func(ctx context.Context) error {
			n, digest, aerr := e.attempt(ctx, t.entry.URL, final)
			if aerr != nil {
				return aerr
			}
			size, sum = n, digest
			return nil
		})
	if err != nil {
		out.Status = StatusFailed
		out.Err = normalizeFetch(err, t.entry.URL, e.retryBudget)
		span.RecordError(out.Err)
		span.SetStatus(codes.Error, out.Err.Error())
		return out
	}

	out.Status = StatusSucceeded
	out.Path = final
	out.Bytes = size
	out.Checksum = sum
	span.SetAttributes(attribute.Int64("refdex.bytes", size))
	span.SetStatus(codes.Ok, "")
	return out
}

// attempt performs one complete try: request, stream to a fresh temp file
// while hashing, then rename into place. Every failure path removes the
// temp file and backs its bytes out of the progress aggregate.
func (e *Engine) attempt(ctx context.Context, rawURL, final string) (int64, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, "", errors.New("E040").WithDetail(err.Error())
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return 0, "", classifyFetch(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return 0, "", errors.New("E060").WithDetailf("%s answered %s", rawURL, resp.Status)
	}

	tmp, err := os.CreateTemp(filepath.Dir(final), tmpPattern)
	if err != nil {
		return 0, "", errors.New("E080").
			WithDetailf("creating a temp file next to %s", final).
			Wrap(err)
	}

	h := sha256.New()
	cr := &countingReader{r: resp.Body, agg: &e.progress.bytes}
	discard := func() {
		tmp.Close()
		os.Remove(tmp.Name())
		e.progress.bytes.Add(-cr.total)
	}

	n, err := io.Copy(io.MultiWriter(tmp, h), cr)
	if err != nil {
		discard()
		var pathErr *fs.PathError
		if stderrors.As(err, &pathErr) {
			return 0, "", errors.New("E080").WithDetailf("writing %s", final).Wrap(err)
		}
		return 0, "", classifyFetch(err)
	}
	if err := tmp.Sync(); err != nil {
		discard()
		return 0, "", errors.New("E080").WithDetailf("flushing %s", final).Wrap(err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		e.progress.bytes.Add(-cr.total)
		return 0, "", errors.New("E080").WithDetailf("closing %s", final).Wrap(err)
	}
	// Downloads stay world-readable; CreateTemp starts files at 0600.
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		os.Remove(tmp.Name())
		e.progress.bytes.Add(-cr.total)
		return 0, "", errors.New("E080").
			WithDetailf("setting permissions on %s", final).
			Wrap(err)
	}
	if err := os.Rename(tmp.Name(), final); err != nil {
		os.Remove(tmp.Name())
		e.progress.bytes.Add(-cr.total)
		return 0, "", errors.New("E080").
			WithDetailf("moving %s into place", final).
			Wrap(err)
	}
	return n, hex.EncodeToString(h.Sum(nil)), nil
}

// classifyFetch sorts transport errors into retryable and fatal,
// mirroring the validation checker's transient rules.
func classifyFetch(err error) error {
	switch {
	case err == nil:
		return nil
	case stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded):
		return err
	case validate.IsTransient(err):
		return retry.ExpectedError(err)
	default:
		return errors.New("E060").WithDetail(err.Error())
	}
}

// normalizeFetch gives the final error surfaced in an Outcome a download
// code without burying the cause.
func normalizeFetch(err error, rawURL string, budget time.Duration) error {
	switch {
	case stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded):
		return errors.New("E060").WithDetailf("%s was interrupted", rawURL).Wrap(err)
	case errors.CodeOf(err) != "":
		return err
	default:
		return errors.New("E060").
			WithDetailf("giving up on %s after %s of transient failures", rawURL, budget).
			Wrap(err)
	}
}

func tasksFor(ds *manifest.Dataset) []task {
	entries := ds.Entries()
	tasks := make([]task, 0, len(entries))
	for _, entry := range entries {
		tasks = append(tasks, task{
			dataset: ds.Label,
			kind:    entry.Kind,
			entry:   entry,
			name:    filename(entry.URL),
		})
	}
	return tasks
}

// filename derives the destination name from the last path segment of the
// URL. Empty and directory-like paths yield "".
func filename(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Path == "" || strings.HasSuffix(u.Path, "/") {
		return ""
	}
	name := path.Base(u.Path)
	if name == "/" || name == "." {
		return ""
	}
	return name
}

// sweepTemp removes temp files leaked by interrupted runs. Best effort.
func sweepTemp(dir string) {
	stale, err := filepath.Glob(filepath.Join(dir, tmpPattern))
	if err != nil {
		return
	}
	for _, p := range stale {
		_ = os.Remove(p)
	}
}
