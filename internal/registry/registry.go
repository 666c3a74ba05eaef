package registry

import (
	"context"
	"time"

	"github.com/refdex-dev/refdex/internal/errors"
	"github.com/refdex-dev/refdex/internal/fetch"
	"github.com/refdex-dev/refdex/internal/manifest"
	"github.com/refdex-dev/refdex/internal/validate"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "refdex/registry"

// Service implements the operations behind the refdex commands: init,
// register, remove, list, and download. Every operation loads the
// manifest from disk, works on the in-memory copy, and persists only
// after the whole operation has succeeded.
type Service struct {
	path    string
	checker *validate.Checker
	engine  *fetch.Engine
	tracer  trace.Tracer
}

// Option adjusts a Service.
type Option func(*Service)

// WithChecker substitutes the URL checker used to gate registrations.
func WithChecker(c *validate.Checker) Option {
	return func(s *Service) {
		if c != nil {
			s.checker = c
		}
	}
}

// WithEngine substitutes the download engine.
func WithEngine(e *fetch.Engine) Option {
	return func(s *Service) {
		if e != nil {
			s.engine = e
		}
	}
}

// New returns a Service operating on the manifest at path.
func New(path string, opts ...Option) *Service {
	s := &Service{
		path:   path,
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.checker == nil {
		s.checker = validate.New()
	}
	if s.engine == nil {
		// Sharing the checker lets a download reuse verdicts cached
		// during registration in the same run.
		s.engine = fetch.New(fetch.WithChecker(s.checker))
	}
	return s
}

// Path returns the manifest path the Service operates on.
func (s *Service) Path() string { return s.path }

// Engine returns the download engine, for progress polling.
func (s *Service) Engine() *fetch.Engine { return s.engine }

// Init creates a fresh manifest at the Service path. An existing manifest
// is never overwritten.
func (s *Service) Init(ctx context.Context, title, description string, global bool) (m *manifest.Manifest, err error) {
	_, span := s.start(ctx, "refdex.init")
	defer func() { finish(span, err) }()

	if manifest.Exists(s.path) {
		return nil, errors.New("E022").WithDetailf("%s already exists", s.path)
	}
	m = manifest.New(title, description, global)
	if err = manifest.Save(s.path, m); err != nil {
		return nil, err
	}
	return m, nil
}

// Register adds one dataset after validating every URL. Registration is
// all or nothing: any structural or validation failure leaves the on-disk
// manifest exactly as it was.
func (s *Service) Register(ctx context.Context, label string, urls map[manifest.FileKind]string) (ds *manifest.Dataset, err error) {
	ctx, span := s.start(ctx, "refdex.register", attribute.String("refdex.label", label))
	defer func() { finish(span, err) }()

	m, err := manifest.Load(s.path)
	if err != nil {
		return nil, err
	}

	files := make(map[manifest.FileKind]manifest.FileEntry, len(urls))
	for kind, u := range urls {
		files[kind] = manifest.FileEntry{Kind: kind, URL: u}
	}
	if err = m.AddDataset(manifest.Dataset{Label: label, Files: files}); err != nil {
		return nil, err
	}

	// Reachability gates persistence; the mutation above lives only in
	// memory until every URL has passed.
	for _, kind := range manifest.Kinds() {
		entry, ok := files[kind]
		if !ok {
			continue
		}
		if err = s.checker.Check(ctx, entry.URL); err != nil {
			return nil, err
		}
	}

	ds, _ = m.Dataset(label)
	now := time.Now().UTC().Truncate(time.Second)
	for kind, entry := range ds.Files {
		entry.LastValidated = &now
		ds.Files[kind] = entry
	}

	if err = manifest.Save(s.path, m); err != nil {
		return nil, err
	}
	return ds, nil
}

// Remove deletes a dataset from the manifest. Files already downloaded
// stay on disk.
func (s *Service) Remove(ctx context.Context, label string) (err error) {
	_, span := s.start(ctx, "refdex.remove", attribute.String("refdex.label", label))
	defer func() { finish(span, err) }()

	m, err := manifest.Load(s.path)
	if err != nil {
		return err
	}
	if err = m.RemoveDataset(label); err != nil {
		return err
	}
	return manifest.Save(s.path, m)
}

// List reloads the manifest and returns it, so the result reflects the
// file on disk at call time rather than any earlier in-memory state.
func (s *Service) List(ctx context.Context) (m *manifest.Manifest, err error) {
	_, span := s.start(ctx, "refdex.list")
	defer func() { finish(span, err) }()

	return manifest.Load(s.path)
}

// Get reloads the manifest and returns one dataset by label.
func (s *Service) Get(ctx context.Context, label string) (ds *manifest.Dataset, err error) {
	_, span := s.start(ctx, "refdex.get", attribute.String("refdex.label", label))
	defer func() { finish(span, err) }()

	m, err := manifest.Load(s.path)
	if err != nil {
		return nil, err
	}
	ds, ok := m.Dataset(label)
	if !ok {
		return nil, errors.New("E002").WithDetailf("no dataset labeled %q", label)
	}
	return ds, nil
}

// Download fetches every file of one dataset into destDir and refreshes
// the stored checksum and validation metadata for the files that
// succeeded. Per-file failures live in the returned Report, not in err.
func (s *Service) Download(ctx context.Context, label, destDir string) (report *fetch.Report, err error) {
	ctx, span := s.start(ctx, "refdex.download",
		attribute.String("refdex.label", label),
		attribute.String("refdex.dest", destDir))
	defer func() { finish(span, err) }()

	m, err := manifest.Load(s.path)
	if err != nil {
		return nil, err
	}
	ds, ok := m.Dataset(label)
	if !ok {
		return nil, errors.New("E002").WithDetailf("no dataset labeled %q", label)
	}

	report, err = s.engine.FetchDataset(ctx, ds, destDir)
	if err != nil {
		return nil, err
	}
	if refreshMetadata(m, report) {
		if err = manifest.Save(s.path, m); err != nil {
			return report, err
		}
	}
	return report, nil
}

// DownloadAll fetches the files of every dataset in the manifest.
func (s *Service) DownloadAll(ctx context.Context, destDir string) (report *fetch.Report, err error) {
	ctx, span := s.start(ctx, "refdex.download_all",
		attribute.String("refdex.dest", destDir))
	defer func() { finish(span, err) }()

	m, err := manifest.Load(s.path)
	if err != nil {
		return nil, err
	}

	report, err = s.engine.FetchAll(ctx, m, destDir)
	if err != nil {
		return nil, err
	}
	if refreshMetadata(m, report) {
		if err = manifest.Save(s.path, m); err != nil {
			return report, err
		}
	}
	return report, nil
}

// refreshMetadata copies the checksum and validation time of each
// successful outcome back into the manifest. Reports whether anything
// changed.
func refreshMetadata(m *manifest.Manifest, report *fetch.Report) bool {
	updated := false
	now := time.Now().UTC().Truncate(time.Second)
	for _, o := range report.Outcomes {
		if o.Status != fetch.StatusSucceeded {
			continue
		}
		ds, ok := m.Dataset(o.Dataset)
		if !ok {
			continue
		}
		entry, ok := ds.Files[o.Kind]
		if !ok {
			continue
		}
		entry.Checksum = o.Checksum
		entry.LastValidated = &now
		ds.Files[o.Kind] = entry
		ds.LastModified = now
		updated = true
	}
	if updated {
		m.Touch()
	}
	return updated
}

func (s *Service) start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String("refdex.manifest", s.path))
	return s.tracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...))
}

func finish(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	span.SetStatus(codes.Ok, "")
}
