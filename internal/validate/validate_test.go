package validate

import (
	"context"
	stderrors "errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/refdex-dev/refdex/internal/errors"
)

// fastChecker returns a checker with a retry budget small enough for tests.
func fastChecker() *Checker {
	return New(
		WithRetryBudget(2*time.Second),
		WithAttemptTimeout(time.Second),
		WithRetryUnit(5*time.Millisecond),
	)
}

func TestNew(t *testing.T) {
	c := New()

	if c.client == nil {
		t.Fatal("client not set")
	}
	if c.cache == nil {
		t.Fatal("cache not set")
	}
	if c.budget != defaultRetryBudget {
		t.Errorf("budget = %v, want %v", c.budget, defaultRetryBudget)
	}
	if c.client.Timeout != defaultAttemptTimeout {
		t.Errorf("client timeout = %v, want %v", c.client.Timeout, defaultAttemptTimeout)
	}
}

func TestCheckSyntax(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{name: "https", url: "https://example.org/ref.fa"},
		{name: "http", url: "http://example.org/ref.fa"},
		{name: "ftp", url: "ftp://example.org/ref.fa", wantErr: true},
		{name: "relative", url: "/data/ref.fa", wantErr: true},
		{name: "no host", url: "https:///ref.fa", wantErr: true},
		{name: "empty", url: "", wantErr: true},
		{name: "spaces", url: "not a url", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkSyntax(tt.url)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("checkSyntax(%q) expected error", tt.url)
				}
				if !errors.HasCode(err, "E040") {
					t.Errorf("error code = %q, want E040", errors.CodeOf(err))
				}
				return
			}
			if err != nil {
				t.Errorf("checkSyntax(%q) error: %v", tt.url, err)
			}
		})
	}
}

func TestCheck_Malformed(t *testing.T) {
	c := fastChecker()

	err := c.Check(context.Background(), "ftp://example.org/ref.fa")
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.HasCode(err, "E040") {
		t.Errorf("error code = %q, want E040", errors.CodeOf(err))
	}
}

func TestCheck_HeadOK(t *testing.T) {
	var heads, gets atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodHead:
			heads.Add(1)
		case http.MethodGet:
			gets.Add(1)
		}
	}))
	defer srv.Close()

	c := fastChecker()
	if err := c.Check(context.Background(), srv.URL+"/ref.fa"); err != nil {
		t.Fatalf("Check error: %v", err)
	}
	if heads.Load() != 1 {
		t.Errorf("HEAD count = %d, want 1", heads.Load())
	}
	if gets.Load() != 0 {
		t.Errorf("GET count = %d, want 0", gets.Load())
	}
}

func TestCheck_HeadFallsBackToRangedGet(t *testing.T) {
	var heads, gets atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodHead:
			heads.Add(1)
			w.WriteHeader(http.StatusMethodNotAllowed)
		case http.MethodGet:
			gets.Add(1)
			if r.Header.Get("Range") != "bytes=0-0" {
				t.Errorf("Range header = %q, want %q", r.Header.Get("Range"), "bytes=0-0")
			}
			w.WriteHeader(http.StatusPartialContent)
			w.Write([]byte("x"))
		}
	}))
	defer srv.Close()

	c := fastChecker()
	if err := c.Check(context.Background(), srv.URL+"/ref.fa"); err != nil {
		t.Fatalf("Check error: %v", err)
	}
	if heads.Load() != 1 || gets.Load() != 1 {
		t.Errorf("requests = %d HEAD, %d GET, want 1 and 1", heads.Load(), gets.Load())
	}
}

func TestCheck_ErrorStatusNotRetried(t *testing.T) {
	tests := []struct {
		name   string
		status int
	}{
		{name: "not found", status: http.StatusNotFound},
		{name: "forbidden", status: http.StatusForbidden},
		{name: "server error", status: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var requests atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				requests.Add(1)
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			c := fastChecker()
			err := c.Check(context.Background(), srv.URL+"/ref.fa")
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.HasCode(err, "E041") {
				t.Errorf("error code = %q, want E041", errors.CodeOf(err))
			}
			if requests.Load() != 1 {
				t.Errorf("request count = %d, want 1 (no retries)", requests.Load())
			}
		})
	}
}

func TestCheck_TransientRetriedUntilSuccess(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			// Drop the connection without answering.
			hj, ok := w.(http.Hijacker)
			if !ok {
				t.Error("server does not support hijacking")
				return
			}
			conn, _, err := hj.Hijack()
			if err != nil {
				t.Error(err)
				return
			}
			conn.Close()
			return
		}
	}))
	defer srv.Close()

	c := fastChecker()
	if err := c.Check(context.Background(), srv.URL+"/ref.fa"); err != nil {
		t.Fatalf("Check error after retry: %v", err)
	}
	if attempts.Load() < 2 {
		t.Errorf("attempts = %d, want at least 2", attempts.Load())
	}
}

func TestCheck_TransientBudgetExhausted(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		hj, ok := w.(http.Hijacker)
		if !ok {
			t.Error("server does not support hijacking")
			return
		}
		conn, _, err := hj.Hijack()
		if err != nil {
			t.Error(err)
			return
		}
		conn.Close()
	}))
	defer srv.Close()

	c := New(
		WithRetryBudget(200*time.Millisecond),
		WithAttemptTimeout(time.Second),
		WithRetryUnit(5*time.Millisecond),
	)

	err := c.Check(context.Background(), srv.URL+"/ref.fa")
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.HasCode(err, "E042") {
		t.Errorf("error code = %q, want E042", errors.CodeOf(err))
	}
	if attempts.Load() < 2 {
		t.Errorf("attempts = %d, want at least 2", attempts.Load())
	}
}

func TestCheck_CachesVerdicts(t *testing.T) {
	t.Run("positive verdict", func(t *testing.T) {
		var requests atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requests.Add(1)
		}))
		defer srv.Close()

		c := fastChecker()
		url := srv.URL + "/ref.fa"
		for i := 0; i < 3; i++ {
			if err := c.Check(context.Background(), url); err != nil {
				t.Fatalf("Check %d error: %v", i, err)
			}
		}
		if requests.Load() != 1 {
			t.Errorf("request count = %d, want 1 (cached)", requests.Load())
		}
	})

	t.Run("negative verdict", func(t *testing.T) {
		var requests atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requests.Add(1)
			w.WriteHeader(http.StatusNotFound)
		}))
		defer srv.Close()

		c := fastChecker()
		url := srv.URL + "/ref.fa"
		for i := 0; i < 3; i++ {
			err := c.Check(context.Background(), url)
			if !errors.HasCode(err, "E041") {
				t.Fatalf("Check %d code = %q, want E041", i, errors.CodeOf(err))
			}
		}
		if requests.Load() != 1 {
			t.Errorf("request count = %d, want 1 (cached)", requests.Load())
		}
	})
}

func TestCheck_ContextCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := fastChecker()
	err := c.Check(ctx, srv.URL+"/ref.fa")
	if err == nil {
		t.Fatal("expected error")
	}
	if !stderrors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "nil",
			err:  nil,
			want: false,
		},
		{
			name: "timeout",
			err:  timeoutErr{},
			want: true,
		},
		{
			name: "connection reset",
			err:  &net.OpError{Op: "read", Err: syscall.ECONNRESET},
			want: true,
		},
		{
			name: "eof",
			err:  io.EOF,
			want: true,
		},
		{
			name: "unexpected eof",
			err:  io.ErrUnexpectedEOF,
			want: true,
		},
		{
			name: "dns failure",
			err:  &net.DNSError{Err: "no such host", Name: "nope.invalid", IsNotFound: true},
			want: false,
		},
		{
			name: "plain error",
			err:  stderrors.New("boom"),
			want: false,
		},
		{
			name: "canceled",
			err:  context.Canceled,
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	// DNS failures are fatal and carry the unreachable code.
	err := classify(&net.DNSError{Err: "no such host", Name: "nope.invalid"})
	if !errors.HasCode(err, "E041") {
		t.Errorf("dns error code = %q, want E041", errors.CodeOf(err))
	}

	// Connection resets are marked retryable, not given a final code.
	err = classify(&net.OpError{Op: "read", Err: syscall.ECONNRESET})
	if errors.CodeOf(err) != "" {
		t.Errorf("transient error should carry no final code, got %q", errors.CodeOf(err))
	}
	if err == nil {
		t.Error("transient classification should keep the error")
	}

	// Cancellation passes through untouched.
	err = classify(context.Canceled)
	if !stderrors.Is(err, context.Canceled) {
		t.Errorf("canceled should pass through, got %v", err)
	}
}
