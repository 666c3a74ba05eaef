// Package validate checks that registered URLs are live before they are
// trusted.
//
// The probe is deliberately lightweight: a HEAD request, falling back to a
// one-byte ranged GET for servers that reject HEAD. Transient failures
// (timeouts, connection resets) are retried with exponential backoff inside
// a bounded budget; definitive answers (4xx/5xx statuses, DNS failures,
// malformed URLs) are never retried. Verdicts are cached in-process with a
// TTL.
//
// A verdict is advisory and point-in-time: it says the URL answered at the
// most recent check, not that it will keep answering.
//
// # Usage
//
//	checker := validate.New()
//	if err := checker.Check(ctx, "https://example.org/ref.fa"); err != nil {
//	    return err
//	}
package validate
