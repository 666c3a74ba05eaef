// Package errors provides structured, actionable error messages for refdex.
//
// Every failure the tool can report maps to a registered code that carries:
//   - A short message describing the error
//   - A detailed explanation
//   - A fix suggestion where one exists
//   - A documentation URL
//
// # Error Categories
//
// Errors are organized into categories:
//   - registry: dataset bookkeeping errors (duplicate labels, unknown labels)
//   - manifest: manifest file errors (missing, corrupt, already present)
//   - validation: URL syntax and reachability errors
//   - network: transient transport errors (retried before surfacing)
//   - download: fetch and streaming errors
//   - filesystem: local file and directory errors
//
// # Usage
//
//	err := errors.New("E041").
//	    WithDetail("HEAD https://example.org/ref.fa returned status 404").
//	    WithSuggestion("Check that the URL is still published")
//
//	errors.PrintError(err)
//	// Output:
//	// ERROR E041: URL is not reachable
//	//
//	//   HEAD https://example.org/ref.fa returned status 404
//	//
//	//   Hint: Check that the URL is still published
//	//
//	//   Learn more: https://refdex.dev/docs/errors/E041
package errors
