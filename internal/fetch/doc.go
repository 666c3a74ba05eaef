// Package fetch downloads the files of a dataset with bounded
// concurrency.
//
// Downloads run in two phases. First every URL is validated (syntax plus
// a reachability probe); a URL that fails validation is reported as
// skipped and nothing is fetched for it. Second, the surviving files are
// streamed concurrently to temporary files and renamed into place once
// complete, so a half-written file never appears under its final name.
// Transient network errors are retried with exponential backoff on a
// fresh temporary file; HTTP error statuses are not retried.
//
// Per-file failures never abort sibling fetches. The Report lists every
// file as succeeded, failed, or skipped, ordered by dataset label and
// file kind so the output is reproducible regardless of fetch order.
// Aggregate progress is available from Engine.Progress while a run is in
// flight:
//
//	engine := fetch.New(fetch.WithWorkers(8))
//	report, err := engine.FetchDataset(ctx, dataset, "out")
//	if err != nil {
//		return err
//	}
//	for _, o := range report.Outcomes {
//		fmt.Println(o.Kind, o.Status)
//	}
package fetch
