// Package metrics aggregates the outcomes of directions requests.
//
// Every completed request is reported once to an [Observer]. Two observers ship
// with the package and are usually combined with [Observers]:
//
//	tally := metrics.NewTally(50, os.Stdout)
//	collector := metrics.NewCollector()
//	observer := metrics.Observers{tally, collector}
//
// [Tally] keeps the request, failure and 502 counters and prints
// "Total: N, Failures: F (R%), 502s: B" every N requests. [Collector] keeps latency
// percentiles in an HDR histogram and counts outcomes by status code, X-Cache value,
// Maps API status and failure reason.
//
// Both are safe for concurrent use.
package metrics
