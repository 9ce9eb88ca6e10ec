// Package output renders run results: the final report as text, JSON or YAML, a live
// progress line, and an append-only run-history file.
package output
