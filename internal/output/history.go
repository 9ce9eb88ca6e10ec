package output

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/gofrs/flock"
)

// HistoryEntry is one line of the run-history file.
type HistoryEntry struct {
	RunID          string    `json:"run_id"`
	StartedAt      time.Time `json:"started_at"`
	Target         string    `json:"target"`
	Users          int       `json:"users"`
	Requests       int64     `json:"requests"`
	Failures       int64     `json:"failures"`
	Status502      int64     `json:"status_502"`
	RequestsPerSec float64   `json:"requests_per_sec"`
	P99LatencyMs   float64   `json:"p99_latency_ms"`
	CacheHitRatio  float64   `json:"cache_hit_ratio"`
	Passed         bool      `json:"thresholds_passed"`
}

// HistoryEntryFromReport condenses r into a history line.
func HistoryEntryFromReport(r Report, passed bool) HistoryEntry {
	return HistoryEntry{
		RunID:          r.RunID,
		StartedAt:      r.StartedAt,
		Target:         r.Target,
		Users:          r.Users,
		Requests:       r.Tally.Requests,
		Failures:       r.Tally.Failures,
		Status502:      r.Tally.Status502,
		RequestsPerSec: r.Stats.RequestsPerSec,
		P99LatencyMs:   r.Stats.P99LatencyMs,
		CacheHitRatio:  r.Stats.CacheHitRatio(),
		Passed:         passed,
	}
}

// AppendHistory appends entry as a JSON line to path. Concurrent runs writing the same
// file are serialized through a lock file next to it.
func AppendHistory(path string, entry HistoryEntry) error {
	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("lock history file: %w", err)
	}
	defer func() { _ = lock.Unlock() }()

	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode history entry: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open history file: %w", err)
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		_ = f.Close()
		return fmt.Errorf("write history file: %w", err)
	}
	return f.Close()
}

// LastHistoryEntry returns the most recent entry in path. ok is false when the file
// does not exist or holds no entries.
func LastHistoryEntry(path string) (entry HistoryEntry, ok bool, err error) {
	lock := flock.New(path + ".lock")
	if err := lock.RLock(); err != nil {
		return HistoryEntry{}, false, fmt.Errorf("lock history file: %w", err)
	}
	defer func() { _ = lock.Unlock() }()

	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return HistoryEntry{}, false, nil
	}
	if err != nil {
		return HistoryEntry{}, false, fmt.Errorf("open history file: %w", err)
	}
	defer f.Close()

	var last []byte
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if len(scanner.Bytes()) > 0 {
			last = append(last[:0], scanner.Bytes()...)
		}
	}
	if err := scanner.Err(); err != nil {
		return HistoryEntry{}, false, fmt.Errorf("read history file: %w", err)
	}
	if last == nil {
		return HistoryEntry{}, false, nil
	}
	if err := json.Unmarshal(last, &entry); err != nil {
		return HistoryEntry{}, false, fmt.Errorf("decode history entry: %w", err)
	}
	return entry, true, nil
}

// CompareLine describes how current moved relative to previous.
func CompareLine(previous, current HistoryEntry) string {
	return fmt.Sprintf("Compared to run %s: RPS %+.1f, P99 %+.1fms, failures %+d, cache hit %+.1f%%",
		previous.RunID,
		current.RequestsPerSec-previous.RequestsPerSec,
		current.P99LatencyMs-previous.P99LatencyMs,
		current.Failures-previous.Failures,
		(current.CacheHitRatio-previous.CacheHitRatio)*100)
}
