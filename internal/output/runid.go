package output

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// NewRunID returns a lexically sortable identifier for a run started at t.
func NewRunID(t time.Time) string {
	return ulid.MustNew(ulid.Timestamp(t), ulid.DefaultEntropy()).String()
}
