package runner

import (
	"math/rand"
	"sync"
	"time"
)

// thinkTime samples uniform waits in [min, max]. Users share one source.
type thinkTime struct {
	mu  sync.Mutex
	rng *rand.Rand
	min time.Duration
	max time.Duration
}

func newThinkTime(min, max time.Duration, seed int64) *thinkTime {
	return &thinkTime{rng: rand.New(rand.NewSource(seed)), min: min, max: max}
}

func (t *thinkTime) Sample() time.Duration {
	span := int64(t.max - t.min)
	if span <= 0 {
		return t.min
	}
	t.mu.Lock()
	offset := t.rng.Int63n(span + 1)
	t.mu.Unlock()
	return t.min + time.Duration(offset)
}
