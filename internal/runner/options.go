package runner

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Requester abstracts executing a single request operation.
// Implementations should return an error for failed requests.
type Requester interface {
	Do(ctx context.Context) error
}

// Options configure the Runner.
type Options struct {
	Users          int                         // number of simulated users
	SpawnRate      float64                     // users started per second (0 starts all at once)
	TotalRequests  int                         // total tasks to execute (0 means unlimited until duration/end)
	Duration       time.Duration               // overall time limit (0 means no duration cap)
	RatePerSecond  int                         // global requests per second cap (0 means unlimited)
	ThinkMin       time.Duration               // lower bound of the wait between a user's tasks
	ThinkMax       time.Duration               // upper bound of the wait between a user's tasks
	RandomSeed     int64                       // think-time seed (0 picks one from the clock)
	Requester      Requester                   // request executor (required)
	LimiterFactory func(rps int) *rate.Limiter // optional injection for tests
	OnUserStarted  func(active int)            // optional hook called after each user starts
}

func (o *Options) normalize() {
	if o.Users <= 0 {
		o.Users = 1
	}
	if o.SpawnRate < 0 {
		o.SpawnRate = 0
	}
	if o.TotalRequests < 0 {
		o.TotalRequests = 0
	}
	if o.RatePerSecond < 0 {
		o.RatePerSecond = 0
	}
	if o.ThinkMin < 0 {
		o.ThinkMin = 0
	}
	if o.ThinkMax < o.ThinkMin {
		o.ThinkMax = o.ThinkMin
	}
	if o.RandomSeed == 0 {
		o.RandomSeed = time.Now().UnixNano()
	}
	if o.LimiterFactory == nil {
		o.LimiterFactory = func(rps int) *rate.Limiter {
			if rps <= 0 {
				return rate.NewLimiter(rate.Inf, 0)
			}
			// Burst equal to rps to smooth pacing under concurrency.
			return rate.NewLimiter(rate.Limit(rps), rps)
		}
	}
}

func newSpawnLimiter(perSecond float64) *rate.Limiter {
	if perSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Limit(perSecond), 1)
}
