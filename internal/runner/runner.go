package runner

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Result captures execution summary.
type Result struct {
	Total    int64
	Errors   int64
	Users    int
	Duration time.Duration
}

// Runner runs simulated users. Each user executes its Requester, waits a think time
// and repeats until the run ends.
type Runner struct {
	opt   Options
	think *thinkTime
}

func New(opt Options) *Runner {
	opt.normalize()
	return &Runner{opt: opt, think: newThinkTime(opt.ThinkMin, opt.ThinkMax, opt.RandomSeed)}
}

func (r *Runner) Run(ctx context.Context) Result {
	start := time.Now()
	var (
		claimed  int64
		executed int64
		errs     int64
		users    int
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if r.opt.Duration > 0 {
		deadlineCtx, deadlineCancel := context.WithTimeout(ctx, r.opt.Duration)
		ctx = deadlineCtx
		defer deadlineCancel()
	}

	// exhausted is closed once the last task slot is claimed so thinking users stop
	// waiting without cancelling requests still in flight.
	exhausted := make(chan struct{})
	var exhaustOnce sync.Once
	limiter := r.opt.LimiterFactory(r.opt.RatePerSecond)

	claim := func() bool {
		if r.opt.TotalRequests <= 0 {
			return true
		}
		n := atomic.AddInt64(&claimed, 1)
		if n >= int64(r.opt.TotalRequests) {
			exhaustOnce.Do(func() { close(exhausted) })
		}
		return n <= int64(r.opt.TotalRequests)
	}

	user := func() {
		for {
			if ctx.Err() != nil {
				return
			}
			if err := limiter.Wait(ctx); err != nil {
				return
			}
			if !claim() {
				return
			}
			if r.opt.Requester != nil {
				if err := r.opt.Requester.Do(ctx); err != nil {
					// Requests cut off by the end of the run are not failures.
					if ctx.Err() != nil {
						return
					}
					atomic.AddInt64(&errs, 1)
				}
			}
			atomic.AddInt64(&executed, 1)

			wait := r.think.Sample()
			if wait <= 0 {
				continue
			}
			timer := time.NewTimer(wait)
			select {
			case <-timer.C:
			case <-exhausted:
				timer.Stop()
				return
			case <-ctx.Done():
				timer.Stop()
				return
			}
		}
	}

	spawn := newSpawnLimiter(r.opt.SpawnRate)
	var wg sync.WaitGroup
spawnLoop:
	for i := 0; i < r.opt.Users; i++ {
		if err := spawn.Wait(ctx); err != nil {
			break
		}
		select {
		case <-exhausted:
			break spawnLoop
		default:
		}
		wg.Add(1)
		users++
		go func() {
			defer wg.Done()
			user()
		}()
		if r.opt.OnUserStarted != nil {
			r.opt.OnUserStarted(users)
		}
	}
	wg.Wait()

	return Result{
		Total:    atomic.LoadInt64(&executed),
		Errors:   atomic.LoadInt64(&errs),
		Users:    users,
		Duration: time.Since(start),
	}
}
