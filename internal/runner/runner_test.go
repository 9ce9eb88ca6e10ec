package runner_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/torosent/geoload/internal/runner"
)

// fakeRequester simulates performing a request with fixed latency.
type fakeRequester struct {
	latency   time.Duration
	calls     *int64
	failAfter int64 // if >0, fails after this many successful calls
}

func (f *fakeRequester) Do(ctx context.Context) error {
	n := atomic.AddInt64(f.calls, 1)
	select {
	case <-time.After(f.latency):
	case <-ctx.Done():
		return ctx.Err()
	}
	if f.failAfter > 0 && n > f.failAfter {
		return errors.New("boom")
	}
	return nil
}

func TestRunnerRespectsTotalRequests(t *testing.T) {
	var calls int64
	r := runner.New(runner.Options{
		Users:         4,
		TotalRequests: 25,
		Requester:     &fakeRequester{latency: time.Millisecond, calls: &calls},
	})
	res := r.Run(context.Background())
	if res.Total != 25 {
		t.Fatalf("expected total 25, got %d", res.Total)
	}
	if calls != 25 {
		t.Fatalf("expected requester called 25 times, got %d", calls)
	}
	if res.Users != 4 {
		t.Fatalf("expected 4 users, got %d", res.Users)
	}
}

func TestRunnerCountsErrors(t *testing.T) {
	var calls int64
	r := runner.New(runner.Options{
		Users:         2,
		TotalRequests: 10,
		Requester:     &fakeRequester{calls: &calls, failAfter: 4},
	})
	res := r.Run(context.Background())
	if res.Total != 10 || res.Errors != 6 {
		t.Fatalf("total/errors = %d/%d, want 10/6", res.Total, res.Errors)
	}
}

func TestRunnerHonorsDuration(t *testing.T) {
	var calls int64
	r := runner.New(runner.Options{
		Users:     10,
		Duration:  50 * time.Millisecond,
		Requester: &fakeRequester{latency: 5 * time.Millisecond, calls: &calls},
	})
	start := time.Now()
	res := r.Run(context.Background())
	elapsed := time.Since(start)
	if elapsed < 50*time.Millisecond || elapsed > 250*time.Millisecond {
		// allow some scheduling fudge but not extremely off
		t.Fatalf("duration enforcement off: %s", elapsed)
	}
	if res.Duration <= 0 {
		t.Fatalf("result duration not recorded")
	}
	if res.Total <= 0 {
		t.Fatalf("expected some requests executed")
	}
}

func TestRateLimiterCapsThroughput(t *testing.T) {
	var calls int64
	rateLimit := 100 // requests per second theoretical maximum
	duration := 100 * time.Millisecond
	r := runner.New(runner.Options{
		Users:          20,
		Duration:       duration,
		RatePerSecond:  rateLimit,
		Requester:      &fakeRequester{latency: 0, calls: &calls},
		LimiterFactory: func(rps int) *rate.Limiter { return rate.NewLimiter(rate.Limit(rps), 1) },
	})
	res := r.Run(context.Background())
	// expected upper bound ~ rateLimit * (duration seconds)
	maxExpected := int(float64(rateLimit) * (float64(duration) / float64(time.Second)) * 1.20) // 20% slack
	if int(res.Total) > maxExpected {
		t.Fatalf("rate limiter exceeded: total=%d max=%d", res.Total, maxExpected)
	}
}

func TestThinkTimeSpacesUserRequests(t *testing.T) {
	var calls int64
	r := runner.New(runner.Options{
		Users:     1,
		Duration:  120 * time.Millisecond,
		ThinkMin:  50 * time.Millisecond,
		ThinkMax:  50 * time.Millisecond,
		Requester: &fakeRequester{calls: &calls},
	})
	res := r.Run(context.Background())
	// Requests at ~0ms, ~50ms and ~100ms.
	if res.Total < 2 || res.Total > 3 {
		t.Fatalf("expected 2-3 requests with 50ms think time, got %d", res.Total)
	}
}

func TestTotalStopsThinkingUsers(t *testing.T) {
	var calls int64
	r := runner.New(runner.Options{
		Users:         3,
		TotalRequests: 3,
		ThinkMin:      10 * time.Second,
		ThinkMax:      10 * time.Second,
		Requester:     &fakeRequester{calls: &calls},
	})
	start := time.Now()
	res := r.Run(context.Background())
	if res.Total != 3 {
		t.Fatalf("expected 3 requests, got %d", res.Total)
	}
	if time.Since(start) > time.Second {
		t.Fatalf("run waited for think time after the last request: %s", time.Since(start))
	}
}

func TestSpawnRatePacesUsers(t *testing.T) {
	var (
		mu      sync.Mutex
		started []time.Time
		calls   int64
	)
	r := runner.New(runner.Options{
		Users:     3,
		SpawnRate: 20, // one user every 50ms
		Duration:  300 * time.Millisecond,
		ThinkMin:  time.Second,
		ThinkMax:  time.Second,
		Requester: &fakeRequester{calls: &calls},
		OnUserStarted: func(int) {
			mu.Lock()
			started = append(started, time.Now())
			mu.Unlock()
		},
	})
	res := r.Run(context.Background())
	if res.Users != 3 || len(started) != 3 {
		t.Fatalf("expected 3 users, got %d (%d hooks)", res.Users, len(started))
	}
	if gap := started[2].Sub(started[0]); gap < 80*time.Millisecond {
		t.Fatalf("users started too quickly: %s", gap)
	}
}

func TestRunnerStopsOnCancel(t *testing.T) {
	var calls int64
	ctx, cancel := context.WithCancel(context.Background())
	r := runner.New(runner.Options{
		Users:     2,
		ThinkMin:  time.Millisecond,
		ThinkMax:  2 * time.Millisecond,
		Requester: &fakeRequester{latency: time.Millisecond, calls: &calls},
	})
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()
	done := make(chan runner.Result)
	go func() { done <- r.Run(ctx) }()
	select {
	case res := <-done:
		if res.Total == 0 {
			t.Fatal("expected some requests before cancellation")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not stop after cancellation")
	}
}

func TestRunnerIgnoresRequestsCutOffAtEnd(t *testing.T) {
	var calls int64
	r := runner.New(runner.Options{
		Users:     3,
		Duration:  30 * time.Millisecond,
		Requester: &fakeRequester{latency: time.Second, calls: &calls},
	})
	res := r.Run(context.Background())
	if atomic.LoadInt64(&calls) == 0 {
		t.Fatal("expected requests to start before the deadline")
	}
	if res.Errors != 0 || res.Total != 0 {
		t.Fatalf("total/errors = %d/%d, want 0/0 for interrupted requests", res.Total, res.Errors)
	}
}

type recordingLogger struct {
	mu   sync.Mutex
	errs []error
}

func (l *recordingLogger) LogFailure(err error) {
	l.mu.Lock()
	l.errs = append(l.errs, err)
	l.mu.Unlock()
}

func TestWithLogging(t *testing.T) {
	var calls int64
	logger := &recordingLogger{}
	req := runner.WithLogging(&fakeRequester{calls: &calls, failAfter: 1}, logger)

	if err := req.Do(context.Background()); err != nil {
		t.Fatalf("first call error = %v", err)
	}
	if err := req.Do(context.Background()); err == nil {
		t.Fatal("expected second call to fail")
	}
	if len(logger.errs) != 1 {
		t.Fatalf("expected one logged failure, got %d", len(logger.errs))
	}

	inner := &fakeRequester{calls: &calls}
	if runner.WithLogging(inner, nil) != runner.Requester(inner) {
		t.Fatal("nil logger should return the requester unchanged")
	}
}
