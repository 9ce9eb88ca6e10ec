// Package runner drives simulated users against a [Requester].
//
// Each user is a goroutine that executes one task, waits a think time drawn
// uniformly from [ThinkMin, ThinkMax] and repeats. The run ends when Duration
// elapses, TotalRequests tasks have executed, or the context is cancelled.
//
//	r := runner.New(runner.Options{
//		Users:         10,
//		SpawnRate:     2,
//		TotalRequests: 1000,
//		ThinkMin:      500 * time.Millisecond,
//		ThinkMax:      2 * time.Second,
//		Requester:     task,
//	})
//	result := r.Run(ctx)
//
// Users start at SpawnRate per second. RatePerSecond caps the combined request
// rate of all users. Both are paced with golang.org/x/time/rate.
//
// [WithLogging] wraps a Requester so failures reach a [FailureLogger].
package runner
