package metrics

import (
	"net/http"
	"time"
)

// Outcome describes one completed directions request.
type Outcome struct {
	// StatusCode is 0 when the request failed before a response arrived.
	StatusCode   int
	Latency      time.Duration
	Reasons      []string
	CacheStatus  string
	Body         []byte
	TransportErr error
}

// HasResponse reports whether the server answered at all.
func (o Outcome) HasResponse() bool {
	return o.TransportErr == nil && o.StatusCode != 0
}

// Failed reports whether the outcome counts as one failure.
func (o Outcome) Failed() bool {
	if !o.HasResponse() {
		return true
	}
	return o.StatusCode == http.StatusBadGateway || o.StatusCode >= 400 || len(o.Reasons) > 0
}

// Observer receives every completed request. Implementations must be safe for
// concurrent use.
type Observer interface {
	OnRequestComplete(Outcome)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Outcome)

func (f ObserverFunc) OnRequestComplete(o Outcome) { f(o) }

// Observers fans an outcome out to each member in order.
type Observers []Observer

func (all Observers) OnRequestComplete(o Outcome) {
	for _, obs := range all {
		if obs != nil {
			obs.OnRequestComplete(o)
		}
	}
}
