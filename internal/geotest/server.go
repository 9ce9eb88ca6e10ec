// Package geotest serves a fake caching geo proxy for tests.
//
// Every GET to the directions or distance-matrix path is answered with a small JSON
// body and an X-Cache header: MISS the first time a query is seen, HIT afterwards.
package geotest

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/torosent/geoload/internal/geo"
)

// Reply overrides the default answer for one request. A zero Status keeps the
// default 200 with the cache header.
type Reply struct {
	Status        int
	Body          string
	Delay         time.Duration
	OmitCacheHead bool
}

// Responder decides the reply for the n-th request (1-based).
type Responder func(n int, r *http.Request) Reply

// Server is a running fake geo server.
type Server struct {
	*httptest.Server

	mu        sync.Mutex
	seen      map[string]bool
	queries   []url.Values
	responder Responder
}

// NewServer starts a fake server. responder may be nil.
func NewServer(responder Responder) *Server {
	s := &Server{seen: make(map[string]bool), responder: responder}
	s.Server = httptest.NewServer(s.Router())
	return s
}

// Router returns the chi router backing the server.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Get(geo.DirectionsPath, s.handle(`{"status":"OK","routes":[]}`))
	r.Get(geo.DistanceMatrixPath, s.handle(`{"status":"OK","rows":[]}`))
	return r
}

// Queries returns the query of every request received so far.
func (s *Server) Queries() []url.Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]url.Values(nil), s.queries...)
}

// Count returns the number of requests received.
func (s *Server) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queries)
}

func (s *Server) handle(okBody string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.queries = append(s.queries, r.URL.Query())
		n := len(s.queries)
		cacheKey := r.URL.Path + "?" + r.URL.RawQuery
		cache := "MISS"
		if s.seen[cacheKey] {
			cache = "HIT"
		}
		s.seen[cacheKey] = true
		s.mu.Unlock()

		reply := Reply{Status: http.StatusOK, Body: okBody}
		if s.responder != nil {
			custom := s.responder(n, r)
			if custom.Status != 0 {
				reply.Status = custom.Status
				reply.Body = custom.Body
			}
			reply.Delay = custom.Delay
			reply.OmitCacheHead = custom.OmitCacheHead
		}

		if reply.Delay > 0 {
			select {
			case <-time.After(reply.Delay):
			case <-r.Context().Done():
				return
			}
		}
		if !reply.OmitCacheHead {
			w.Header().Set("X-Cache", cache)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(reply.Status)
		fmt.Fprint(w, reply.Body)
	}
}

// APIError is a 200 reply carrying a Maps API error_message.
func APIError(message string) Reply {
	return Reply{
		Status: http.StatusOK,
		Body:   fmt.Sprintf(`{"status":"REQUEST_DENIED","error_message":%q}`, message),
	}
}
