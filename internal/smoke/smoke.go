// Package smoke runs short sequential probes that print the cache header of each
// response.
package smoke

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/rs/zerolog/log"

	"github.com/torosent/geoload/internal/geo"
	"github.com/torosent/geoload/internal/httpclient"
)

// DefaultRequests is the number of requests a probe sends.
const DefaultRequests = 3

// Probe is a fixed GET repeated Requests times.
type Probe struct {
	Name     string
	URL      string
	Query    url.Values
	Requests int
}

// Observation is what a probe prints for one request.
type Observation struct {
	Index       int
	StatusCode  int
	CacheStatus string
}

func (o Observation) String() string {
	cache := o.CacheStatus
	if cache == "" {
		cache = "None"
	}
	return fmt.Sprintf("Request %d: X-Cache=%s, Status=%d", o.Index, cache, o.StatusCode)
}

// DirectionsProbe requests New York to Boston.
func DirectionsProbe(endpoint, key string) Probe {
	params := geo.DirectionsParams{
		Origin:      geo.SmokeRoute.Origin,
		Destination: geo.SmokeRoute.Destination,
		Key:         key,
	}
	return Probe{Name: "directions", URL: endpoint, Query: params.Values(), Requests: DefaultRequests}
}

// DistanceMatrixProbe requests the matrix between New York, Boston and Chicago.
func DistanceMatrixProbe(endpoint, key string) Probe {
	params := geo.DistanceMatrixParams{
		Origins:      geo.SmokeCoordinates,
		Destinations: geo.SmokeCoordinates,
		Key:          key,
	}
	return Probe{Name: "distancematrix", URL: endpoint, Query: params.Values(), Requests: DefaultRequests}
}

// Run sends the probe's requests one after another and writes one line per response
// to out. The first transport error stops the probe.
func Run(ctx context.Context, client *http.Client, p Probe, out io.Writer) ([]Observation, error) {
	requests := p.Requests
	if requests < 1 {
		requests = DefaultRequests
	}
	builder, err := httpclient.NewRequestBuilder(p.URL, "", nil)
	if err != nil {
		return nil, err
	}
	if client == nil {
		client = httpclient.NewClient(0)
	}

	observations := make([]Observation, 0, requests)
	for i := 1; i <= requests; i++ {
		req, err := builder.Build(ctx, p.Query)
		if err != nil {
			return observations, err
		}
		resp, err := httpclient.Capture(client, req)
		if err != nil {
			return observations, fmt.Errorf("%s request %d: %w", p.Name, i, err)
		}
		obs := Observation{Index: i, StatusCode: resp.StatusCode, CacheStatus: resp.CacheStatus()}
		log.Debug().
			Str("probe", p.Name).
			Int("request", i).
			Dur("elapsed", resp.Elapsed).
			Int("bytes", len(resp.Body)).
			Msg("smoke response")
		fmt.Fprintln(out, obs.String())
		observations = append(observations, obs)
	}
	return observations, nil
}
