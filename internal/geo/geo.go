package geo

import (
	"errors"
	"fmt"
	"math/rand"
	"net/url"
	"strconv"
	"strings"
	"sync"
)

const (
	DirectionsPath     = "/maps/api/directions/json"
	DistanceMatrixPath = "/maps/api/distancematrix/json"
)

// ErrNoRoutes is returned when a picker or routes file has nothing to choose from.
var ErrNoRoutes = errors.New("route set is empty")

// Route is an origin/destination pair understood by the directions endpoint.
type Route struct {
	Origin      string `json:"origin"`
	Destination string `json:"destination"`
}

// SampleRoutes is the default set of routes exercised by the load driver.
var SampleRoutes = []Route{
	{Origin: "Chicago,IL", Destination: "St Louis,MO"},
	{Origin: "New York,NY", Destination: "Boston,MA"},
	{Origin: "Seattle,WA", Destination: "Portland,OR"},
	{Origin: "Miami,FL", Destination: "Orlando,FL"},
	{Origin: "Austin,TX", Destination: "Houston,TX"},
}

type TravelMode string

const (
	ModeDriving   TravelMode = "driving"
	ModeWalking   TravelMode = "walking"
	ModeTransit   TravelMode = "transit"
	ModeBicycling TravelMode = "bicycling"
)

// TravelModes lists every mode the load driver may request.
var TravelModes = []TravelMode{ModeDriving, ModeWalking, ModeTransit, ModeBicycling}

// DirectionsParams holds the query of a single directions request.
type DirectionsParams struct {
	Origin       string
	Destination  string
	Key          string
	Mode         TravelMode
	Alternatives bool
}

// Values encodes the parameters as a directions query string.
func (p DirectionsParams) Values() url.Values {
	v := url.Values{}
	v.Set("origin", p.Origin)
	v.Set("destination", p.Destination)
	v.Set("key", p.Key)
	if p.Mode != "" {
		v.Set("mode", string(p.Mode))
		v.Set("alternatives", strconv.FormatBool(p.Alternatives))
	}
	return v
}

// Picker draws uniformly random directions parameters. It is safe for concurrent use.
type Picker struct {
	mu     sync.Mutex
	rnd    *rand.Rand
	routes []Route
}

// NewPicker returns a picker over routes seeded with seed.
func NewPicker(seed int64, routes []Route) (*Picker, error) {
	if len(routes) == 0 {
		return nil, ErrNoRoutes
	}
	return &Picker{
		rnd:    rand.New(rand.NewSource(seed)),
		routes: append([]Route(nil), routes...),
	}, nil
}

// Next returns fresh parameters with a random route, mode and alternatives flag.
func (p *Picker) Next(key string) DirectionsParams {
	p.mu.Lock()
	route := p.routes[p.rnd.Intn(len(p.routes))]
	mode := TravelModes[p.rnd.Intn(len(TravelModes))]
	alternatives := p.rnd.Intn(2) == 1
	p.mu.Unlock()

	return DirectionsParams{
		Origin:       route.Origin,
		Destination:  route.Destination,
		Key:          key,
		Mode:         mode,
		Alternatives: alternatives,
	}
}

// Routes returns a copy of the routes the picker draws from.
func (p *Picker) Routes() []Route {
	return append([]Route(nil), p.routes...)
}

// Coordinate is a latitude/longitude pair.
type Coordinate struct {
	Lat float64
	Lon float64
}

func (c Coordinate) String() string {
	return fmt.Sprintf("%.4f,%.4f", c.Lat, c.Lon)
}

// JoinCoordinates renders coordinates as a pipe separated list.
func JoinCoordinates(coords []Coordinate) string {
	parts := make([]string, len(coords))
	for i, c := range coords {
		parts[i] = c.String()
	}
	return strings.Join(parts, "|")
}

// SmokeCoordinates are New York, Boston and Chicago.
var SmokeCoordinates = []Coordinate{
	{Lat: 40.7128, Lon: -74.0060},
	{Lat: 42.3601, Lon: -71.0589},
	{Lat: 41.8781, Lon: -87.6298},
}

// SmokeRoute is the fixed route used by the directions smoke probe.
var SmokeRoute = Route{Origin: "New York, NY", Destination: "Boston, MA"}

// DistanceMatrixParams holds the query of a distance-matrix request.
type DistanceMatrixParams struct {
	Origins      []Coordinate
	Destinations []Coordinate
	Key          string
}

func (p DistanceMatrixParams) Values() url.Values {
	v := url.Values{}
	v.Set("origins", JoinCoordinates(p.Origins))
	v.Set("destinations", JoinCoordinates(p.Destinations))
	v.Set("key", p.Key)
	return v
}
