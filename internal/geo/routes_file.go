package geo

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LoadRoutes reads routes from a CSV or JSON file. The format is taken from
// kind ("csv" or "json") or, when kind is empty, from the file extension.
func LoadRoutes(path, kind string) ([]Route, error) {
	if kind == "" {
		kind = strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	}
	switch strings.ToLower(kind) {
	case "csv":
		return loadCSVRoutes(path)
	case "json":
		return loadJSONRoutes(path)
	default:
		return nil, fmt.Errorf("unsupported routes file type %q (use csv or json)", kind)
	}
}

// loadCSVRoutes expects a header row naming the origin and destination columns.
func loadCSVRoutes(path string) ([]Route, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read CSV: %w", err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("CSV file must have a header row and at least one route: %w", ErrNoRoutes)
	}

	originIdx, destIdx := -1, -1
	for i, name := range rows[0] {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "origin":
			originIdx = i
		case "destination":
			destIdx = i
		}
	}
	if originIdx < 0 || destIdx < 0 {
		return nil, fmt.Errorf("CSV header must contain origin and destination columns")
	}

	routes := make([]Route, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if len(row) != len(rows[0]) {
			return nil, fmt.Errorf("row %d has %d fields, expected %d", i+2, len(row), len(rows[0]))
		}
		route := Route{Origin: strings.TrimSpace(row[originIdx]), Destination: strings.TrimSpace(row[destIdx])}
		if route.Origin == "" || route.Destination == "" {
			return nil, fmt.Errorf("row %d: origin and destination are required", i+2)
		}
		routes = append(routes, route)
	}
	return routes, nil
}

func loadJSONRoutes(path string) ([]Route, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open JSON file: %w", err)
	}
	defer file.Close()

	var routes []Route
	if err := json.NewDecoder(file).Decode(&routes); err != nil {
		return nil, fmt.Errorf("decode JSON: %w", err)
	}
	if len(routes) == 0 {
		return nil, fmt.Errorf("JSON file contains empty array: %w", ErrNoRoutes)
	}
	for i, route := range routes {
		if strings.TrimSpace(route.Origin) == "" || strings.TrimSpace(route.Destination) == "" {
			return nil, fmt.Errorf("route %d: origin and destination are required", i)
		}
	}
	return routes, nil
}
