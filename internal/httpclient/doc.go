// Package httpclient builds and captures the HTTP requests geoload sends.
//
// # Request Building
//
// Use [NewRequestBuilder] to bind a target base URL and an API path:
//
//	builder, err := httpclient.NewRequestBuilder("http://localhost:8081", geo.DirectionsPath, nil)
//	if err != nil {
//		return err
//	}
//	req, err := builder.Build(ctx, params.Values())
//
// # Capturing Responses
//
// [Capture] sends the request and reads the body, status, headers and elapsed time
// into a [Response]. The X-Cache header set by the geo server is available through
// [Response.CacheStatus].
//
// # HTTP Client
//
// The [NewClient] function creates an HTTP client tuned for load testing with
// connection reuse. A zero timeout leaves requests unbounded:
//
//	client := httpclient.NewClient(0)
package httpclient
