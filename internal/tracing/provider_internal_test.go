package tracing

import (
	"context"
	"strings"
	"testing"

	"github.com/torosent/geoload/internal/config"
)

func TestSamplerFor(t *testing.T) {
	tests := []struct {
		rate    float64
		want    string
		wantErr bool
	}{
		{rate: 0, want: "AlwaysOffSampler"},
		{rate: 1, want: "AlwaysOnSampler"},
		{rate: 0.25, want: "TraceIDRatioBased{0.25}"},
		{rate: -0.1, wantErr: true},
		{rate: 1.01, wantErr: true},
	}
	for _, tt := range tests {
		s, err := samplerFor(tt.rate)
		if tt.wantErr {
			if err == nil {
				t.Errorf("samplerFor(%g) expected error", tt.rate)
			}
			continue
		}
		if err != nil {
			t.Fatalf("samplerFor(%g) error = %v", tt.rate, err)
		}
		if got := s.Description(); got != tt.want {
			t.Errorf("samplerFor(%g) = %s, want %s", tt.rate, got, tt.want)
		}
	}
}

func TestInitRejectsProtocolBeforeDialing(t *testing.T) {
	_, err := Init(context.Background(), config.TracingConfig{Endpoint: "localhost:4317", Protocol: "Zipkin"})
	if err == nil || !strings.Contains(err.Error(), `"zipkin"`) || !strings.Contains(err.Error(), `"grpc", "http"`) {
		t.Fatalf("Init() error = %v", err)
	}
}

func TestInitEndpointFromEnvironment(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318")
	p, err := Init(context.Background(), config.TracingConfig{Enable: true, Protocol: "http", Insecure: true, SampleRate: 1})
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })
	if p.tp == nil {
		t.Fatal("expected an exporting provider when the endpoint comes from the environment")
	}
}

func TestRunAttributes(t *testing.T) {
	attrs := RunAttributes("http://localhost:8081/maps/api/directions/json", 4)
	got := map[string]string{}
	for _, kv := range attrs {
		got[string(kv.Key)] = kv.Value.Emit()
	}
	if got[string(AttrTargetHost)] != "localhost:8081" || got[string(AttrUsers)] != "4" {
		t.Fatalf("RunAttributes() = %v", got)
	}
	if attrs := RunAttributes("::not a url", 1); len(attrs) != 1 {
		t.Fatalf("unparseable target should only carry users, got %v", attrs)
	}
}
