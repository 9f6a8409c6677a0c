package otel

import (
	"context"
	"strings"
	"testing"
)

func TestInitDisabledIsNoop(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{ServiceName: "tipd"})
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if _, err := Init(context.Background(), Config{}); err == nil {
		t.Fatalf("expected error without service name")
	}
	if Tracer() == nil {
		t.Fatalf("expected tracer")
	}
}

func TestParseHeaders(t *testing.T) {
	headers := ParseHeaders(" authorization = Bearer x ,broken,=skip,team=tips,")
	if len(headers) != 2 {
		t.Fatalf("unexpected headers %v", headers)
	}
	if headers["authorization"] != "Bearer x" || headers["team"] != "tips" {
		t.Fatalf("unexpected headers %v", headers)
	}
}

func TestSamplerBounds(t *testing.T) {
	always := sampler(1).Description()
	if !strings.Contains(always, "AlwaysOnSampler") {
		t.Fatalf("unexpected default sampler %s", always)
	}
	for _, ratio := range []float64{0, -1, 2} {
		if got := sampler(ratio).Description(); got != always {
			t.Fatalf("ratio %v: unexpected sampler %s", ratio, got)
		}
	}
	if got := sampler(0.25).Description(); !strings.Contains(got, "TraceIDRatioBased") {
		t.Fatalf("expected ratio sampler, got %s", got)
	}
}
