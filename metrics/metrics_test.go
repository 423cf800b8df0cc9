package metrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/shmbus/shmbus/metrics"
)

func TestRegisterIsIdempotentPerRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := metrics.Register(reg); err != nil {
		t.Fatal(err)
	}
	if err := metrics.Register(reg); err == nil {
		t.Fatal("expected double-registration against the same registry to fail")
	}
}
