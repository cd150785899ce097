package metrics

import (
	"sync"
	"testing"
)

func TestCounterMonotonic(t *testing.T) {
	c := NewCounter("test.counter")
	c.Inc()
	c.Add(5)
	c.Add(-3) // ignored
	if got := c.Value(); got != 6 {
		t.Fatalf("Value = %d, want 6", got)
	}
	if c.Name() != "test.counter" {
		t.Fatalf("Name = %q", c.Name())
	}
}

func TestGaugeUpDown(t *testing.T) {
	g := NewGauge("test.gauge")
	g.Set(10)
	g.Inc()
	g.Dec()
	g.Add(-4)
	if got := g.Value(); got != 6 {
		t.Fatalf("Value = %d, want 6", got)
	}
}

func TestRegistryGetOrCreate(t *testing.T) {
	r := NewRegistry()
	if r.Counter("a") != r.Counter("a") {
		t.Fatal("Counter must return the same instance per name")
	}
	if r.Gauge("b") != r.Gauge("b") {
		t.Fatal("Gauge must return the same instance per name")
	}
}

func TestRegistrySnapshot(t *testing.T) {
	r := NewRegistry()
	r.Counter("samples.responded").Add(3)
	r.Gauge("bytes.stored").Set(4096)

	snap := r.Snapshot()
	if snap["samples.responded"] != 3 {
		t.Fatalf("snapshot counter = %d, want 3", snap["samples.responded"])
	}
	if snap["bytes.stored"] != 4096 {
		t.Fatalf("snapshot gauge = %d, want 4096", snap["bytes.stored"])
	}
}

func TestCounterConcurrent(t *testing.T) {
	c := NewCounter("concurrent")
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				c.Inc()
			}
		}()
	}
	wg.Wait()
	if c.Value() != 8000 {
		t.Fatalf("Value = %d, want 8000", c.Value())
	}
}
