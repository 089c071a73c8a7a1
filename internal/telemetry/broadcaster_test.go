package telemetry

import (
	"sync"
	"testing"
	"time"

	"jotagateway/pkg/types"
)

type fakeHardware struct{ snap types.HardwareSnapshot }

func (f *fakeHardware) Snapshot() types.HardwareSnapshot { return f.snap }

type fakeDispatcher struct {
	active int
	last   types.Metrics
	total  int64
}

func (f *fakeDispatcher) ActiveCount() int            { return f.active }
func (f *fakeDispatcher) LastMetrics() types.Metrics  { return f.last }
func (f *fakeDispatcher) TotalTokensGenerated() int64 { return f.total }

type fakeRegistry struct{ total int }

func (f *fakeRegistry) Total() int { return f.total }

func TestBroadcasterPublishesOnEachTick(t *testing.T) {
	hw := &fakeHardware{snap: types.HardwareSnapshot{TempC: 81, VRAMTotal: 8 << 30, Throttling: true}}
	disp := &fakeDispatcher{active: 2, last: types.Metrics{TPS: 12.5, TTFTMs: 40}, total: 1000}
	reg := &fakeRegistry{total: 3}

	var mu sync.Mutex
	var got []types.MetricsEnvelope
	b := New(hw, disp, reg, func(e types.MetricsEnvelope) {
		mu.Lock()
		got = append(got, e)
		mu.Unlock()
	}, 20*time.Millisecond)

	go b.Run()
	time.Sleep(70 * time.Millisecond)
	b.Stop()

	mu.Lock()
	defer mu.Unlock()
	if len(got) < 2 {
		t.Fatalf("expected at least 2 published envelopes, got %d", len(got))
	}
	e := got[0]
	if e.GPU.TempC != 81 || !e.GPU.Throttling {
		t.Fatalf("unexpected gpu block: %+v", e.GPU)
	}
	if e.GPU.VRAMTotalMB != 8192 {
		t.Fatalf("expected 8192 MB, got %d", e.GPU.VRAMTotalMB)
	}
	if e.Inference.ActiveGenerations != 2 || e.Inference.TotalSessions != 3 {
		t.Fatalf("unexpected inference block: %+v", e.Inference)
	}
	if e.Inference.TotalTokensGenerated != 1000 {
		t.Fatalf("expected total tokens 1000, got %d", e.Inference.TotalTokensGenerated)
	}
}

func TestBroadcasterStopIsIdempotent(t *testing.T) {
	b := New(&fakeHardware{}, &fakeDispatcher{}, &fakeRegistry{}, func(types.MetricsEnvelope) {}, 10*time.Millisecond)
	go b.Run()
	time.Sleep(15 * time.Millisecond)
	b.Stop()
	b.Stop()
}
