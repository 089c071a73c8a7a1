// Package telemetry implements the Telemetry Broadcaster (§4.F): a single
// dedicated goroutine that samples the hardware probe, dispatcher, and
// session registry on a fixed tick and hands the resulting envelope to the
// connection layer to fan out — it never touches subscriber sockets itself.
package telemetry

import (
	"time"

	"jotagateway/pkg/types"
)

// defaultInterval matches §6's documented GATEWAY_TELEMETRY_INTERVAL_MS default.
const defaultInterval = 1 * time.Second

// HardwareSource samples the accelerator on demand.
type HardwareSource interface {
	Snapshot() types.HardwareSnapshot
}

// DispatcherSource exposes the dispatcher counters the envelope needs.
type DispatcherSource interface {
	ActiveCount() int
	LastMetrics() types.Metrics
	TotalTokensGenerated() int64
}

// RegistrySource exposes the session registry counters the envelope needs.
type RegistrySource interface {
	Total() int
}

// Publish hands a freshly composed envelope to the connection layer, which
// owns the subscriber set and is responsible for deferring delivery onto
// each subscribed connection's own send loop.
type Publish func(types.MetricsEnvelope)

// Broadcaster owns the ticker goroutine. Construct with New, start with
// Run (blocks until Stop is called), stop with Stop (idempotent).
type Broadcaster struct {
	hw         HardwareSource
	dispatcher DispatcherSource
	registry   RegistrySource
	publish    Publish
	interval   time.Duration

	done   chan struct{}
	closed chan struct{}
}

// New constructs a Broadcaster. interval <= 0 falls back to defaultInterval.
func New(hw HardwareSource, dispatcher DispatcherSource, registry RegistrySource, publish Publish, interval time.Duration) *Broadcaster {
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Broadcaster{
		hw:         hw,
		dispatcher: dispatcher,
		registry:   registry,
		publish:    publish,
		interval:   interval,
		done:       make(chan struct{}),
		closed:     make(chan struct{}),
	}
}

// Run ticks every interval until Stop is called, composing and publishing
// one envelope per tick. Intended to be started in its own goroutine.
func (b *Broadcaster) Run() {
	defer close(b.closed)
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()
	for {
		select {
		case <-b.done:
			return
		case now := <-ticker.C:
			b.publish(b.sample(now))
		}
	}
}

// Sample composes one envelope on demand, the same shape Run publishes on
// each tick. The HTTP control surface's /status handler uses this for
// clients that cannot hold a WS connection open.
func (b *Broadcaster) Sample() types.MetricsEnvelope {
	return b.sample(time.Now())
}

func (b *Broadcaster) sample(now time.Time) types.MetricsEnvelope {
	snap := b.hw.Snapshot()
	last := b.dispatcher.LastMetrics()
	return types.MetricsEnvelope{
		Timestamp: now.Unix(),
		GPU: types.GPUStatus{
			TempC:       snap.TempC,
			VRAMTotalMB: toMB(snap.VRAMTotal),
			VRAMUsedMB:  toMB(snap.VRAMUsed),
			VRAMFreeMB:  toMB(snap.VRAMFree),
			PowerWatts:  float64(snap.PowerMW) / 1000.0,
			FanPercent:  snap.FanPct,
			Throttling:  snap.Throttling,
		},
		Inference: types.InferenceStatus{
			ActiveGenerations:    b.dispatcher.ActiveCount(),
			TotalSessions:        b.registry.Total(),
			LastTPS:              last.TPS,
			LastTTFTMs:           last.TTFTMs,
			TotalTokensGenerated: b.dispatcher.TotalTokensGenerated(),
		},
	}
}

func toMB(bytes int64) int64 { return bytes / (1024 * 1024) }

// Stop signals Run to exit and waits for it to return. Idempotent.
func (b *Broadcaster) Stop() {
	select {
	case <-b.done:
	default:
		close(b.done)
	}
	<-b.closed
}
