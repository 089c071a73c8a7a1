// Package hardware reads accelerator counters on demand. It never caches a
// reading and it is a pure function of whatever the underlying Reader
// returns plus the current model size when recommending GPU layers.
package hardware

import (
	"jotagateway/pkg/types"
)

// maxTempSafeC mirrors the original monitor's GTX-1060-era safety constant:
// temperatures at or above this are reported as throttling.
const maxTempSafeC = 80

// Reader abstracts the accelerator counter source (NVML, ROCm-SMI, or any
// other vendor API). The default build ships a Reader that reports
// "not available", keeping the gateway CUDA/CGO-free unless an operator
// wires a real Reader at startup.
type Reader interface {
	// Init prepares the reader (e.g. nvmlInit + device handle lookup).
	// Returns false if no supported accelerator is present.
	Init() bool
	// Read returns the current counters. Only called after a successful Init.
	Read() RawStats
	// Shutdown releases any resources acquired by Init.
	Shutdown()
}

// RawStats is what a Reader produces; Probe converts it into the public
// types.HardwareSnapshot shape (adding the throttling flag).
type RawStats struct {
	TempC     int
	VRAMTotal int64
	VRAMFree  int64
	VRAMUsed  int64
	PowerMW   int64
	FanPct    int
}

// Probe is the Telemetry Probe component (§4.A). It owns a Reader and is
// safe for concurrent use: Snapshot always takes a fresh reading, it never
// serves a cached value.
type Probe struct {
	reader Reader
	ready  bool
}

// NewProbe constructs a Probe over the given Reader. Pass NewNullReader()
// for a build with no accelerator support compiled in.
func NewProbe(r Reader) *Probe {
	if r == nil {
		r = NewNullReader()
	}
	return &Probe{reader: r}
}

// Init prepares the underlying reader. Returns false on failure; Snapshot
// returns a zero-filled struct from then on.
func (p *Probe) Init() bool {
	p.ready = p.reader.Init()
	return p.ready
}

// Shutdown releases reader resources. Safe to call even if Init failed.
func (p *Probe) Shutdown() {
	p.reader.Shutdown()
	p.ready = false
}

// Snapshot takes a fresh reading. If Init failed or was never called, it
// returns a zero-filled snapshot rather than an error, matching §4.A.
func (p *Probe) Snapshot() types.HardwareSnapshot {
	if !p.ready {
		return types.HardwareSnapshot{}
	}
	raw := p.reader.Read()
	return types.HardwareSnapshot{
		TempC:      raw.TempC,
		VRAMTotal:  raw.VRAMTotal,
		VRAMUsed:   raw.VRAMUsed,
		VRAMFree:   raw.VRAMFree,
		PowerMW:    raw.PowerMW,
		FanPct:     raw.FanPct,
		Throttling: raw.TempC >= maxTempSafeC,
	}
}

const mib = 1024 * 1024

// RecommendGPULayers implements the heuristic in §4.A: given
// available = max(0, free_vram - 500MiB), if the model fits entirely
// return the "all layers" sentinel (99); otherwise estimate the model's
// total layer count from its size bucket and scale it by the fraction of
// the model that fits, clamped to [1, total] whenever any VRAM is free.
func (p *Probe) RecommendGPULayers(modelBytes int64) int {
	snap := p.Snapshot()
	const safetyBufferBytes = 500 * mib

	var available int64
	if snap.VRAMFree > safetyBufferBytes {
		available = snap.VRAMFree - safetyBufferBytes
	}
	if available <= 0 {
		return 0
	}
	if modelBytes <= available {
		return 99
	}

	totalLayers := 32
	switch {
	case modelBytes < 2*1024*mib:
		totalLayers = 22
	case modelBytes < 4*1024*mib:
		totalLayers = 28
	}

	proportion := float64(available) / float64(modelBytes)
	recommended := int(proportion * float64(totalLayers))
	if recommended < 1 {
		recommended = 1
	}
	if recommended > totalLayers {
		recommended = totalLayers
	}
	return recommended
}
