// Package runtimeadapter abstracts the model runtime (§4.I) used by
// Session. Concrete implementations are selected at build time via Go build
// tags, exactly mirroring the teacher's llama/llama_server adapter family:
// the default build is CGO-free and refuses to run inference, the `llama`
// tag links github.com/go-skynet/go-llama.cpp in-process, and the
// `llama_server` tag shells out to a llama-server-compatible binary.
package runtimeadapter

import (
	"context"
	"sync"

	"jotagateway/pkg/types"
)

// Adapter loads a model and produces generation sessions against it.
type Adapter interface {
	// LoadModel loads modelPath with the given context size and GPU layer
	// count. Returns an error if the backend cannot be initialized or the
	// model cannot be read.
	LoadModel(modelPath string, ctxSize, gpuLayers int) error
	// NewContext derives a fresh generation context from the loaded model.
	// Sessions call this once at construction (§4.D: "a model context
	// derived from the shared model handle").
	NewContext() (Context, error)
	// Close releases the loaded model.
	Close() error
}

// Context is a single generation context: one per Session, never shared
// across goroutines, matching §4.E's "multiple workers must not share a
// model context" discipline.
type Context interface {
	// Generate runs the §4.D algorithm: clear KV cache, tokenize with BOS,
	// sample until end-of-generation/abort/max_tokens, invoking onToken for
	// each detokenized piece. The llama and llama_server adapters pass the
	// sampling fields of params (temperature, top-p, top-k, ...) to the
	// runtime rather than forcing greedy selection. onToken returning false stops
	// generation early, same as an abort.
	Generate(ctx context.Context, prompt string, params types.RuntimeParams, onToken func(piece string) bool) (types.Metrics, error)
	// Close releases the context's KV cache and any other resources.
	Close() error
}

// backendOnce guards the process-wide one-time backend initialization
// (the llama_backend_init equivalent) described in Design Note "Global
// one-time backend init". Adapters pass their own init func to
// InitBackendOnce;
// sync.Once guarantees it runs exactly once regardless of how many Adapters
// or Sessions exist in the process.
var backendOnce sync.Once

// InitBackendOnce runs fn at most once per process, regardless of how many
// times it is called or by how many adapters.
func InitBackendOnce(fn func()) {
	backendOnce.Do(fn)
}
