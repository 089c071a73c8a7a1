//go:build llama

package runtimeadapter

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	llama "github.com/go-skynet/go-llama.cpp"

	"jotagateway/internal/sanitize"
	"jotagateway/pkg/types"
)

// llamaAdapter loads a single model in-process via go-llama.cpp. One
// Adapter is constructed per gateway process; NewContext derives a fresh
// generation context per Session, matching §4.D.
type llamaAdapter struct {
	threads int

	mu    sync.RWMutex
	model *llama.LLama
}

// NewLlamaAdapter constructs the real in-process adapter.
func NewLlamaAdapter(threads int) Adapter {
	if threads <= 0 {
		threads = 4
	}
	return &llamaAdapter{threads: threads}
}

func (a *llamaAdapter) LoadModel(modelPath string, ctxSize, gpuLayers int) error {
	if strings.TrimSpace(modelPath) == "" {
		return errors.New("model path is empty")
	}
	var loadErr error
	InitBackendOnce(func() {
		opts := []llama.ModelOption{llama.SetContext(ctxSize)}
		if gpuLayers >= 0 {
			opts = append(opts, llama.SetGPULayers(gpuLayers))
		}
		m, err := llama.New(modelPath, opts...)
		if err != nil {
			loadErr = err
			return
		}
		a.mu.Lock()
		a.model = m
		a.mu.Unlock()
	})
	if loadErr != nil {
		return loadErr
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.model == nil {
		return errors.New("failed to load model")
	}
	return nil
}

func (a *llamaAdapter) NewContext() (Context, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.model == nil {
		return nil, errors.New("model not loaded")
	}
	return &llamaContext{model: a.model, threads: a.threads}, nil
}

func (a *llamaAdapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.model != nil {
		a.model.Free()
		a.model = nil
	}
	return nil
}

// llamaContext is one Session's generation context. go-llama.cpp does not
// expose raw tokenize/decode/batch primitives, so the §4.D algorithm is
// realized at the granularity the binding offers: a token-callback-driven
// Predict call, with TTFT captured on the callback's first invocation and
// max_tokens/abort enforced by returning false from the callback.
type llamaContext struct {
	model   *llama.LLama
	threads int
}

func (c *llamaContext) Generate(ctx context.Context, prompt string, params types.RuntimeParams, onToken func(string) bool) (types.Metrics, error) {
	var metrics types.Metrics
	start := time.Now()
	firstToken := true
	aborted := false

	c.model.SetTokenCallback(func(tok string) bool {
		select {
		case <-ctx.Done():
			aborted = true
			return false
		default:
		}
		if firstToken {
			metrics.TTFTMs = time.Since(start).Milliseconds()
			firstToken = false
		}
		clean := sanitize.UTF8(tok)
		if clean == "" {
			return true
		}
		metrics.TokensGenerated++
		if !onToken(clean) {
			aborted = true
			return false
		}
		return true
	})
	defer c.model.SetTokenCallback(nil)

	maxTokens := params.MaxTokens
	if maxTokens < 0 {
		maxTokens = 512
	}
	if maxTokens == 0 {
		maxTokens = 512
	}

	po := []llama.PredictOption{
		llama.SetTokens(maxTokens),
		llama.SetThreads(c.threads),
		llama.SetTopP(floatOr(float32(params.TopP), llama.DefaultOptions.TopP)),
		llama.SetTopK(intOr(params.TopK, llama.DefaultOptions.TopK)),
		llama.SetTemperature(floatOr(float32(params.Temperature), llama.DefaultOptions.Temperature)),
		llama.SetPenalty(floatOr(float32(params.RepeatPenalty), llama.DefaultOptions.Penalty)),
	}
	if params.Seed != 0 {
		po = append(po, llama.SetSeed(int(params.Seed)))
	}
	if len(params.Stop) > 0 {
		po = append(po, llama.SetStopWords(params.Stop...))
	}

	_, err := c.model.Predict(prompt, po...)
	metrics.TotalTimeMs = time.Since(start).Milliseconds()
	if metrics.TotalTimeMs > 0 {
		metrics.TPS = float64(metrics.TokensGenerated) / (float64(metrics.TotalTimeMs) / 1000.0)
	}
	if err != nil && !aborted {
		return metrics, err
	}
	return metrics, nil
}

func (c *llamaContext) Close() error { return nil }

func floatOr(v, def float32) float32 {
	if v > 0 {
		return v
	}
	return def
}

func intOr(v int, def int) int {
	if v > 0 {
		return v
	}
	return def
}
