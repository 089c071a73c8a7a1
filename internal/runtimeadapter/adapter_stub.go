//go:build !llama && !llama_server

package runtimeadapter

import (
	"context"

	"jotagateway/pkg/types"
)

// This file provides the no-CGO default adapter, compiled when neither the
// `llama` nor the `llama_server` build tag is set. It keeps default builds, `go vet`, and `go test`
// completely CGO-free. The real in-process adapter lives in adapter_llama.go
// (tagged `llama`); the out-of-process one lives in adapter_llama_server.go
// (tagged `llama_server`).

type stubAdapter struct{}

// NewLlamaAdapter returns an Adapter that refuses to run inference without
// the `llama` or `llama_server` build tag, so no mocked generation behavior ships in a
// production binary built without the real runtime available.
func NewLlamaAdapter(threads int) Adapter { return stubAdapter{} }

func (stubAdapter) LoadModel(modelPath string, ctxSize, gpuLayers int) error {
	return errDependencyUnavailable
}

func (stubAdapter) NewContext() (Context, error) {
	return nil, errDependencyUnavailable
}

func (stubAdapter) Close() error { return nil }

type stubContext struct{}

func (stubContext) Generate(ctx context.Context, prompt string, params types.RuntimeParams, onToken func(string) bool) (types.Metrics, error) {
	return types.Metrics{}, errDependencyUnavailable
}

func (stubContext) Close() error { return nil }
