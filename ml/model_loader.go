package ml

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"shipmonitor/artifact"
)

// ErrModelNotConfigured is returned by GlobalModel before ConfigureModel.
var ErrModelNotConfigured = errors.New("model artifact chain not configured")

// LoadModel decodes the pipeline artifact at path.
func LoadModel(path string) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open model %s: %w", path, err)
	}
	defer f.Close()

	m, err := DecodeArtifact(f)
	if err != nil {
		return nil, fmt.Errorf("load model %s: %w", path, err)
	}
	return m, nil
}

// process-wide model, resolved and decoded at most once. modelMu is held for
// the whole load so resets never interleave with it.
var (
	modelChain  *artifact.Chain
	model       *Model
	modelErr    error
	modelLoaded bool
	modelMu     sync.Mutex
)

// ConfigureModel sets the chain GlobalModel resolves the artifact through.
func ConfigureModel(chain *artifact.Chain) {
	modelMu.Lock()
	defer modelMu.Unlock()
	modelChain = chain
}

// GlobalModel returns the shared model, resolving and decoding the artifact on
// first use. Concurrent first callers wait for the same load. A failure is
// kept until ResetGlobalModel. The load ignores ctx cancellation; the remote
// provider's bounded retry limits how long it runs.
func GlobalModel(ctx context.Context) (*Model, error) {
	modelMu.Lock()
	defer modelMu.Unlock()
	if !modelLoaded {
		model, modelErr = resolveModel(context.WithoutCancel(ctx), modelChain)
		modelLoaded = true
	}
	return model, modelErr
}

func resolveModel(ctx context.Context, chain *artifact.Chain) (*Model, error) {
	if chain == nil {
		return nil, ErrModelNotConfigured
	}
	path, err := chain.Resolve(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve model artifact: %w", err)
	}
	return LoadModel(path)
}

// SetGlobalModel installs m as the shared model (used by tests).
func SetGlobalModel(m *Model) {
	modelMu.Lock()
	defer modelMu.Unlock()
	model = m
	modelErr = nil
	modelLoaded = true
}

// ResetGlobalModel forgets the shared model so the next GlobalModel call
// resolves it again.
func ResetGlobalModel() {
	modelMu.Lock()
	defer modelMu.Unlock()
	model = nil
	modelErr = nil
	modelChain = nil
	modelLoaded = false
}
