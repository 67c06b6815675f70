// Package artifact resolves the model artifact file through an ordered chain
// of providers: the local path first, a remote repository second.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"os"
)

// Provider yields a local filesystem path to the artifact.
type Provider interface {
	Name() string
	Fetch(ctx context.Context) (string, error)
}

var (
	ErrNotFound           = &ProviderError{Code: "not_found", Message: "artifact not found"}
	ErrAllProvidersFailed = &ProviderError{Code: "all_providers_failed", Message: "all artifact providers failed"}
)

// ProviderError is a classified resolution failure.
type ProviderError struct {
	Code    string
	Message string
}

func (e *ProviderError) Error() string {
	return e.Message
}

// LocalProvider serves an artifact that already exists on disk.
type LocalProvider struct {
	Path string
}

func (p *LocalProvider) Name() string {
	return "local"
}

func (p *LocalProvider) Fetch(ctx context.Context) (string, error) {
	if p.Path == "" {
		return "", fmt.Errorf("%w: no local path configured", ErrNotFound)
	}
	info, err := os.Stat(p.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, p.Path)
		}
		return "", fmt.Errorf("stat %s: %w", p.Path, err)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("%s is not a regular file", p.Path)
	}
	return p.Path, nil
}
