package artifact

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Observer is told the outcome of every provider attempt.
type Observer func(provider string, err error)

// Chain tries providers in order and returns the first path obtained.
type Chain struct {
	providers []Provider
	logger    *zap.Logger
	observer  Observer
}

// NewChain builds a chain. Order matters: earlier providers always win.
func NewChain(logger *zap.Logger, providers ...Provider) *Chain {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Chain{providers: providers, logger: logger}
}

// Observe registers fn to receive per-provider outcomes.
func (c *Chain) Observe(fn Observer) {
	c.observer = fn
}

// Providers returns the provider names in resolution order.
func (c *Chain) Providers() []string {
	names := make([]string, len(c.providers))
	for i, p := range c.providers {
		names[i] = p.Name()
	}
	return names
}

// Resolve returns the path from the first provider that succeeds. If all of
// them fail the error wraps ErrAllProvidersFailed together with each cause.
func (c *Chain) Resolve(ctx context.Context) (string, error) {
	var errs error
	for _, p := range c.providers {
		path, err := p.Fetch(ctx)
		if c.observer != nil {
			c.observer(p.Name(), err)
		}
		if err == nil {
			c.logger.Info("model artifact resolved", zap.String("provider", p.Name()), zap.String("path", path))
			return path, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", err
		}
		c.logger.Warn("artifact provider failed", zap.String("provider", p.Name()), zap.Error(err))
		errs = multierr.Append(errs, fmt.Errorf("%s: %w", p.Name(), err))
	}
	if errs == nil {
		return "", fmt.Errorf("%w: no providers configured", ErrAllProvidersFailed)
	}
	return "", fmt.Errorf("%w: %w", ErrAllProvidersFailed, errs)
}
