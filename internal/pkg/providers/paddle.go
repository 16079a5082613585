package providers

import (
	"context"
	"errors"

	"github.com/pulseboard/pulseboard/app/models"
)

// ErrAdapterNotImplemented is returned by stub adapters registered for
// providers whose integration has not been built yet. Keeping the name
// registered lets connect flows and sync results distinguish "known but
// unimplemented" from a typoed provider name.
var ErrAdapterNotImplemented = errors.New("provider adapter not implemented")

// PaddleAdapter is a placeholder until the Paddle integration lands.
type PaddleAdapter struct{}

func NewPaddleAdapter() *PaddleAdapter {
	return &PaddleAdapter{}
}

func (a *PaddleAdapter) Name() string {
	return models.ProviderPaddle
}

func (a *PaddleAdapter) FetchMetrics(_ context.Context, _ ConnectionConfig) (*StandardMetrics, error) {
	return nil, ErrAdapterNotImplemented
}
