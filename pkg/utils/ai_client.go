package utils

import (
	"context"
	"errors"
)

// TextGenerator is a text-completion backend.
type TextGenerator interface {
	Name() string
	Generate(ctx context.Context, model, prompt string) (string, error)
	GenerateStream(ctx context.Context, model, prompt string) (ChunkStream, error)
}

// ChunkStream yields text deltas in generation order. Recv returns io.EOF
// once the provider has finished.
type ChunkStream interface {
	Recv() (string, error)
	Close() error
}

var (
	ErrEmptyCompletion = errors.New("provider returned no content")
	// ErrProviderQuota lets a backend report exhaustion without a transport error.
	ErrProviderQuota = errors.New("provider quota exhausted")
)
