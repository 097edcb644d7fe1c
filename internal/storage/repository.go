// Package storage persists the backend's two durable concerns: committed
// video references and the single-use ledger of issued upload signatures.
// Both come in an in-memory flavor for development and tests and an external
// flavor (Postgres, Redis) for production.
package storage

import (
	"context"
	"errors"
	"time"

	"clipflow/internal/models"
)

// ErrNotFound reports a lookup for a reference that does not exist.
var ErrNotFound = errors.New("video reference not found")

// ErrSignatureReplayed reports an attempt to issue a signature that has
// already been recorded. Signatures are single use: once issued they are
// never handed out again, which forces every upload attempt to negotiate
// fresh credentials.
var ErrSignatureReplayed = errors.New("signature already issued")

// VideoRepository stores committed RemoteReferences.
type VideoRepository interface {
	Ping(ctx context.Context) error
	CreateVideoReference(ctx context.Context, url, publicID string) (models.VideoReference, error)
	DeleteVideoReference(ctx context.Context, id, publicID string) error
	ListVideoReferences(ctx context.Context) ([]models.VideoReference, error)
	Close()
}

// SignatureRegistry records issued signatures so they can never be replayed.
type SignatureRegistry interface {
	Ping(ctx context.Context) error
	// Reserve marks the signature issued for the given window. It returns
	// ErrSignatureReplayed when the signature was already recorded.
	Reserve(ctx context.Context, signature string, ttl time.Duration) error
	Close()
}
