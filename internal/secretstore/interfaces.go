package secretstore

import (
	"context"
	"errors"
)

// ErrReadOnly is returned by Write on stores that cannot persist secrets.
var ErrReadOnly = errors.New("secret storage is read-only")

// Store reads and writes a single secret to persistent storage.
type Store interface {
	// Read returns the stored secret. Returns error if the secret is missing or empty.
	Read(ctx context.Context) (string, error)

	// Write persists the secret to storage. Returns ErrReadOnly if the storage
	// backend is read-only (e.g., environment variables) or any write failure.
	Write(ctx context.Context, secret string) error
}
