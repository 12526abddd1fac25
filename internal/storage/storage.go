// Package storage provides blob storage for uploaded media.
package storage

import "context"

// BlobStore persists uploaded files and returns a publicly reachable URL.
type BlobStore interface {
	Store(ctx context.Context, filename, contentType string, data []byte) (string, error)
}
