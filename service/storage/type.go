package storage

import "context"

// IService archives evidence files (clips, annotated frames) somewhere more
// durable than the local output folder.
type IService interface {
	// StoreFile uploads the file at path and returns its archive location.
	StoreFile(ctx context.Context, path string) (string, error)
	// Enabled reports whether archival is configured at all.
	Enabled() bool
}
