// Package ports defines the interfaces (ports) for the hexagonal architecture.
//
// This package establishes the contract between the application core and external
// adapters (infrastructure). The history service depends only on these
// abstractions, so the raster codec and the storage engine can be swapped for
// anything offering equivalent capabilities.
//
// Key architectural concepts:
//   - Ports: Interfaces defined here (e.g., RecordStore, RasterCodec)
//   - Adapters: Concrete implementations in the infrastructure layer
//   - Dependency inversion: Application depends on abstractions, not implementations
package ports

import (
	"context"
	"image"

	"github.com/doeshing/phocache/internal/domain"
)

// ConfigProvider loads the latest configuration from persistent storage.
// Implementations typically read from ~/.phocache/config.yaml.
type ConfigProvider interface {
	Load(context.Context) (domain.Config, error)
}

// RasterCodec turns encoded bytes into pixels and back.
// Decode returns the detected format name alongside the image.
type RasterCodec interface {
	Decode(data []byte) (image.Image, string, error)
	Encode(img image.Image, quality float64) ([]byte, error)
}

// ImageTranscoder derives the stored variants of a captured photo.
// Inputs and outputs are base64 strings; inputs may carry a data URI prefix.
type ImageTranscoder interface {
	Compress(encoded string, opts domain.CompressOptions) (string, error)
	Thumbnail(encoded string, opts domain.ThumbnailOptions) (string, error)
}

// TransactionalStore is a durable engine partitioned by category. Every call
// runs in its own transaction scoped to one partition.
type TransactionalStore interface {
	// OpenPartition creates the partition and its timestamp index if missing.
	OpenPartition(ctx context.Context, category domain.Category) error
	Insert(ctx context.Context, category domain.Category, record domain.Record) error
	// Scan returns the partition ordered by timestamp descending, ties by id descending.
	Scan(ctx context.Context, category domain.Category) ([]domain.Record, error)
	// Delete is a no-op for unknown ids.
	Delete(ctx context.Context, category domain.Category, id string) error
	Clear(ctx context.Context, category domain.Category) error
	Count(ctx context.Context, category domain.Category) (int, error)
	// UsedBytes is a best-effort size of the engine's persisted data.
	UsedBytes(ctx context.Context) (int64, error)
	Close() error
}

// RecordStore is the partitioned history store used by the application layer.
type RecordStore interface {
	Insert(ctx context.Context, category domain.Category, record domain.Record) error
	ScanAll(ctx context.Context, category domain.Category) ([]domain.Record, error)
	DeleteOne(ctx context.Context, category domain.Category, id string) error
	Clear(ctx context.Context, category domain.Category) error
	Count(ctx context.Context, category domain.Category) (int, error)
	StorageEstimate(ctx context.Context) (domain.StorageEstimate, error)
}

// Logger provides structured logging abstraction for the application layer.
// Implementations can route to different backends (stdout, files, external services).
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, err error, fields map[string]interface{})
}
