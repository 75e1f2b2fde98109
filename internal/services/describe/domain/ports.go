package domain

import (
	"context"
	"image"
)

// ServicePort is consumed by handlers and the CLI
type ServicePort interface {
	Item(ctx context.Context, path string) ItemResult
	Batch(ctx context.Context, paths []string, capN int) (BatchSummary, error)
	StreamItem(ctx context.Context, path string, sink Sink) error
	StreamBatch(ctx context.Context, paths []string, capN int, sink Sink) error
}

// SourcePort lists and decodes images for the service
type SourcePort interface {
	// List returns the sorted paths under dir carrying ext
	List(dir, ext string) ([]string, error)
	// Load decodes path into an image, classifying the failure
	Load(path string) (image.Image, error)
	// IsDir verifies path is an existing directory
	IsDir(path string) error
}

// Sink consumes stream events in emission order. Emit returning an
// error stops the producer
type Sink interface {
	Emit(ev Event) error
}

// SinkFunc adapts a function to Sink
type SinkFunc func(ev Event) error

// Emit implements Sink
func (f SinkFunc) Emit(ev Event) error { return f(ev) }

// HistoryPort records finished batches when a store is configured
type HistoryPort interface {
	Record(ctx context.Context, rec BatchRecord) error
	Recent(ctx context.Context, limit int) ([]BatchRecord, error)
}
