// Package domain holds DTOs for describe http and service contracts
package domain

import "time"

// Item status values mirrored on the wire
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// ItemResult is the outcome of describing one image.
// Exactly one of Description or Error is set, keyed by Status
type ItemResult struct {
	Path        string `json:"image_path"`
	Status      string `json:"status"`
	Description string `json:"description,omitempty"`
	Error       string `json:"error,omitempty"`
}

// BatchSummary aggregates one folder run.
// Succeeded+Failed always equals Attempted
type BatchSummary struct {
	TotalFound int          `json:"total_found"`
	Attempted  int          `json:"processed"`
	Succeeded  int          `json:"successful"`
	Failed     int          `json:"failed"`
	Results    []ItemResult `json:"results"`
}

// EventType tags one stream record
type EventType string

// Stream lifecycle event types, in emission order
const (
	EventStart      EventType = "start"
	EventMetadata   EventType = "metadata"
	EventProcessing EventType = "processing"
	EventResult     EventType = "result"
	EventComplete   EventType = "complete"
	EventError      EventType = "error"
)

// Event is one record in the ordered stream. Fields not relevant to the
// event type are omitted on the wire. A stream terminates only with a
// complete or error event
type Event struct {
	Type EventType `json:"type"`

	// start, processing, result
	Path string `json:"image_path,omitempty"`

	// result
	Status      string `json:"status,omitempty"`
	Description string `json:"description,omitempty"`

	// result (per item) or error (stream fatal)
	Error string `json:"error,omitempty"`

	// metadata and complete tallies
	TotalFound *int `json:"total_found,omitempty"`
	Attempted  *int `json:"processed,omitempty"`
	Succeeded  *int `json:"successful,omitempty"`
	Failed     *int `json:"failed,omitempty"`
}

// FolderRequest selects a folder batch
type FolderRequest struct {
	FolderPath string `json:"folder_path" validate:"required"`
	Extension  string `json:"extension"`
	MaxImages  int    `json:"max_images"`
}

// FolderPreview lists matching images without processing them
type FolderPreview struct {
	FolderPath string   `json:"folder_path"`
	Extension  string   `json:"extension"`
	TotalFound int      `json:"total_found"`
	ImagePaths []string `json:"image_paths"`
}

// UploadResult is the single image endpoint response
type UploadResult struct {
	Filename    string `json:"filename"`
	Status      string `json:"status"`
	Description string `json:"description,omitempty"`
	Error       string `json:"error,omitempty"`
}

// BatchRecord is one persisted history row for a finished folder run
type BatchRecord struct {
	ID         string        `json:"id"`
	FolderPath string        `json:"folder_path"`
	Extension  string        `json:"extension"`
	TotalFound int           `json:"total_found"`
	Attempted  int           `json:"processed"`
	Succeeded  int           `json:"successful"`
	Failed     int           `json:"failed"`
	Duration   time.Duration `json:"duration_ms"`
	CreatedAt  time.Time     `json:"created_at"`
}
