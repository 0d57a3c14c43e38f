package models

import (
	"errors"
	"time"
)

// Message is one shipped log line after envelope parsing.
type Message struct {
	// Timestamp from @timestamp, always UTC
	Timestamp time.Time `json:"timestamp"`

	// Hostname from host.name
	Hostname string `json:"hostname"`

	// Message is the raw free-text log line
	Message string `json:"message"`

	// Container is nil when the envelope has no container object
	Container *Container `json:"container,omitempty"`
}

// Container is the docker metadata attached by the shipper.
type Container struct {
	ID string `json:"id"`

	// Name and Image are empty when absent from the envelope
	Name  string `json:"name,omitempty"`
	Image string `json:"image,omitempty"`
}

// Parse errors
var (
	// ErrMalformedJSON means the line is not a JSON object. Per line.
	ErrMalformedJSON = errors.New("malformed json")
	// ErrMissingField means a required path is absent or not a string. Per line.
	ErrMissingField = errors.New("missing required field")
	// ErrInvalidTimestamp means @timestamp is not RFC3339. Per line.
	ErrInvalidTimestamp = errors.New("invalid timestamp format")
	// ErrStreamCorrupt means the decoded bytes cannot be text at all,
	// so the decoder itself is suspect. Fatal for the file.
	ErrStreamCorrupt = errors.New("decoded stream corrupt")
)

// IsFatal reports whether a parse error should stop the whole file.
func IsFatal(err error) bool {
	return errors.Is(err, ErrStreamCorrupt)
}
