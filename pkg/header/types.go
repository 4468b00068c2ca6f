package header

import (
	"fmt"
	"strings"
	"time"
)

var (
	APIVersionDomain = "opsctl.edgeops.io"
	APIVersionV1     = "v1"
)

// Option is a functional option for configuring Header instances.
type Option func(*Header)

// WithMetadata returns an Option that adds a metadata key-value pair to the Header.
// If the Metadata map is nil, it will be initialized.
func WithMetadata(key, value string) Option {
	return func(h *Header) {
		if h.Metadata == nil {
			h.Metadata = make(map[string]string)
		}
		h.Metadata[key] = value
	}
}

// WithKind returns an Option that sets the Kind field of the Header.
// Kind represents the type of the document (e.g., "SupportBundle", "ImageInventory").
func WithKind(kind string) Option {
	return func(h *Header) {
		h.Kind = kind
	}
}

// WithAPIVersion returns an Option that sets the APIVersion field of the Header.
func WithAPIVersion(version string) Option {
	return func(h *Header) {
		h.APIVersion = version
	}
}

// New creates a new Header instance with the provided functional options.
// The Metadata map is initialized automatically.
func New(opts ...Option) *Header {
	h := &Header{
		Metadata: make(map[string]string),
	}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

// Header contains versioning and metadata for documents written into a bundle.
// It follows Kubernetes-style conventions with Kind, APIVersion, and Metadata fields.
type Header struct {
	// Kind is the type of the document.
	Kind string `json:"kind,omitempty" yaml:"kind,omitempty"`

	// APIVersion is the schema version of the document.
	APIVersion string `json:"apiVersion,omitempty" yaml:"apiVersion,omitempty"`

	// Metadata contains key-value pairs describing the document.
	Metadata map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// Set initializes the Header for kind at time t. APIVersion is built as
// "<kind>.opsctl.edgeops.io/v1" and t is recorded as the collection timestamp.
func (h *Header) Set(kind string, t time.Time) {
	h.Kind = kind
	h.APIVersion = fmt.Sprintf("%s.%s/%s", strings.ToLower(kind), APIVersionDomain, APIVersionV1)
	h.Metadata = map[string]string{
		"collection-timestamp": t.UTC().Format(time.RFC3339),
	}
}
