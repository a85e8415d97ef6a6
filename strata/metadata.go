package strata

import (
	"errors"
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// Metadata document keys. Version 3 nodes store a single zarr.json
// document; version 2 nodes split metadata across .zarray/.zgroup and
// .zattrs.
const (
	metadataFile   = "zarr.json"
	arrayFileV2    = ".zarray"
	groupFileV2    = ".zgroup"
	attrsFileV2    = ".zattrs"
	currentFormat  = 3
	nodeTypeArray  = "array"
	nodeTypeGroup  = "group"
	chunkDirPrefix = "c"
)

// -----------------------------------------------------------------------------
// Metadata documents
// -----------------------------------------------------------------------------

// ChunkGridConfig configures a regular chunk grid.
type ChunkGridConfig struct {
	// ChunkShape is the extent of every chunk in each dimension.
	ChunkShape []uint64 `json:"chunk_shape"`
}

// ChunkGrid describes how an array is partitioned into chunks.
type ChunkGrid struct {
	// Name identifies the grid type (only "regular" is supported).
	Name string `json:"name"`

	// Configuration holds grid-specific settings.
	Configuration ChunkGridConfig `json:"configuration"`
}

// ChunkKeyEncodingConfig configures chunk key construction.
type ChunkKeyEncodingConfig struct {
	// Separator joins chunk grid coordinates ("/" or ".").
	Separator string `json:"separator,omitempty"`
}

// ChunkKeyEncoding describes how chunk grid coordinates map to store keys.
type ChunkKeyEncoding struct {
	// Name identifies the encoding: "default" (c/0/1 style) or "v2"
	// (0.1 style).
	Name string `json:"name"`

	// Configuration holds encoding-specific settings.
	Configuration ChunkKeyEncodingConfig `json:"configuration,omitempty"`
}

// ArrayMetadata is the JSON metadata document describing an array node.
type ArrayMetadata struct {
	// ZarrFormat is the metadata schema version.
	ZarrFormat int `json:"zarr_format"`

	// NodeType is always "array".
	NodeType string `json:"node_type"`

	// Shape is the array's extent in each dimension, in elements.
	Shape []uint64 `json:"shape"`

	// DataType is the element type.
	DataType DataType `json:"data_type"`

	// ChunkGrid partitions the array into chunks.
	ChunkGrid ChunkGrid `json:"chunk_grid"`

	// ChunkKeyEncoding maps chunk coordinates to store keys.
	ChunkKeyEncoding ChunkKeyEncoding `json:"chunk_key_encoding"`

	// FillValue is the value of unwritten chunks, applied by callers on
	// chunk absence.
	FillValue any `json:"fill_value"`

	// Codecs is the ordered codec stage list applied to every chunk.
	Codecs []CodecConfig `json:"codecs"`

	// Attributes contains user-defined key-value pairs.
	Attributes map[string]any `json:"attributes,omitempty"`
}

// GroupMetadata is the JSON metadata document describing a group node.
type GroupMetadata struct {
	// ZarrFormat is the metadata schema version.
	ZarrFormat int `json:"zarr_format"`

	// NodeType is always "group".
	NodeType string `json:"node_type"`

	// Attributes contains user-defined key-value pairs.
	Attributes map[string]any `json:"attributes,omitempty"`
}

// -----------------------------------------------------------------------------
// Metadata options
// -----------------------------------------------------------------------------

// MetadataVersion selects which metadata schema versions an operation
// targets. It is always passed explicitly at the call site; there is no
// process-wide default.
type MetadataVersion int

// Metadata version selectors.
const (
	// MetadataVersionDefault targets the version of the node's own
	// metadata (version 3 for nodes created by this library).
	MetadataVersionDefault MetadataVersion = iota

	// MetadataVersionV3 targets the zarr.json document.
	MetadataVersionV3

	// MetadataVersionV2 targets the legacy .zarray/.zgroup/.zattrs documents.
	MetadataVersionV2

	// MetadataVersionAll targets every known metadata document.
	MetadataVersionAll
)

// MetadataOptions configures metadata store and erase operations.
type MetadataOptions struct {
	// EraseVersion selects which metadata documents EraseMetadata removes.
	EraseVersion MetadataVersion
}

// -----------------------------------------------------------------------------
// Validation
// -----------------------------------------------------------------------------

// ErrMetadataInvalid indicates a metadata document failed validation.
var ErrMetadataInvalid = errors.New("invalid metadata")

// metadataValidationError provides details about metadata validation failures.
type metadataValidationError struct {
	Field   string
	Message string
}

func (e *metadataValidationError) Error() string {
	return fmt.Sprintf("invalid metadata: %s: %s", e.Field, e.Message)
}

func (e *metadataValidationError) Unwrap() error {
	return ErrMetadataInvalid
}

// validateArrayMetadata checks that an array metadata document is
// internally consistent before any chunk operation trusts it.
func validateArrayMetadata(m *ArrayMetadata) error {
	if m == nil {
		return &metadataValidationError{Field: "metadata", Message: "is nil"}
	}
	if m.ZarrFormat != currentFormat {
		return &metadataValidationError{Field: "zarr_format", Message: fmt.Sprintf("must be %d", currentFormat)}
	}
	if m.NodeType != nodeTypeArray {
		return &metadataValidationError{Field: "node_type", Message: `must be "array"`}
	}
	if len(m.Shape) == 0 {
		return &metadataValidationError{Field: "shape", Message: "is required"}
	}
	if m.DataType.Size() == 0 {
		return &metadataValidationError{Field: "data_type", Message: fmt.Sprintf("unsupported type %q", m.DataType)}
	}
	if m.ChunkGrid.Name != "regular" {
		return &metadataValidationError{Field: "chunk_grid.name", Message: `must be "regular"`}
	}
	if len(m.ChunkGrid.Configuration.ChunkShape) != len(m.Shape) {
		return &metadataValidationError{
			Field:   "chunk_grid.configuration.chunk_shape",
			Message: fmt.Sprintf("rank %d does not match shape rank %d", len(m.ChunkGrid.Configuration.ChunkShape), len(m.Shape)),
		}
	}
	for i, d := range m.ChunkGrid.Configuration.ChunkShape {
		if d == 0 {
			return &metadataValidationError{
				Field:   fmt.Sprintf("chunk_grid.configuration.chunk_shape[%d]", i),
				Message: "must be non-zero",
			}
		}
	}
	switch m.ChunkKeyEncoding.Name {
	case "default", "v2":
	default:
		return &metadataValidationError{Field: "chunk_key_encoding.name", Message: fmt.Sprintf("unknown encoding %q", m.ChunkKeyEncoding.Name)}
	}
	switch m.ChunkKeyEncoding.Configuration.Separator {
	case "", "/", ".":
	default:
		return &metadataValidationError{Field: "chunk_key_encoding.configuration.separator", Message: `must be "/" or "."`}
	}
	if len(m.Codecs) == 0 {
		return &metadataValidationError{Field: "codecs", Message: "is required"}
	}
	return nil
}

// validateGroupMetadata checks a group metadata document.
func validateGroupMetadata(m *GroupMetadata) error {
	if m == nil {
		return &metadataValidationError{Field: "metadata", Message: "is nil"}
	}
	if m.ZarrFormat != currentFormat {
		return &metadataValidationError{Field: "zarr_format", Message: fmt.Sprintf("must be %d", currentFormat)}
	}
	if m.NodeType != nodeTypeGroup {
		return &metadataValidationError{Field: "node_type", Message: `must be "group"`}
	}
	return nil
}

// -----------------------------------------------------------------------------
// Node paths
// -----------------------------------------------------------------------------

// ErrInvalidNodePath indicates a node path that is absolute, escaping, or
// otherwise malformed.
var ErrInvalidNodePath = errors.New("invalid node path")

// normalizeNodePath canonicalizes a node path to its store-key form: no
// leading or trailing slash, empty string for the root node.
func normalizeNodePath(path string) (string, error) {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return "", nil
	}
	for _, seg := range strings.Split(trimmed, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return "", fmt.Errorf("%w: %q", ErrInvalidNodePath, path)
		}
	}
	return trimmed, nil
}

// metadataKey returns the store key of a node's metadata document.
func metadataKey(path, file string) string {
	if path == "" {
		return file
	}
	return path + "/" + file
}
