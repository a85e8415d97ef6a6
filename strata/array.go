package strata

import (
	"context"
	"errors"
	"fmt"
)

// -----------------------------------------------------------------------------
// Array node
// -----------------------------------------------------------------------------

// Array is a chunked, typed, multi-dimensional array node. Its codec
// pipeline and metadata are resolved at construction and immutable
// thereafter; an Array is safe for concurrent chunk operations.
type Array struct {
	store    Store
	path     string
	meta     ArrayMetadata
	pipeline *CodecPipeline
	spec     ChunkSpec
}

// DefaultCodecs returns the minimal codec stage list: the little-endian
// "bytes" array-to-bytes codec with no compression.
func DefaultCodecs() []CodecConfig {
	return []CodecConfig{
		{Name: "bytes", Configuration: map[string]any{"endian": "little"}},
	}
}

// NewArray creates an array node from explicit metadata. The metadata is
// validated and its codec stage list resolved to a pipeline. The node's
// metadata document is not written until StoreMetadata is called.
func NewArray(store Store, path string, meta ArrayMetadata) (*Array, error) {
	if store == nil {
		return nil, errors.New("strata: store is required")
	}
	normalized, err := normalizeNodePath(path)
	if err != nil {
		return nil, fmt.Errorf("strata: %w", err)
	}

	if meta.ZarrFormat == 0 {
		meta.ZarrFormat = currentFormat
	}
	if meta.NodeType == "" {
		meta.NodeType = nodeTypeArray
	}
	if meta.ChunkKeyEncoding.Name == "" {
		meta.ChunkKeyEncoding.Name = "default"
	}
	if err := validateArrayMetadata(&meta); err != nil {
		return nil, fmt.Errorf("strata: %w", err)
	}

	pipeline, err := NewCodecPipelineFromMetadata(meta.Codecs)
	if err != nil {
		return nil, fmt.Errorf("strata: %w", err)
	}

	return &Array{
		store:    store,
		path:     normalized,
		meta:     meta,
		pipeline: pipeline,
		spec: ChunkSpec{
			Shape:    meta.ChunkGrid.Configuration.ChunkShape,
			DataType: meta.DataType,
		},
	}, nil
}

// OpenArray opens an existing array node by reading and validating its
// metadata document. Returns ErrNotFound if no metadata document exists
// under the path.
func OpenArray(ctx context.Context, store Store, path string) (*Array, error) {
	if store == nil {
		return nil, errors.New("strata: store is required")
	}
	normalized, err := normalizeNodePath(path)
	if err != nil {
		return nil, fmt.Errorf("strata: %w", err)
	}

	data, err := store.Get(ctx, metadataKey(normalized, metadataFile))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("strata: reading array metadata at %q: %w", normalized, err)
	}

	var meta ArrayMetadata
	if err := jsonAPI.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("strata: decoding array metadata at %q: %w", normalized, err)
	}

	return NewArray(store, normalized, meta)
}

// Path returns the array's node path ("" for the root node).
func (a *Array) Path() string {
	return a.path
}

// Metadata returns a copy of the array's metadata document.
func (a *Array) Metadata() ArrayMetadata {
	return a.meta
}

// Attributes returns the array's user-defined attributes.
func (a *Array) Attributes() map[string]any {
	return a.meta.Attributes
}

// ChunkSpec returns the decoded representation of one chunk.
func (a *Array) ChunkSpec() ChunkSpec {
	return a.spec
}

// Shape returns the array's extent in each dimension, in elements.
func (a *Array) Shape() []uint64 {
	return a.meta.Shape
}

// StoreMetadata writes the array's metadata document.
func (a *Array) StoreMetadata(ctx context.Context) error {
	data, err := jsonAPI.MarshalIndent(&a.meta, "", "  ")
	if err != nil {
		return fmt.Errorf("strata: encoding array metadata: %w", err)
	}
	if err := a.store.Set(ctx, metadataKey(a.path, metadataFile), data); err != nil {
		return fmt.Errorf("strata: writing array metadata at %q: %w", a.path, err)
	}
	return nil
}

// EraseMetadata removes the array's metadata documents for the versions
// selected by opts. Erasing absent documents succeeds.
func (a *Array) EraseMetadata(ctx context.Context, opts MetadataOptions) error {
	return eraseNodeMetadata(ctx, a.store, a.path, arrayFileV2, opts)
}

// eraseNodeMetadata removes the selected metadata documents of one node.
func eraseNodeMetadata(ctx context.Context, store Store, path, fileV2 string, opts MetadataOptions) error {
	var files []string
	switch opts.EraseVersion {
	case MetadataVersionDefault, MetadataVersionV3:
		files = []string{metadataFile}
	case MetadataVersionV2:
		files = []string{fileV2, attrsFileV2}
	case MetadataVersionAll:
		files = []string{metadataFile, fileV2, attrsFileV2}
	default:
		return fmt.Errorf("strata: unknown metadata version %d", opts.EraseVersion)
	}
	for _, f := range files {
		if err := store.Erase(ctx, metadataKey(path, f)); err != nil {
			return fmt.Errorf("strata: erasing %q: %w", metadataKey(path, f), err)
		}
	}
	return nil
}
