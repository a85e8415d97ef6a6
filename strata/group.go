package strata

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// -----------------------------------------------------------------------------
// Group node
// -----------------------------------------------------------------------------

// Group is a hierarchy node that contains other groups and arrays. It
// carries no chunk data of its own, only a metadata document with
// user-defined attributes.
type Group struct {
	store Store
	path  string
	meta  GroupMetadata
}

// NewGroup creates a group node from explicit metadata. Zero-value
// metadata is filled with current defaults. The node's metadata document
// is not written until StoreMetadata is called.
func NewGroup(store Store, path string, meta GroupMetadata) (*Group, error) {
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
		meta.NodeType = nodeTypeGroup
	}
	if err := validateGroupMetadata(&meta); err != nil {
		return nil, fmt.Errorf("strata: %w", err)
	}

	return &Group{store: store, path: normalized, meta: meta}, nil
}

// OpenGroup opens an existing group node by reading and validating its
// metadata document. Returns ErrNotFound if no metadata document exists
// under the path.
func OpenGroup(ctx context.Context, store Store, path string) (*Group, error) {
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
		return nil, fmt.Errorf("strata: reading group metadata at %q: %w", normalized, err)
	}

	var meta GroupMetadata
	if err := jsonAPI.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("strata: decoding group metadata at %q: %w", normalized, err)
	}

	return NewGroup(store, normalized, meta)
}

// Path returns the group's node path ("" for the root node).
func (g *Group) Path() string {
	return g.path
}

// Metadata returns a copy of the group's metadata document.
func (g *Group) Metadata() GroupMetadata {
	return g.meta
}

// Attributes returns the group's user-defined attributes.
func (g *Group) Attributes() map[string]any {
	return g.meta.Attributes
}

// StoreMetadata writes the group's metadata document.
func (g *Group) StoreMetadata(ctx context.Context) error {
	data, err := jsonAPI.MarshalIndent(&g.meta, "", "  ")
	if err != nil {
		return fmt.Errorf("strata: encoding group metadata: %w", err)
	}
	if err := g.store.Set(ctx, metadataKey(g.path, metadataFile), data); err != nil {
		return fmt.Errorf("strata: writing group metadata at %q: %w", g.path, err)
	}
	return nil
}

// EraseMetadata removes the group's metadata documents for the versions
// selected by opts. Erasing absent documents succeeds.
func (g *Group) EraseMetadata(ctx context.Context, opts MetadataOptions) error {
	return eraseNodeMetadata(ctx, g.store, g.path, groupFileV2, opts)
}

// Children lists the node paths of the group's immediate children, in
// lexical order. A child is any node one level below the group that has
// a metadata document.
func (g *Group) Children(ctx context.Context) ([]string, error) {
	prefix := ""
	if g.path != "" {
		prefix = g.path + "/"
	}
	keys, err := g.store.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("strata: listing children of %q: %w", g.path, err)
	}

	seen := make(map[string]struct{})
	var children []string
	for _, key := range keys {
		rel := strings.TrimPrefix(key, prefix)
		parts := strings.Split(rel, "/")
		if len(parts) != 2 || parts[1] != metadataFile {
			continue
		}
		child := prefix + parts[0]
		if _, ok := seen[child]; ok {
			continue
		}
		seen[child] = struct{}{}
		children = append(children, child)
	}
	sort.Strings(children)
	return children, nil
}
