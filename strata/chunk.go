package strata

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// -----------------------------------------------------------------------------
// Chunk I/O
// -----------------------------------------------------------------------------

// ChunkKey returns the deterministic store key of the chunk at the given
// grid coordinates.
func (a *Array) ChunkKey(coords []uint64) (string, error) {
	if len(coords) != len(a.meta.Shape) {
		return "", fmt.Errorf("strata: chunk coordinates rank %d does not match array rank %d",
			len(coords), len(a.meta.Shape))
	}

	enc := a.meta.ChunkKeyEncoding
	parts := make([]string, len(coords))
	for i, c := range coords {
		parts[i] = strconv.FormatUint(c, 10)
	}

	var name string
	switch enc.Name {
	case "default":
		sep := enc.Configuration.Separator
		if sep == "" {
			sep = "/"
		}
		segments := append([]string{chunkDirPrefix}, parts...)
		name = strings.Join(segments, sep)
	case "v2":
		sep := enc.Configuration.Separator
		if sep == "" {
			sep = "."
		}
		name = strings.Join(parts, sep)
		if name == "" {
			name = "0"
		}
	default:
		return "", fmt.Errorf("strata: unknown chunk key encoding %q", enc.Name)
	}

	if a.path == "" {
		return name, nil
	}
	return a.path + "/" + name, nil
}

// ReadChunk materializes the full decoded form of one chunk.
// Returns ErrNotFound if the chunk has not been written; the caller
// decides whether to substitute the array's fill value.
func (a *Array) ReadChunk(ctx context.Context, coords []uint64) ([]byte, error) {
	key, err := a.ChunkKey(coords)
	if err != nil {
		return nil, err
	}
	encoded, err := a.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	decoded, err := a.pipeline.Decode(a.spec, encoded)
	if err != nil {
		return nil, fmt.Errorf("strata: decoding chunk %q: %w", key, err)
	}
	return decoded, nil
}

// ReadChunkRanges serves the requested byte ranges of one chunk's decoded
// form, one result slice per range in request order, without necessarily
// materializing the whole chunk. The parallel flag permits concurrent
// fetching and decompression of independent sub-ranges and never changes
// the result. Returns ErrNotFound if the chunk has not been written.
func (a *Array) ReadChunkRanges(ctx context.Context, coords []uint64, ranges []ByteRange, parallel bool) ([][]byte, error) {
	key, err := a.ChunkKey(coords)
	if err != nil {
		return nil, err
	}
	out, err := a.pipeline.PartialDecode(ctx, a.spec, a.store, key, ranges, parallel)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("strata: partially decoding chunk %q: %w", key, err)
	}
	return out, nil
}

// WriteChunk encodes a decoded chunk buffer through the pipeline and
// writes it under the chunk's key, overwriting any previous value.
func (a *Array) WriteChunk(ctx context.Context, coords []uint64, decoded []byte) error {
	key, err := a.ChunkKey(coords)
	if err != nil {
		return err
	}
	if uint64(len(decoded)) != a.spec.ByteLen() {
		return fmt.Errorf("strata: chunk buffer length %d, expected %d", len(decoded), a.spec.ByteLen())
	}
	encoded, err := a.pipeline.Encode(a.spec, decoded)
	if err != nil {
		return fmt.Errorf("strata: encoding chunk %q: %w", key, err)
	}
	if err := a.store.Set(ctx, key, encoded); err != nil {
		return fmt.Errorf("strata: writing chunk %q: %w", key, err)
	}
	return nil
}

// EraseChunk removes the chunk at the given coordinates. Erasing an
// absent chunk succeeds.
func (a *Array) EraseChunk(ctx context.Context, coords []uint64) error {
	key, err := a.ChunkKey(coords)
	if err != nil {
		return err
	}
	if err := a.store.Erase(ctx, key); err != nil {
		return fmt.Errorf("strata: erasing chunk %q: %w", key, err)
	}
	return nil
}
