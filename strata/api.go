// Package strata reads and writes chunked, compressed, multi-dimensional
// array data on top of a key-value store.
//
// Arrays and groups form a hierarchy of named nodes described by JSON
// metadata documents. Each array is split into fixed-size chunks, and each
// chunk is encoded independently by a configurable pipeline of codec stages
// before being written under a store key. Partial reads are first-class:
// a consumer may request arbitrary byte ranges of a chunk's decoded form,
// and each pipeline stage either serves the request by touching only the
// necessary encoded bytes or falls back to a full decode.
package strata

import (
	"context"
	"fmt"
)

// -----------------------------------------------------------------------------
// Store interface
// -----------------------------------------------------------------------------

// Store abstracts the backing key-value store.
//
// Implementations may target memory, filesystems, S3, or other object
// stores. Keys are hierarchical slash-separated strings. Absence of a key
// is reported with ErrNotFound, never with a zero-value success.
type Store interface {
	// Get retrieves the full value stored under key.
	// Returns ErrNotFound if the key does not exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// GetPartial retrieves the requested byte ranges of the value stored
	// under key, one result slice per range, in request order. Ranges are
	// resolved against the value's actual length; a range outside the
	// value's bounds returns ErrRangeOutOfBounds.
	// Returns ErrNotFound if the key does not exist.
	//
	// Backends without native range reads may fetch the whole value and
	// slice, but must preserve the per-range response shape.
	GetPartial(ctx context.Context, key string, ranges []ByteRange) ([][]byte, error)

	// Set writes the value under key, overwriting any existing value.
	Set(ctx context.Context, key string, value []byte) error

	// Erase removes the key if it exists. Erasing an absent key succeeds.
	Erase(ctx context.Context, key string) error

	// List returns all keys under the given prefix.
	List(ctx context.Context, prefix string) ([]string, error)
}

// -----------------------------------------------------------------------------
// Bytes decoder
// -----------------------------------------------------------------------------

// BytesDecoder serves byte ranges over the decoded form of one encoded
// value. Decoders chain: each pipeline stage wraps exactly one inner
// decoder, with a store-backed decoder at the bottom of every chain.
//
// The parallel flag is advisory. It permits, and never requires, concurrent
// execution of independent sub-operations; it must not change results.
type BytesDecoder interface {
	// PartialDecode returns one byte slice per requested range over the
	// decoded form, in request order. Returns ErrNotFound when the
	// underlying value is absent, ErrInvalidEncoding when the encoded
	// value fails validation or decoding, and ErrRangeOutOfBounds when a
	// range resolves outside the decoded bounds. No partial results are
	// returned on failure.
	PartialDecode(ctx context.Context, ranges []ByteRange, parallel bool) ([][]byte, error)

	// Decode returns the entire decoded form.
	// Returns ErrNotFound when the underlying value is absent.
	Decode(ctx context.Context, parallel bool) ([]byte, error)
}

// -----------------------------------------------------------------------------
// Codec interfaces
// -----------------------------------------------------------------------------

// CodecKind identifies the pipeline stage class of a codec.
//
// The array-to-bytes and bytes-to-bytes interfaces share a method set, so
// stage classification goes through Kind rather than type assertions alone.
type CodecKind int

// Codec stage classes.
const (
	KindArrayToArray CodecKind = iota
	KindArrayToBytes
	KindBytesToBytes
)

// String returns the stage class name.
func (k CodecKind) String() string {
	switch k {
	case KindArrayToArray:
		return "array-to-array"
	case KindArrayToBytes:
		return "array-to-bytes"
	case KindBytesToBytes:
		return "bytes-to-bytes"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// Codec is a reversible transform stage in a chunk encoding pipeline.
//
// Codecs are classified by what they consume and produce: array-to-array,
// array-to-bytes, or bytes-to-bytes. A pipeline holds zero or more
// array-to-array stages, exactly one array-to-bytes stage, and zero or more
// bytes-to-bytes stages, in that order. A codec's Kind must agree with the
// stage interface it implements.
type Codec interface {
	// Name returns the codec identifier (for example, "bytes" or "blosc").
	Name() string

	// Kind returns the codec's stage class.
	Kind() CodecKind
}

// ArrayToArrayCodec transforms a chunk's decoded representation into
// another array representation (for example, element reordering).
type ArrayToArrayCodec interface {
	Codec

	// EncodeArray applies the forward transform to a decoded chunk buffer.
	EncodeArray(spec ChunkSpec, decoded []byte) ([]byte, error)

	// DecodeArray applies the inverse transform.
	DecodeArray(spec ChunkSpec, encoded []byte) ([]byte, error)
}

// ArrayToBytesCodec transforms a chunk's array representation into a flat
// byte sequence and back.
type ArrayToBytesCodec interface {
	Codec

	// Encode serializes a decoded chunk buffer to bytes.
	Encode(spec ChunkSpec, decoded []byte) ([]byte, error)

	// Decode deserializes bytes back into the decoded chunk buffer.
	Decode(spec ChunkSpec, encoded []byte) ([]byte, error)

	// NewPartialDecoder wraps an inner decoder over this codec's encoded
	// form. The returned decoder takes ownership of inner.
	NewPartialDecoder(spec ChunkSpec, inner BytesDecoder) BytesDecoder
}

// BytesToBytesCodec transforms a byte sequence into another byte sequence
// (for example, compression).
type BytesToBytesCodec interface {
	Codec

	// Encode applies the forward transform.
	Encode(spec ChunkSpec, data []byte) ([]byte, error)

	// Decode applies the inverse transform.
	Decode(spec ChunkSpec, data []byte) ([]byte, error)

	// NewPartialDecoder wraps an inner decoder over this codec's encoded
	// form. The returned decoder takes ownership of inner.
	NewPartialDecoder(spec ChunkSpec, inner BytesDecoder) BytesDecoder
}

// -----------------------------------------------------------------------------
// Chunk spec
// -----------------------------------------------------------------------------

// ChunkSpec describes the decoded representation of one chunk: its shape
// and element type. The decoded byte length of a chunk is always the
// product of its shape times the element size.
type ChunkSpec struct {
	// Shape is the chunk's extent in each dimension, in elements.
	Shape []uint64

	// DataType is the element type.
	DataType DataType
}

// NumElements returns the number of elements in the chunk.
func (s ChunkSpec) NumElements() uint64 {
	n := uint64(1)
	for _, d := range s.Shape {
		n *= d
	}
	return n
}

// ByteLen returns the decoded byte length of the chunk.
func (s ChunkSpec) ByteLen() uint64 {
	return s.NumElements() * s.DataType.Size()
}

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

// Error sentinel values for common conditions.
var (
	// ErrNotFound indicates a requested key or node does not exist.
	// Absence is a first-class outcome, not a failure: it propagates
	// unchanged through every decode layer so that callers can apply
	// fill-value semantics.
	ErrNotFound = errNotFound{}

	// ErrInvalidEncoding indicates an encoded value failed validation or
	// decoding (malformed header, inconsistent declared lengths, corrupt
	// block table, or a failed decompression).
	ErrInvalidEncoding = errInvalidEncoding{}

	// ErrRangeOutOfBounds indicates a byte range that resolves outside the
	// bounds of the buffer it addresses. This is a caller contract
	// violation and always fails fast; ranges are never clamped.
	ErrRangeOutOfBounds = errRangeOutOfBounds{}
)

type errNotFound struct{}

func (errNotFound) Error() string { return "not found" }

type errInvalidEncoding struct{}

func (errInvalidEncoding) Error() string { return "encoded value is invalid" }

type errRangeOutOfBounds struct{}

func (errRangeOutOfBounds) Error() string { return "byte range out of bounds" }
