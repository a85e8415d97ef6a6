package strata

import (
	"fmt"
)

// -----------------------------------------------------------------------------
// Bytes Codec (array-to-bytes)
// -----------------------------------------------------------------------------

// bytesCodec implements ArrayToBytesCodec: it fixes the byte order of the
// chunk's elements. Little-endian matches the decoded in-memory layout and
// is a pass-through; big-endian swaps each element.
type bytesCodec struct {
	little bool
}

// NewBytesCodec creates the "bytes" array-to-bytes codec with the given
// endianness ("little" or "big").
func NewBytesCodec(endian string) (ArrayToBytesCodec, error) {
	switch endian {
	case "", "little":
		return &bytesCodec{little: true}, nil
	case "big":
		return &bytesCodec{little: false}, nil
	default:
		return nil, fmt.Errorf("bytes codec: unknown endian %q", endian)
	}
}

func newBytesCodec(cfg map[string]any) (ArrayToBytesCodec, error) {
	endian, err := stringOption(cfg, "endian", "little")
	if err != nil {
		return nil, fmt.Errorf("bytes codec: %w", err)
	}
	return NewBytesCodec(endian)
}

func (c *bytesCodec) Name() string {
	return "bytes"
}

func (c *bytesCodec) Kind() CodecKind {
	return KindArrayToBytes
}

func (c *bytesCodec) Encode(spec ChunkSpec, decoded []byte) ([]byte, error) {
	if uint64(len(decoded)) != spec.ByteLen() {
		return nil, fmt.Errorf("bytes codec: decoded length %d, expected %d", len(decoded), spec.ByteLen())
	}
	return c.fix(spec, decoded), nil
}

func (c *bytesCodec) Decode(spec ChunkSpec, encoded []byte) ([]byte, error) {
	if uint64(len(encoded)) != spec.ByteLen() {
		return nil, fmt.Errorf("bytes codec: %w: encoded length %d, expected %d",
			ErrInvalidEncoding, len(encoded), spec.ByteLen())
	}
	// The swap is self-inverse.
	return c.fix(spec, encoded), nil
}

func (c *bytesCodec) NewPartialDecoder(spec ChunkSpec, inner BytesDecoder) BytesDecoder {
	if c.little || spec.DataType.Size() == 1 {
		// Decoded and encoded byte addresses coincide; forward ranges to
		// the inner decoder untouched.
		return inner
	}
	// Byte swapping is element-aligned; arbitrary byte ranges are not
	// translatable, so decode the whole chunk and slice.
	return newFullDecoder(inner, func(encoded []byte) ([]byte, error) {
		return c.Decode(spec, encoded)
	})
}

func (c *bytesCodec) fix(spec ChunkSpec, data []byte) []byte {
	out := make([]byte, len(data))
	size := int(spec.DataType.Size())
	if c.little || size == 1 {
		copy(out, data)
		return out
	}
	for base := 0; base+size <= len(data); base += size {
		for j := 0; j < size; j++ {
			out[base+j] = data[base+size-1-j]
		}
	}
	return out
}
