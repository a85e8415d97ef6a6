package strata

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// -----------------------------------------------------------------------------
// Zstd Codec (bytes-to-bytes)
// -----------------------------------------------------------------------------

// zstdCodec implements BytesToBytesCodec using Zstandard framing. Like
// gzip, a plain zstd frame has no addressable block index, so partial
// decoding falls back to a full decode plus in-memory slicing.
type zstdCodec struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

// NewZstdCodec creates a zstd bytes-to-bytes codec with the given
// compression level (zstd's default level when 0).
func NewZstdCodec(level int) (BytesToBytesCodec, error) {
	encLevel := zstd.SpeedDefault
	if level != 0 {
		encLevel = zstd.EncoderLevelFromZstd(level)
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(encLevel))
	if err != nil {
		return nil, fmt.Errorf("zstd codec: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("zstd codec: %w", err)
	}
	return &zstdCodec{enc: enc, dec: dec}, nil
}

func newZstdCodec(cfg map[string]any) (BytesToBytesCodec, error) {
	level, err := intOption(cfg, "level", 0)
	if err != nil {
		return nil, fmt.Errorf("zstd codec: %w", err)
	}
	return NewZstdCodec(level)
}

func (c *zstdCodec) Name() string {
	return "zstd"
}

func (c *zstdCodec) Kind() CodecKind {
	return KindBytesToBytes
}

func (c *zstdCodec) Encode(_ ChunkSpec, data []byte) ([]byte, error) {
	return c.enc.EncodeAll(data, nil), nil
}

func (c *zstdCodec) Decode(_ ChunkSpec, data []byte) ([]byte, error) {
	out, err := c.dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd codec: %w: %v", ErrInvalidEncoding, err)
	}
	return out, nil
}

func (c *zstdCodec) NewPartialDecoder(spec ChunkSpec, inner BytesDecoder) BytesDecoder {
	return newFullDecoder(inner, func(encoded []byte) ([]byte, error) {
		return c.Decode(spec, encoded)
	})
}
