package strata

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
)

// -----------------------------------------------------------------------------
// Gzip Codec (bytes-to-bytes)
// -----------------------------------------------------------------------------

// gzipCodec implements BytesToBytesCodec using standard gzip framing.
// Gzip streams expose no internal block index, so partial decoding falls
// back to a full decode plus in-memory slicing.
type gzipCodec struct {
	level int
}

// NewGzipCodec creates a gzip bytes-to-bytes codec. Levels follow
// compress/gzip: 0 stores without compression, -1 selects the default,
// 1-9 trade speed for size.
func NewGzipCodec(level int) (BytesToBytesCodec, error) {
	if level < gzip.HuffmanOnly || level > gzip.BestCompression {
		return nil, fmt.Errorf("gzip codec: invalid level %d", level)
	}
	return &gzipCodec{level: level}, nil
}

func newGzipCodec(cfg map[string]any) (BytesToBytesCodec, error) {
	level, err := intOption(cfg, "level", gzip.DefaultCompression)
	if err != nil {
		return nil, fmt.Errorf("gzip codec: %w", err)
	}
	return NewGzipCodec(level)
}

func (c *gzipCodec) Name() string {
	return "gzip"
}

func (c *gzipCodec) Kind() CodecKind {
	return KindBytesToBytes
}

func (c *gzipCodec) Encode(_ ChunkSpec, data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, c.level)
	if err != nil {
		return nil, fmt.Errorf("gzip codec: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("gzip codec: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("gzip codec: %w", err)
	}
	return buf.Bytes(), nil
}

func (c *gzipCodec) Decode(_ ChunkSpec, data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("gzip codec: %w: %v", ErrInvalidEncoding, err)
	}
	defer func() { _ = r.Close() }()

	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("gzip codec: %w: %v", ErrInvalidEncoding, err)
	}
	return out, nil
}

func (c *gzipCodec) NewPartialDecoder(spec ChunkSpec, inner BytesDecoder) BytesDecoder {
	return newFullDecoder(inner, func(encoded []byte) ([]byte, error) {
		return c.Decode(spec, encoded)
	})
}
