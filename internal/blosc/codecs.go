package blosc

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"io"

	"github.com/klauspost/compress/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// blockCodec compresses and decompresses one block stream. compress may
// return nil to signal incompressible input; decompress must produce
// exactly dstLen bytes.
type blockCodec interface {
	compress(src []byte, level int) ([]byte, error)
	decompress(src []byte, dstLen int) ([]byte, error)
}

var compressors = map[CompressorID]blockCodec{
	LZ4:    lz4Codec{},
	Snappy: snappyCodec{},
	Zlib:   zlibCodec{},
	Zstd:   zstdCodec{},
}

// -----------------------------------------------------------------------------
// LZ4
// -----------------------------------------------------------------------------

type lz4Codec struct{}

func (lz4Codec) compress(src []byte, _ int) ([]byte, error) {
	dst := make([]byte, lz4.CompressBlockBound(len(src)))
	var c lz4.Compressor
	n, err := c.CompressBlock(src, dst)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil // incompressible
	}
	return dst[:n], nil
}

func (lz4Codec) decompress(src []byte, dstLen int) ([]byte, error) {
	dst := make([]byte, dstLen)
	n, err := lz4.UncompressBlock(src, dst)
	if err != nil {
		return nil, err
	}
	if n != dstLen {
		return nil, fmt.Errorf("lz4: decompressed %d bytes, expected %d", n, dstLen)
	}
	return dst, nil
}

// -----------------------------------------------------------------------------
// Snappy
// -----------------------------------------------------------------------------

type snappyCodec struct{}

func (snappyCodec) compress(src []byte, _ int) ([]byte, error) {
	return snappy.Encode(nil, src), nil
}

func (snappyCodec) decompress(src []byte, dstLen int) ([]byte, error) {
	dst, err := snappy.Decode(nil, src)
	if err != nil {
		return nil, err
	}
	if len(dst) != dstLen {
		return nil, fmt.Errorf("snappy: decompressed %d bytes, expected %d", len(dst), dstLen)
	}
	return dst, nil
}

// -----------------------------------------------------------------------------
// Zlib
// -----------------------------------------------------------------------------

type zlibCodec struct{}

func (zlibCodec) compress(src []byte, level int) ([]byte, error) {
	var buf bytes.Buffer
	w, err := zlib.NewWriterLevel(&buf, level)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(src); err != nil {
		_ = w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (zlibCodec) decompress(src []byte, dstLen int) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(src))
	if err != nil {
		return nil, err
	}
	defer func() { _ = r.Close() }()

	dst, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if len(dst) != dstLen {
		return nil, fmt.Errorf("zlib: decompressed %d bytes, expected %d", len(dst), dstLen)
	}
	return dst, nil
}

// -----------------------------------------------------------------------------
// Zstd
// -----------------------------------------------------------------------------

type zstdCodec struct{}

var zstdDecoder, _ = zstd.NewReader(nil)

func (zstdCodec) compress(src []byte, level int) ([]byte, error) {
	enc, err := zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)),
		zstd.WithEncoderConcurrency(1),
	)
	if err != nil {
		return nil, err
	}
	out := enc.EncodeAll(src, nil)
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return out, nil
}

func (zstdCodec) decompress(src []byte, dstLen int) ([]byte, error) {
	dst, err := zstdDecoder.DecodeAll(src, make([]byte, 0, dstLen))
	if err != nil {
		return nil, err
	}
	if len(dst) != dstLen {
		return nil, fmt.Errorf("zstd: decompressed %d bytes, expected %d", len(dst), dstLen)
	}
	return dst, nil
}
