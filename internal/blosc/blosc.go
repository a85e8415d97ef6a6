// Package blosc implements the Blosc1 block-compressed container format.
//
// An encoded buffer is a 16-byte header followed by either the original
// bytes verbatim (memcpy mode) or a block offset table and one compressed
// stream per block:
//
//	header (16 bytes):
//	  [0]     format version (2)
//	  [1]     compressor id
//	  [2]     flags (0x1 shuffle, 0x2 memcpy, 0x4 bitshuffle)
//	  [3]     typesize
//	  [4:8]   nbytes, uncompressed length (uint32 little-endian)
//	  [8:12]  blocksize (uint32 little-endian)
//	  [12:16] cbytes, total encoded length including header (uint32 little-endian)
//	offset table: one uint32 little-endian absolute offset per block
//	blocks: uint32 little-endian stored size, then the stream; a stored
//	  size equal to the block's uncompressed length marks a raw block
//
// Blocks are shuffled and compressed independently, so a decoded byte
// range can be served by decompressing only the blocks whose uncompressed
// span intersects it. All functions are safe for concurrent use.
package blosc

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Container layout constants.
const (
	HeaderSize    = 16
	FormatVersion = 2

	defaultBlockSize = 64 * 1024
	maxTypesize      = 255
)

// Header flag bits.
const (
	flagShuffle    = 0x1
	flagMemcpy     = 0x2
	flagBitShuffle = 0x4
)

// CompressorID identifies the compressor applied to each block.
type CompressorID uint8

// Block compressors. BloscLZ and LZ4HC slots exist for format
// compatibility but are not implemented.
const (
	BloscLZ CompressorID = iota
	LZ4
	LZ4HC
	Snappy
	Zlib
	Zstd
)

// String returns the compressor name.
func (c CompressorID) String() string {
	switch c {
	case BloscLZ:
		return "blosclz"
	case LZ4:
		return "lz4"
	case LZ4HC:
		return "lz4hc"
	case Snappy:
		return "snappy"
	case Zlib:
		return "zlib"
	case Zstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(c))
	}
}

// ParseCompressorID maps a compressor name to its id.
func ParseCompressorID(name string) (CompressorID, error) {
	switch name {
	case "lz4":
		return LZ4, nil
	case "snappy":
		return Snappy, nil
	case "zlib":
		return Zlib, nil
	case "zstd":
		return Zstd, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedCompressor, name)
	}
}

// Error sentinel values.
var (
	// ErrInvalidHeader indicates a missing or malformed container header.
	ErrInvalidHeader = errors.New("blosc: invalid header")

	// ErrInvalidVersion indicates an unsupported container format version.
	ErrInvalidVersion = errors.New("blosc: unsupported format version")

	// ErrInvalidData indicates an internally inconsistent or corrupt buffer.
	ErrInvalidData = errors.New("blosc: invalid compressed data")

	// ErrUnsupportedCompressor indicates an unknown or unimplemented compressor.
	ErrUnsupportedCompressor = errors.New("blosc: unsupported compressor")

	// ErrOutOfRange indicates a requested decompressed span outside [0, nbytes).
	ErrOutOfRange = errors.New("blosc: requested range out of bounds")

	// ErrTooLarge indicates input exceeding the container's uint32 limits.
	ErrTooLarge = errors.New("blosc: data too large")
)

// Header is the fixed-layout prefix of every encoded buffer.
type Header struct {
	Version    uint8
	Compressor CompressorID
	Flags      uint8
	TypeSize   uint8
	NBytes     uint32 // uncompressed length
	BlockSize  uint32
	CBytes     uint32 // total encoded length including header
}

// ParseHeader reads the header without validating internal consistency.
func ParseHeader(data []byte) (Header, error) {
	if len(data) < HeaderSize {
		return Header{}, ErrInvalidHeader
	}
	h := Header{
		Version:    data[0],
		Compressor: CompressorID(data[1]),
		Flags:      data[2],
		TypeSize:   data[3],
		NBytes:     binary.LittleEndian.Uint32(data[4:8]),
		BlockSize:  binary.LittleEndian.Uint32(data[8:12]),
		CBytes:     binary.LittleEndian.Uint32(data[12:16]),
	}
	if h.Version != FormatVersion {
		return Header{}, fmt.Errorf("%w: got %d, expected %d", ErrInvalidVersion, h.Version, FormatVersion)
	}
	return h, nil
}

// Bytes serializes the header.
func (h Header) Bytes() []byte {
	buf := make([]byte, HeaderSize)
	buf[0] = h.Version
	buf[1] = uint8(h.Compressor)
	buf[2] = h.Flags
	buf[3] = h.TypeSize
	binary.LittleEndian.PutUint32(buf[4:8], h.NBytes)
	binary.LittleEndian.PutUint32(buf[8:12], h.BlockSize)
	binary.LittleEndian.PutUint32(buf[12:16], h.CBytes)
	return buf
}

// IsMemcpy reports whether the payload is stored verbatim.
func (h Header) IsMemcpy() bool { return h.Flags&flagMemcpy != 0 }

// HasShuffle reports whether blocks were byte-shuffled before compression.
func (h Header) HasShuffle() bool { return h.Flags&flagShuffle != 0 }

func (h Header) numBlocks() int {
	if h.NBytes == 0 || h.BlockSize == 0 {
		return 0
	}
	return int((h.NBytes + h.BlockSize - 1) / h.BlockSize)
}

// Options configures compression.
type Options struct {
	// Compressor selects the per-block compressor. Default LZ4.
	Compressor CompressorID

	// Level is the compression level (1-9) for compressors that support
	// one. Out-of-range values are clamped.
	Level int

	// Shuffle enables byte-shuffle preprocessing. Effective only when
	// TypeSize > 1.
	Shuffle bool

	// TypeSize is the element size in bytes used for shuffling. Values
	// outside [1, 255] are treated as 1.
	TypeSize int

	// BlockSize is the uncompressed block size. Zero selects an automatic
	// size. The effective size is rounded up to a multiple of TypeSize.
	BlockSize int
}

// DefaultOptions returns the default compression options.
func DefaultOptions() Options {
	return Options{Compressor: LZ4, Level: 5, Shuffle: true, TypeSize: 1}
}

// Compress encodes src into a self-describing container.
func Compress(src []byte, opts Options) ([]byte, error) {
	if len(src) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrInvalidData)
	}
	if uint64(len(src)) > math.MaxUint32-HeaderSize {
		return nil, ErrTooLarge
	}

	codec, ok := compressors[opts.Compressor]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCompressor, opts.Compressor)
	}

	typesize := opts.TypeSize
	if typesize < 1 || typesize > maxTypesize {
		typesize = 1
	}
	level := opts.Level
	if level < 1 {
		level = 1
	}
	if level > 9 {
		level = 9
	}
	shuffle := opts.Shuffle && typesize > 1

	blockSize := opts.BlockSize
	if blockSize <= 0 {
		blockSize = defaultBlockSize
	}
	if rem := blockSize % typesize; rem != 0 {
		blockSize += typesize - rem
	}
	if blockSize > len(src) {
		blockSize = len(src)
	}

	nbytes := len(src)
	nblocks := (nbytes + blockSize - 1) / blockSize

	// Compress each block independently. A block that does not shrink is
	// stored raw, marked by a stored size equal to its uncompressed length.
	streams := make([][]byte, nblocks)
	total := HeaderSize + 4*nblocks
	for i := 0; i < nblocks; i++ {
		lo := i * blockSize
		hi := lo + blockSize
		if hi > nbytes {
			hi = nbytes
		}
		block := src[lo:hi]
		if shuffle {
			block = shuffleBytes(block, typesize)
		}
		comp, err := codec.compress(block, level)
		if err != nil {
			return nil, fmt.Errorf("blosc: compressing block %d: %w", i, err)
		}
		if comp == nil || len(comp) >= len(block) {
			comp = block
		}
		streams[i] = comp
		total += 4 + len(comp)
	}

	flags := uint8(0)
	if shuffle {
		flags |= flagShuffle
	}

	// Store verbatim when the block streams plus tables are no smaller
	// than the input.
	if total >= HeaderSize+nbytes {
		h := Header{
			Version:    FormatVersion,
			Compressor: opts.Compressor,
			Flags:      flags | flagMemcpy,
			TypeSize:   uint8(typesize),
			NBytes:     uint32(nbytes),
			BlockSize:  uint32(blockSize),
			CBytes:     uint32(HeaderSize + nbytes),
		}
		h.Flags &^= flagShuffle // memcpy stores the original, unshuffled bytes
		out := make([]byte, 0, HeaderSize+nbytes)
		out = append(out, h.Bytes()...)
		out = append(out, src...)
		return out, nil
	}

	h := Header{
		Version:    FormatVersion,
		Compressor: opts.Compressor,
		Flags:      flags,
		TypeSize:   uint8(typesize),
		NBytes:     uint32(nbytes),
		BlockSize:  uint32(blockSize),
		CBytes:     uint32(total),
	}

	out := make([]byte, 0, total)
	out = append(out, h.Bytes()...)

	offsets := make([]byte, 4*nblocks)
	out = append(out, offsets...)

	offset := HeaderSize + 4*nblocks
	for i, stream := range streams {
		binary.LittleEndian.PutUint32(out[HeaderSize+4*i:], uint32(offset))
		var sizeBuf [4]byte
		binary.LittleEndian.PutUint32(sizeBuf[:], uint32(len(stream)))
		out = append(out, sizeBuf[:]...)
		out = append(out, stream...)
		offset += 4 + len(stream)
	}

	return out, nil
}

// Validate parses the header and checks the buffer's internal consistency:
// declared lengths, block table offsets, and per-block stored sizes. It
// must succeed before any decompressed byte is trusted.
func Validate(src []byte) (Header, error) {
	h, err := ParseHeader(src)
	if err != nil {
		return Header{}, err
	}
	if uint64(h.CBytes) != uint64(len(src)) {
		return Header{}, fmt.Errorf("%w: declared length %d, buffer length %d",
			ErrInvalidData, h.CBytes, len(src))
	}
	if h.CBytes < HeaderSize || h.NBytes == 0 {
		return Header{}, fmt.Errorf("%w: implausible declared lengths", ErrInvalidData)
	}
	if h.TypeSize == 0 {
		return Header{}, fmt.Errorf("%w: zero typesize", ErrInvalidData)
	}
	if h.Flags&flagBitShuffle != 0 {
		return Header{}, fmt.Errorf("%w: bitshuffle", ErrUnsupportedCompressor)
	}

	if h.IsMemcpy() {
		if uint64(h.CBytes) != HeaderSize+uint64(h.NBytes) {
			return Header{}, fmt.Errorf("%w: memcpy length mismatch", ErrInvalidData)
		}
		return h, nil
	}

	if _, ok := compressors[h.Compressor]; !ok {
		return Header{}, fmt.Errorf("%w: %s", ErrUnsupportedCompressor, h.Compressor)
	}
	if h.BlockSize == 0 {
		return Header{}, fmt.Errorf("%w: zero block size", ErrInvalidData)
	}

	nblocks := h.numBlocks()
	tableEnd := uint64(HeaderSize + 4*nblocks)
	if tableEnd > uint64(h.CBytes) {
		return Header{}, fmt.Errorf("%w: block table exceeds buffer", ErrInvalidData)
	}
	for i := 0; i < nblocks; i++ {
		off := uint64(binary.LittleEndian.Uint32(src[HeaderSize+4*i:]))
		if off < tableEnd || off+4 > uint64(h.CBytes) {
			return Header{}, fmt.Errorf("%w: block %d offset out of bounds", ErrInvalidData, i)
		}
		csize := uint64(binary.LittleEndian.Uint32(src[off:]))
		rawLen := uint64(h.blockRawLen(i))
		if csize == 0 || csize > rawLen || off+4+csize > uint64(h.CBytes) {
			return Header{}, fmt.Errorf("%w: block %d stored size out of bounds", ErrInvalidData, i)
		}
	}
	return h, nil
}

// blockRawLen returns the uncompressed length of block i.
func (h Header) blockRawLen(i int) int {
	lo := i * int(h.BlockSize)
	hi := lo + int(h.BlockSize)
	if hi > int(h.NBytes) {
		hi = int(h.NBytes)
	}
	return hi - lo
}

// Decompress decodes the entire container.
func Decompress(src []byte) ([]byte, error) {
	h, err := Validate(src)
	if err != nil {
		return nil, err
	}
	return decompressSpan(src, h, 0, int(h.NBytes))
}

// DecompressPartial decodes exactly the decompressed span
// [start, start+length), touching only the blocks that intersect it.
// The span must lie within [0, nbytes]; out-of-bounds spans are rejected,
// never clamped.
func DecompressPartial(src []byte, start, length int) ([]byte, error) {
	h, err := Validate(src)
	if err != nil {
		return nil, err
	}
	if start < 0 || length < 0 || uint64(start)+uint64(length) > uint64(h.NBytes) {
		return nil, fmt.Errorf("%w: [%d, %d) of %d", ErrOutOfRange, start, start+length, h.NBytes)
	}
	return decompressSpan(src, h, start, start+length)
}

// decompressSpan reconstructs decompressed bytes [start, end). The buffer
// must already be validated.
func decompressSpan(src []byte, h Header, start, end int) ([]byte, error) {
	out := make([]byte, end-start)
	if end == start {
		return out, nil
	}

	if h.IsMemcpy() {
		copy(out, src[HeaderSize+start:HeaderSize+end])
		return out, nil
	}

	codec := compressors[h.Compressor]
	blockSize := int(h.BlockSize)
	first := start / blockSize
	last := (end - 1) / blockSize

	for i := first; i <= last; i++ {
		off := int(binary.LittleEndian.Uint32(src[HeaderSize+4*i:]))
		csize := int(binary.LittleEndian.Uint32(src[off:]))
		stream := src[off+4 : off+4+csize]

		rawLen := h.blockRawLen(i)
		var block []byte
		if csize == rawLen {
			block = stream
		} else {
			var err error
			block, err = codec.decompress(stream, rawLen)
			if err != nil {
				return nil, fmt.Errorf("%w: block %d: %v", ErrInvalidData, i, err)
			}
		}
		if h.HasShuffle() {
			block = unshuffleBytes(block, int(h.TypeSize))
		}

		blockStart := i * blockSize
		lo := start
		if blockStart > lo {
			lo = blockStart
		}
		hi := end
		if blockEnd := blockStart + rawLen; blockEnd < hi {
			hi = blockEnd
		}
		copy(out[lo-start:hi-start], block[lo-blockStart:hi-blockStart])
	}

	return out, nil
}
