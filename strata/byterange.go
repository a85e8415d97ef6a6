package strata

import "fmt"

// -----------------------------------------------------------------------------
// Byte ranges
// -----------------------------------------------------------------------------

// ByteRange addresses a sub-interval of a byte sequence whose total length
// may not be known until the range is resolved. A range is either anchored
// at the start of the sequence (with an optional fixed length) or a suffix
// covering the final bytes.
//
// Resolution against a concrete total length is checked: a range that falls
// outside the sequence is rejected, never clamped.
type ByteRange struct {
	suffix bool
	offset uint64
	length uint64
	fixed  bool
}

// RangeAll addresses the entire sequence.
func RangeAll() ByteRange {
	return ByteRange{}
}

// RangeFrom addresses the bytes from offset to the end of the sequence.
func RangeFrom(offset uint64) ByteRange {
	return ByteRange{offset: offset}
}

// RangeAt addresses the fixed interval [offset, offset+length).
func RangeAt(offset, length uint64) ByteRange {
	return ByteRange{offset: offset, length: length, fixed: true}
}

// RangeSuffix addresses the final length bytes of the sequence.
func RangeSuffix(length uint64) ByteRange {
	return ByteRange{suffix: true, length: length}
}

// Suffix reports whether the range addresses the final bytes of the
// sequence, and if so how many.
func (r ByteRange) Suffix() (uint64, bool) {
	return r.length, r.suffix
}

// Bounds returns the start offset and, when the range has a fixed length,
// that length. It is meaningful only for non-suffix ranges.
func (r ByteRange) Bounds() (offset, length uint64, fixed bool) {
	return r.offset, r.length, r.fixed
}

// Resolve maps the range to concrete [start, end) offsets within a
// sequence of totalLen bytes. Returns ErrRangeOutOfBounds if any part of
// the range falls outside [0, totalLen]; the resolved interval always
// satisfies start <= end <= totalLen.
func (r ByteRange) Resolve(totalLen uint64) (start, end uint64, err error) {
	if r.suffix {
		if r.length > totalLen {
			return 0, 0, fmt.Errorf("%w: suffix of %d bytes exceeds total length %d",
				ErrRangeOutOfBounds, r.length, totalLen)
		}
		return totalLen - r.length, totalLen, nil
	}
	if r.offset > totalLen {
		return 0, 0, fmt.Errorf("%w: offset %d exceeds total length %d",
			ErrRangeOutOfBounds, r.offset, totalLen)
	}
	if !r.fixed {
		return r.offset, totalLen, nil
	}
	if r.length > totalLen-r.offset {
		return 0, 0, fmt.Errorf("%w: range [%d, %d) exceeds total length %d",
			ErrRangeOutOfBounds, r.offset, r.offset+r.length, totalLen)
	}
	return r.offset, r.offset + r.length, nil
}

// Start returns the resolved start offset. The range must be within the
// bounds of the sequence; use Resolve for checked resolution.
func (r ByteRange) Start(totalLen uint64) uint64 {
	if r.suffix {
		return totalLen - r.length
	}
	return r.offset
}

// End returns the resolved end offset. The range must be within the bounds
// of the sequence; use Resolve for checked resolution.
func (r ByteRange) End(totalLen uint64) uint64 {
	if r.suffix || !r.fixed {
		return totalLen
	}
	return r.offset + r.length
}

// Length returns the resolved length. The range must be within the bounds
// of the sequence; use Resolve for checked resolution.
func (r ByteRange) Length(totalLen uint64) uint64 {
	return r.End(totalLen) - r.Start(totalLen)
}

// String implements fmt.Stringer for diagnostics.
func (r ByteRange) String() string {
	switch {
	case r.suffix:
		return fmt.Sprintf("suffix(%d)", r.length)
	case r.fixed:
		return fmt.Sprintf("[%d, %d)", r.offset, r.offset+r.length)
	default:
		return fmt.Sprintf("[%d, ...)", r.offset)
	}
}

// extractRanges resolves each range against data and returns the
// corresponding copies, in request order.
func extractRanges(data []byte, ranges []ByteRange) ([][]byte, error) {
	out := make([][]byte, len(ranges))
	total := uint64(len(data))
	for i, r := range ranges {
		start, end, err := r.Resolve(total)
		if err != nil {
			return nil, err
		}
		b := make([]byte, end-start)
		copy(b, data[start:end])
		out[i] = b
	}
	return out, nil
}
