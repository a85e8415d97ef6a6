package blosc

// shuffleBytes groups bytes by their position within elements of the given
// size, so that all first bytes come before all second bytes and so on.
// Trailing bytes beyond the last whole element are copied verbatim.
func shuffleBytes(src []byte, typesize int) []byte {
	out := make([]byte, len(src))
	if typesize <= 1 {
		copy(out, src)
		return out
	}
	n := len(src) / typesize * typesize
	elems := n / typesize
	for j := 0; j < typesize; j++ {
		for i := 0; i < elems; i++ {
			out[j*elems+i] = src[i*typesize+j]
		}
	}
	copy(out[n:], src[n:])
	return out
}

// unshuffleBytes is the inverse of shuffleBytes.
func unshuffleBytes(src []byte, typesize int) []byte {
	out := make([]byte, len(src))
	if typesize <= 1 {
		copy(out, src)
		return out
	}
	n := len(src) / typesize * typesize
	elems := n / typesize
	for j := 0; j < typesize; j++ {
		for i := 0; i < elems; i++ {
			out[i*typesize+j] = src[j*elems+i]
		}
	}
	copy(out[n:], src[n:])
	return out
}
