// Package bytesutil provides small, allocation-conscious byte helpers used
// when keying caches and quarantines by 32-byte roots.
package bytesutil

// ToBytes32 copies the first 32 bytes of b into a fixed-size array. Shorter
// slices are zero-padded.
func ToBytes32(b []byte) [32]byte {
	var a [32]byte
	copy(a[:], b)
	return a
}

// Bytes32ToSlice returns a freshly allocated slice backed by a copy of a.
func Bytes32ToSlice(a [32]byte) []byte {
	b := make([]byte, 32)
	copy(b, a[:])
	return b
}
