package store

import (
	"encoding/binary"
	"fmt"
	"math"
)

// encodeVector packs a feature vector into a blob of four bytes per
// component, native endianness.
func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.NativeEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// decodeVector reconstructs a feature vector from its blob. A length that is
// not a multiple of four bytes means the row is corrupt.
func decodeVector(blob []byte) ([]float32, error) {
	if len(blob)%4 != 0 {
		return nil, fmt.Errorf("embedding blob is %d bytes, not a multiple of 4", len(blob))
	}
	vec := make([]float32, len(blob)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.NativeEndian.Uint32(blob[i*4:]))
	}
	return vec, nil
}
