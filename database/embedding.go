package database

import (
	"encoding/binary"
	"fmt"
	"math"

	"photofinder/types"
)

// EncodeEmbedding serializes a vector as little-endian IEEE-754 float32
// words, 4 bytes per element in index order. Values are not validated.
func EncodeEmbedding(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// DecodeEmbedding is the inverse of EncodeEmbedding
func DecodeEmbedding(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("%w: embedding byte length %d is not a multiple of 4", types.ErrInvalidInput, len(data))
	}
	vec := make([]float32, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vec, nil
}
