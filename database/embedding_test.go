package database

import (
	"math"
	"testing"

	"photofinder/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddingRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		vec  []float32
	}{
		{"empty", []float32{}},
		{"single", []float32{0.5}},
		{"mixed signs and magnitudes", []float32{-1.25, 0, math.MaxFloat32, -math.MaxFloat32, 1e-30, 42}},
		{"negative zero", []float32{float32(math.Copysign(0, -1))}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := EncodeEmbedding(tt.vec)
			assert.Len(t, data, 4*len(tt.vec))

			got, err := DecodeEmbedding(data)
			require.NoError(t, err)
			require.Len(t, got, len(tt.vec))
			for i := range tt.vec {
				assert.Equal(t, math.Float32bits(tt.vec[i]), math.Float32bits(got[i]), "index %d", i)
			}
		})
	}
}

func TestEncodeEmbeddingLittleEndian(t *testing.T) {
	// 1.0 is 0x3F800000
	assert.Equal(t, []byte{0x00, 0x00, 0x80, 0x3F}, EncodeEmbedding([]float32{1.0}))
	assert.Equal(t, []byte{0x00, 0x00, 0x80, 0x3F, 0x00, 0x00, 0x00, 0xC0}, EncodeEmbedding([]float32{1.0, -2.0}))
}

func TestEmbeddingSpecialValuesPassThrough(t *testing.T) {
	vec := []float32{float32(math.Inf(1)), float32(math.Inf(-1)), float32(math.NaN())}
	got, err := DecodeEmbedding(EncodeEmbedding(vec))
	require.NoError(t, err)
	assert.True(t, math.IsInf(float64(got[0]), 1))
	assert.True(t, math.IsInf(float64(got[1]), -1))
	assert.True(t, math.IsNaN(float64(got[2])))
}

func TestDecodeEmbeddingRejectsBadLength(t *testing.T) {
	for _, n := range []int{1, 2, 3, 5, 7} {
		_, err := DecodeEmbedding(make([]byte, n))
		assert.ErrorIs(t, err, types.ErrInvalidInput, "length %d", n)
	}
}
