package duplicates

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHammingDistance(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want int
	}{
		{"identical", "ffff0000ffff0000", "ffff0000ffff0000", 0},
		{"single bit", "0000000000000000", "0000000000000001", 1},
		{"all bits", "0000000000000000", "ffffffffffffffff", 64},
		{"case insensitive", "ABCDEF0123456789", "abcdef0123456789", 0},
		{"short hashes", "f0", "0f", 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := HammingDistance(tt.a, tt.b)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			reverse, err := HammingDistance(tt.b, tt.a)
			require.NoError(t, err)
			assert.Equal(t, got, reverse, "distance is symmetric")
		})
	}
}

func TestHammingDistanceErrors(t *testing.T) {
	_, err := HammingDistance("ffff", "ffffffff")
	assert.ErrorIs(t, err, ErrHashLengthMismatch)

	_, err = HammingDistance("zz", "00")
	assert.Error(t, err)

	_, err = HammingDistance("", "")
	assert.Error(t, err)
}
