package duplicates

import (
	"errors"
	"fmt"
	"math/bits"
)

// ErrHashLengthMismatch is returned when two hashes come from different hashing schemes
var ErrHashLengthMismatch = errors.New("hash length mismatch")

// decodeHash turns a hexadecimal perceptual hash into one nibble per byte
func decodeHash(hash string) ([]byte, error) {
	if hash == "" {
		return nil, errors.New("empty hash")
	}
	nibbles := make([]byte, len(hash))
	for i := 0; i < len(hash); i++ {
		c := hash[i]
		switch {
		case c >= '0' && c <= '9':
			nibbles[i] = c - '0'
		case c >= 'a' && c <= 'f':
			nibbles[i] = c - 'a' + 10
		case c >= 'A' && c <= 'F':
			nibbles[i] = c - 'A' + 10
		default:
			return nil, fmt.Errorf("invalid hex character %q at offset %d", c, i)
		}
	}
	return nibbles, nil
}

func nibbleDistance(a, b []byte) int {
	d := 0
	for i := range a {
		d += bits.OnesCount8(a[i] ^ b[i])
	}
	return d
}

// HammingDistance returns the number of differing bits between two hex
// encoded hashes. Hashes of different length are not comparable.
func HammingDistance(a, b string) (int, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d characters", ErrHashLengthMismatch, len(a), len(b))
	}
	na, err := decodeHash(a)
	if err != nil {
		return 0, err
	}
	nb, err := decodeHash(b)
	if err != nil {
		return 0, err
	}
	return nibbleDistance(na, nb), nil
}
