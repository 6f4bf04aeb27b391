package imageprocessor

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"io"
	"os"
	"slices"

	"gocv.io/x/gocv"
)

const (
	dctSize  = 32
	hashSize = 8
)

// ComputeContentHash returns the hex SHA-256 of the file at path
func ComputeContentHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// ComputePerceptualHash computes a 64-bit DCT perceptual hash of img and
// returns it as 16 hex characters. Bits are set for the low frequency DCT
// coefficients at or above their median, row by row, most significant first.
func ComputePerceptualHash(img gocv.Mat) (string, error) {
	if img.Empty() {
		return "", fmt.Errorf("cannot compute hash for empty image")
	}

	gray := gocv.NewMat()
	defer gray.Close()
	if img.Channels() != 1 {
		gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)
	} else {
		img.CopyTo(&gray)
	}

	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(gray, &resized, image.Point{X: dctSize, Y: dctSize}, 0, 0, gocv.InterpolationArea)

	floatImg := gocv.NewMat()
	defer floatImg.Close()
	resized.ConvertTo(&floatImg, gocv.MatTypeCV32F)

	dct := gocv.NewMat()
	defer dct.Close()
	gocv.DCT(floatImg, &dct, 0)

	lowFreq := dct.Region(image.Rect(0, 0, hashSize, hashSize))
	defer lowFreq.Close()

	values := make([]float32, 0, hashSize*hashSize)
	for y := 0; y < hashSize; y++ {
		for x := 0; x < hashSize; x++ {
			values = append(values, lowFreq.GetFloatAt(y, x))
		}
	}
	return hex.EncodeToString(packBits(values, calculateMedian(values))), nil
}

// packBits sets one bit per value that is >= threshold, filling each byte
// from the most significant bit
func packBits(values []float32, threshold float32) []byte {
	out := make([]byte, (len(values)+7)/8)
	for i, v := range values {
		if v >= threshold {
			out[i/8] |= 1 << (7 - uint(i%8))
		}
	}
	return out
}

// calculateMedian calculates the median value of a float32 slice
func calculateMedian(values []float32) float32 {
	if len(values) == 0 {
		return 0
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)

	n := len(sorted)
	if n%2 == 0 {
		return (sorted[n/2-1] + sorted[n/2]) / 2
	}
	return sorted[n/2]
}
