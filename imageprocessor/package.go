// Package imageprocessor loads image files with OpenCV and computes the
// content and perceptual hashes used for duplicate detection.
package imageprocessor

import "gocv.io/x/gocv"

// ImageLoader is the interface that all image loaders must implement
type ImageLoader interface {
	// CanLoad checks if the loader can handle the given file
	CanLoad(path string) bool

	// LoadImage loads the image as a single channel grayscale Mat
	LoadImage(path string) (gocv.Mat, error)
}
