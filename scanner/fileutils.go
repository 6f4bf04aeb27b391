package scanner

import (
	"path/filepath"
	"slices"
	"strings"
)

var rawFormats = []string{".dng", ".raf", ".arw", ".nef", ".cr2", ".cr3", ".nrw", ".srf", ".orf", ".rw2", ".pef", ".raw"}

// IsImageFile checks if a file extension belongs to an image file
func IsImageFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".jpg", ".jpeg", ".png", ".gif", ".bmp", ".webp", ".heic", ".tif", ".tiff":
		return true
	}
	return slices.Contains(rawFormats, ext)
}

// IsRawFormat checks if a file is in RAW format
func IsRawFormat(path string) bool {
	return slices.Contains(rawFormats, strings.ToLower(filepath.Ext(path)))
}

// IsTiffFormat checks if a file is in TIF format
func IsTiffFormat(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".tif" || ext == ".tiff"
}
