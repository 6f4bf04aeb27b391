package imageprocessor

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"gocv.io/x/gocv"
)

// ImageLoaderRegistry maps file extensions to image loaders
type ImageLoaderRegistry struct {
	loaders map[string]ImageLoader
	mutex   sync.RWMutex
}

// NewImageLoaderRegistry creates a registry with the standard, TIFF and RAW loaders
func NewImageLoaderRegistry() *ImageLoaderRegistry {
	r := &ImageLoaderRegistry{loaders: make(map[string]ImageLoader)}

	standard := NewStandardImageLoader()
	for _, ext := range []string{".jpg", ".jpeg", ".png", ".bmp", ".gif", ".webp"} {
		r.RegisterLoader(ext, standard)
	}

	tiff := NewTiffImageLoader()
	r.RegisterLoader(".tif", tiff)
	r.RegisterLoader(".tiff", tiff)

	raw := NewRawPreviewLoader()
	for _, ext := range GetSupportedExtensions() {
		if IsRawFormat(ext) {
			r.RegisterLoader(ext, raw)
		}
	}
	return r
}

// RegisterLoader registers a loader for a file extension, replacing any previous one
func (r *ImageLoaderRegistry) RegisterLoader(ext string, loader ImageLoader) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.loaders[strings.ToLower(ext)] = loader
}

// GetLoader returns the loader registered for the extension of path, or nil
func (r *ImageLoaderRegistry) GetLoader(path string) ImageLoader {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return r.loaders[strings.ToLower(filepath.Ext(path))]
}

// CanLoadFile checks if a registered loader can decode the given file
func (r *ImageLoaderRegistry) CanLoadFile(path string) bool {
	loader := r.GetLoader(path)
	return loader != nil && loader.CanLoad(path)
}

// LoadImage loads an image using the appropriate registered loader
func (r *ImageLoaderRegistry) LoadImage(path string) (gocv.Mat, error) {
	loader := r.GetLoader(path)
	if loader == nil || !loader.CanLoad(path) {
		return gocv.NewMat(), fmt.Errorf("no suitable loader found for: %s", path)
	}
	return loader.LoadImage(path)
}
