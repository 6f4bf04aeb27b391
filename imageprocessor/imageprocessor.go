package imageprocessor

import (
	"photofinder/logging"
	"photofinder/types"
)

// Hasher computes the hashes and dimensions of image files
type Hasher struct {
	registry *ImageLoaderRegistry
}

// NewHasher creates a Hasher using the default loader registry
func NewHasher() *Hasher {
	return &Hasher{registry: NewImageLoaderRegistry()}
}

// HashFile always computes the content hash of path. The perceptual hash
// and dimensions are filled in only when the image can be decoded; a decode
// failure is logged and is not an error.
func (h *Hasher) HashFile(path string) (types.ImageHashes, error) {
	var hashes types.ImageHashes

	sha, err := ComputeContentHash(path)
	if err != nil {
		return hashes, err
	}
	hashes.SHA256 = sha

	if !h.registry.CanLoadFile(path) {
		logging.DebugLog("No decoder for %s, storing content hash only", path)
		return hashes, nil
	}

	img, err := h.registry.LoadImage(path)
	if err != nil {
		logging.LogImageProcessed(path, false, err.Error())
		return hashes, nil
	}
	defer img.Close()

	phash, err := ComputePerceptualHash(img)
	if err != nil {
		logging.LogImageProcessed(path, false, err.Error())
		return hashes, nil
	}
	hashes.Perceptual = phash
	hashes.Width = img.Cols()
	hashes.Height = img.Rows()
	return hashes, nil
}
