package imageprocessor

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"slices"

	"photofinder/logging"

	"github.com/barasher/go-exiftool"
	"gocv.io/x/gocv"
	"golang.org/x/image/tiff"
)

// BaseImageLoader provides common functionality for all image loaders
type BaseImageLoader struct {
	// Formats this loader can handle
	SupportedFormats []FormatType
}

// CanLoad checks if this loader supports the file's format
func (l *BaseImageLoader) CanLoad(path string) bool {
	return slices.Contains(l.SupportedFormats, GetFileFormat(path)) && fileExists(path)
}

// DefaultLoadImage reads path with OpenCV
func (l *BaseImageLoader) DefaultLoadImage(path string) (gocv.Mat, error) {
	img := gocv.IMRead(path, gocv.IMReadGrayScale)
	if img.Empty() {
		img.Close()
		return gocv.NewMat(), newImageLoadError("failed to load image", path)
	}
	return img, nil
}

// StandardImageLoader handles common image formats like JPEG, PNG, etc.
type StandardImageLoader struct {
	BaseImageLoader
}

// NewStandardImageLoader creates a new loader for standard image formats
func NewStandardImageLoader() *StandardImageLoader {
	return &StandardImageLoader{
		BaseImageLoader: BaseImageLoader{
			SupportedFormats: []FormatType{FormatJPEG, FormatPNG, FormatGIF, FormatBMP, FormatWEBP},
		},
	}
}

// LoadImage loads a standard image format
func (l *StandardImageLoader) LoadImage(path string) (gocv.Mat, error) {
	return l.DefaultLoadImage(path)
}

// TiffImageLoader loads TIFF files, falling back to the Go decoder and then
// to ImageMagick when OpenCV cannot read them directly
type TiffImageLoader struct {
	BaseImageLoader
	TempDir string
}

// NewTiffImageLoader creates a new TIFF image loader
func NewTiffImageLoader() *TiffImageLoader {
	return &TiffImageLoader{
		BaseImageLoader: BaseImageLoader{SupportedFormats: []FormatType{FormatTIFF}},
		TempDir:         os.TempDir(),
	}
}

// LoadImage implements specialized loading for TIFF images
func (l *TiffImageLoader) LoadImage(path string) (gocv.Mat, error) {
	if img, err := l.DefaultLoadImage(path); err == nil {
		return img, nil
	}
	img, err := decodeTiff(path)
	if err == nil {
		return img, nil
	}
	logging.DebugLog("Go TIFF decoder failed for %s: %v", path, err)

	if _, err := exec.LookPath("convert"); err != nil {
		return gocv.NewMat(), newImageLoadError("failed to load TIFF image", path)
	}
	tmp, err := os.CreateTemp(l.TempDir, "tiff_conv_*.jpg")
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("create temp file: %w", err)
	}
	tmp.Close()
	defer os.Remove(tmp.Name())

	// only the first page of multi-page files
	if out, err := exec.Command("convert", path+"[0]", tmp.Name()).CombinedOutput(); err != nil {
		logging.LogWarning("ImageMagick conversion failed for %s: %v: %s", path, err, bytes.TrimSpace(out))
		return gocv.NewMat(), newImageLoadError("failed to load TIFF image", path)
	}
	return l.DefaultLoadImage(tmp.Name())
}

// decodeTiff reads the first page of a TIFF with the pure Go decoder, which
// handles some compressions OpenCV builds lack
func decodeTiff(path string) (gocv.Mat, error) {
	f, err := os.Open(path)
	if err != nil {
		return gocv.NewMat(), err
	}
	defer f.Close()

	decoded, err := tiff.Decode(f)
	if err != nil {
		return gocv.NewMat(), err
	}
	img, err := gocv.ImageToMatRGB(decoded)
	if err != nil {
		return gocv.NewMat(), err
	}
	if img.Empty() {
		img.Close()
		return gocv.NewMat(), newImageLoadError("empty TIFF image", path)
	}
	return img, nil
}

// RawPreviewLoader hashes camera RAW files through the JPEG preview that
// cameras embed, extracted with exiftool
type RawPreviewLoader struct {
	BaseImageLoader
	TempDir string
}

// NewRawPreviewLoader creates a RAW loader. It reports false from CanLoad
// when exiftool is not installed.
func NewRawPreviewLoader() *RawPreviewLoader {
	return &RawPreviewLoader{
		BaseImageLoader: BaseImageLoader{
			SupportedFormats: []FormatType{FormatRAW, FormatCR2, FormatCR3, FormatNEF, FormatARW, FormatDNG},
		},
		TempDir: os.TempDir(),
	}
}

// CanLoad checks the format and that exiftool is available
func (l *RawPreviewLoader) CanLoad(path string) bool {
	return l.BaseImageLoader.CanLoad(path) && hasExiftool()
}

// rawPreviewTags lists the exiftool tags of embedded previews, largest first
var rawPreviewTags = []string{"LargestImagePreview", "JpgFromRaw", "PreviewImage"}

// LoadImage extracts the largest embedded preview and loads it
func (l *RawPreviewLoader) LoadImage(path string) (gocv.Mat, error) {
	tmp := filepath.Join(l.TempDir, fmt.Sprintf("raw_preview_%d_%s.jpg", os.Getpid(), filepath.Base(path)))
	defer os.Remove(tmp)

	for _, tag := range previewTags(path) {
		if err := extractWithExiftool(path, "-"+tag, tmp); err != nil {
			logging.DebugLog("exiftool -%s failed for %s: %v", tag, path, err)
			continue
		}
		if img, err := l.DefaultLoadImage(tmp); err == nil {
			return img, nil
		}
	}
	return gocv.NewMat(), newImageLoadError("no readable preview in RAW image", path)
}

// previewTags reads the metadata of path and returns the preview tags it
// carries. All tags are tried when the metadata cannot be read.
func previewTags(path string) []string {
	et, err := exiftool.NewExiftool()
	if err != nil {
		logging.DebugLog("Failed to initialize exiftool: %v", err)
		return rawPreviewTags
	}
	defer et.Close()

	metas := et.ExtractMetadata(path)
	if len(metas) == 0 || metas[0].Err != nil {
		return rawPreviewTags
	}
	return presentTags(metas[0].Fields)
}

// presentTags filters rawPreviewTags down to those in fields
func presentTags(fields map[string]interface{}) []string {
	var tags []string
	for _, tag := range rawPreviewTags {
		if _, ok := fields[tag]; ok {
			tags = append(tags, tag)
		}
	}
	return tags
}

func extractWithExiftool(path, tag, outputPath string) error {
	out, err := os.Create(outputPath)
	if err != nil {
		return err
	}
	defer out.Close()

	var stderr bytes.Buffer
	cmd := exec.Command("exiftool", "-b", tag, path)
	cmd.Stdout = out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%w: %s", err, bytes.TrimSpace(stderr.Bytes()))
	}
	if !hasFileContent(outputPath) {
		return fmt.Errorf("no %s data", tag)
	}
	return nil
}

func hasExiftool() bool {
	_, err := exec.LookPath("exiftool")
	return err == nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func hasFileContent(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Size() > 0
}

func newImageLoadError(message, path string) error {
	return fmt.Errorf("%s: %s", message, path)
}
