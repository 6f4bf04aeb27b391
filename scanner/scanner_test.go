package scanner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"photofinder/database"
	"photofinder/logging"
	"photofinder/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeHasher derives hashes from file contents
type fakeHasher struct {
	mu    sync.Mutex
	calls int
}

func (h *fakeHasher) HashFile(path string) (types.ImageHashes, error) {
	h.mu.Lock()
	h.calls++
	h.mu.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		return types.ImageHashes{}, err
	}
	if strings.Contains(string(data), "corrupt") {
		return types.ImageHashes{}, errors.New("corrupt file")
	}
	return types.ImageHashes{SHA256: "sha-" + string(data), Perceptual: "00000000000000ff", Width: 10, Height: 20}, nil
}

func (h *fakeHasher) callCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls
}

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func TestScanAndStoreFolder(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"a.jpg":         "one",
		"b.PNG":         "one",
		"nested/c.tiff": "two",
		"nested/d.nef":  "three",
		"notes.txt":     "ignored",
	})

	store := database.NewMemoryStore()
	hasher := &fakeHasher{}
	s := New(store, hasher, logging.Nop())

	summary, err := s.ScanAndStoreFolder(ctx, ScanOptions{FolderPath: dir, MaxWorkers: 3})
	require.NoError(t, err)
	assert.Equal(t, 4, summary.Total)
	assert.Equal(t, 4, summary.Indexed)
	assert.Zero(t, summary.Errors)
	assert.Equal(t, 1, summary.RawFiles)
	assert.Equal(t, 1, summary.TifFiles)

	photos, err := store.ListPhotos(ctx, types.PhotoFilter{})
	require.NoError(t, err)
	require.Len(t, photos, 4)

	a, err := store.GetPhotoByPath(ctx, filepath.Join(dir, "a.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "a.jpg", a.Filename)
	assert.Equal(t, "sha-one", a.SHA256Hash)
	assert.Equal(t, int64(3), a.SizeBytes)
	assert.Equal(t, 10, a.Width)
	require.NotNil(t, a.ModifiedAt)

	// a second scan finds nothing new
	summary, err = s.ScanAndStoreFolder(ctx, ScanOptions{FolderPath: dir, MaxWorkers: 2})
	require.NoError(t, err)
	assert.Equal(t, 4, summary.Unchanged)
	assert.Zero(t, summary.Indexed)
	assert.Equal(t, 4, hasher.callCount())

	// a modified file is re-hashed and keeps its id
	path := filepath.Join(dir, "a.jpg")
	require.NoError(t, os.WriteFile(path, []byte("changed"), 0o644))
	later := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(path, later, later))
	summary, err = s.ScanAndStoreFolder(ctx, ScanOptions{FolderPath: dir})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Indexed)
	updated, err := store.GetPhotoByPath(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, a.ID, updated.ID)
	assert.Equal(t, "sha-changed", updated.SHA256Hash)

	summary, err = s.ScanAndStoreFolder(ctx, ScanOptions{FolderPath: dir, ForceRewrite: true})
	require.NoError(t, err)
	assert.Equal(t, 4, summary.Indexed)
}

func TestScanCountsFailures(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"good.jpg": "fine",
		"bad.jpg":  "corrupt",
	})

	store := database.NewMemoryStore()
	summary, err := New(store, &fakeHasher{}, logging.Nop()).ScanAndStoreFolder(context.Background(), ScanOptions{FolderPath: dir, MaxWorkers: 2})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Indexed)
	assert.Equal(t, 1, summary.Errors)
	assert.Contains(t, summary.Failed, filepath.Join(dir, "bad.jpg"))

	_, err = store.GetPhotoByPath(context.Background(), filepath.Join(dir, "bad.jpg"))
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestScanHonoursCancellation(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"a.jpg": "1", "b.jpg": "2"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	hasher := &fakeHasher{}
	_, err := New(database.NewMemoryStore(), hasher, logging.Nop()).ScanAndStoreFolder(ctx, ScanOptions{FolderPath: dir, MaxWorkers: 4})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, hasher.callCount())
}

func TestScanRejectsMissingFolder(t *testing.T) {
	_, err := New(database.NewMemoryStore(), &fakeHasher{}, logging.Nop()).
		ScanAndStoreFolder(context.Background(), ScanOptions{FolderPath: filepath.Join(t.TempDir(), "missing")})
	assert.ErrorIs(t, err, types.ErrInvalidInput)
}

func TestFileClassification(t *testing.T) {
	assert.True(t, IsImageFile("x.JPEG"))
	assert.True(t, IsImageFile("x.rw2"))
	assert.False(t, IsImageFile("x.mov"))
	assert.True(t, IsRawFormat("x.CR3"))
	assert.True(t, IsTiffFormat("x.TIF"))
	assert.False(t, IsTiffFormat("x.jpg"))
}
