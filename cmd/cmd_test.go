package cmd

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"photofinder/database"
	"photofinder/imageprocessor"
	"photofinder/scanner"
	"photofinder/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// contentHasher hashes file content only, so tests need no decodable images
type contentHasher struct{}

func (contentHasher) HashFile(path string) (types.ImageHashes, error) {
	sha, err := imageprocessor.ComputeContentHash(path)
	if err != nil {
		return types.ImageHashes{}, err
	}
	return types.ImageHashes{SHA256: sha, Width: 10, Height: 10}, nil
}

type testEnv struct {
	app      *App
	store    *database.MemoryStore
	photoDir string
	trashDir string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	root := t.TempDir()
	t.Chdir(root)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(root, "config"))

	store := database.NewMemoryStore()
	app := NewApp()
	app.Store = store
	app.NewHasher = func() scanner.Hasher { return contentHasher{} }

	env := &testEnv{
		app:      app,
		store:    store,
		photoDir: filepath.Join(root, "photos"),
		trashDir: filepath.Join(root, "trash"),
	}
	require.NoError(t, os.MkdirAll(env.photoDir, 0o755))
	return env
}

func (e *testEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	rootCmd := RootCommand(e.app)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(append([]string{"--trash-dir", e.trashDir, "--log-level", "error"}, args...))
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func (e *testEnv) writePhoto(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(e.photoDir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func (e *testEnv) photoID(t *testing.T, path string) int64 {
	t.Helper()
	p, err := e.store.GetPhotoByPath(context.Background(), path)
	require.NoError(t, err)
	return p.ID
}

func TestScanAndExactDuplicates(t *testing.T) {
	env := newTestEnv(t)
	env.writePhoto(t, "a.jpg", "same bytes")
	env.writePhoto(t, "b.jpg", "same bytes")
	env.writePhoto(t, "c.png", "other bytes")
	env.writePhoto(t, "notes.txt", "not an image")

	out, err := env.run(t, "scan", "--folder", env.photoDir, "--workers", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "Indexed 3 of 3 files")

	out, err = env.run(t, "scan", "--folder", env.photoDir)
	require.NoError(t, err)
	assert.Contains(t, out, "3 unchanged")

	out, err = env.run(t, "dupes", "exact")
	require.NoError(t, err)
	assert.Contains(t, out, ": 1 groups from 3 photos")
	assert.Contains(t, out, "a.jpg")
	assert.Contains(t, out, "b.jpg")
	assert.NotContains(t, out, "c.png")

	out, err = env.run(t, "groups", "list", "--type", "exact")
	require.NoError(t, err)
	assert.Contains(t, out, "2 photos")

	out, err = env.run(t, "groups", "mark", "--type", "exact")
	require.NoError(t, err)
	assert.Contains(t, out, "Marked 1 photos in 1 groups")

	stats, err := env.store.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.MarkedPhotos)
}

func TestGroupsMarkSkipsTrashedMembers(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	for _, name := range []string{"a.jpg", "b.jpg", "c.jpg"} {
		env.writePhoto(t, name, "same bytes")
	}
	_, err := env.run(t, "scan", "--folder", env.photoDir)
	require.NoError(t, err)
	_, err = env.run(t, "dupes", "exact")
	require.NoError(t, err)

	groups, err := env.store.ListGroups(ctx, types.GroupExact)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	members := groups[0].PhotoIDs()
	require.Len(t, members, 3)
	trashed, other := members[1], members[2]

	_, err = env.run(t, "trash", strconv.FormatInt(trashed, 10))
	require.NoError(t, err)

	out, err := env.run(t, "groups", "mark", "--type", "exact")
	require.NoError(t, err)
	assert.Contains(t, out, "skipped photo "+strconv.FormatInt(trashed, 10))
	assert.Contains(t, out, "Marked 1 photos in 1 groups (1 skipped)")

	p, err := env.store.GetPhoto(ctx, other)
	require.NoError(t, err)
	assert.True(t, p.MarkedForDeletion)
	p, err = env.store.GetPhoto(ctx, members[0])
	require.NoError(t, err)
	assert.False(t, p.MarkedForDeletion, "representative is kept")
}

func TestGroupsListUnknownType(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.run(t, "groups", "list", "--type", "fuzzy")
	assert.ErrorIs(t, err, types.ErrInvalidInput)
}

func TestScanRequiresFolder(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.run(t, "scan")
	assert.Error(t, err)

	_, err = env.run(t, "scan", "--folder", filepath.Join(env.photoDir, "missing"))
	assert.ErrorIs(t, err, types.ErrInvalidInput)
}

func TestTrashRestorePurge(t *testing.T) {
	env := newTestEnv(t)
	path := env.writePhoto(t, "keep.jpg", "photo")
	_, err := env.run(t, "scan", "--folder", env.photoDir)
	require.NoError(t, err)
	id := env.photoID(t, path)
	arg := strconv.FormatInt(id, 10)

	out, err := env.run(t, "trash", arg)
	require.NoError(t, err)
	assert.Contains(t, out, env.trashDir)
	assert.NoFileExists(t, path)

	out, err = env.run(t, "trashed")
	require.NoError(t, err)
	assert.Contains(t, out, "1 photos")
	assert.Contains(t, out, path)

	_, err = env.run(t, "trash", arg)
	assert.ErrorIs(t, err, types.ErrInvalidInput)

	out, err = env.run(t, "restore", arg)
	require.NoError(t, err)
	assert.Contains(t, out, path)
	assert.FileExists(t, path)

	_, err = env.run(t, "purge", arg)
	require.NoError(t, err)
	assert.NoFileExists(t, path)
	_, err = env.store.GetPhoto(context.Background(), id)
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestSweepListsWithoutPurging(t *testing.T) {
	env := newTestEnv(t)
	path := env.writePhoto(t, "old.jpg", "photo")
	_, err := env.run(t, "scan", "--folder", env.photoDir)
	require.NoError(t, err)
	id := env.photoID(t, path)
	_, err = env.run(t, "trash", strconv.FormatInt(id, 10))
	require.NoError(t, err)

	out, err := env.run(t, "sweep", "--max-age-days", "0")
	require.NoError(t, err)
	assert.Contains(t, out, "Found 1 photos older than 0 days")

	_, err = env.store.GetPhoto(context.Background(), id)
	assert.NoError(t, err)

	out, err = env.run(t, "sweep", "--max-age-days", "0", "--purge")
	require.NoError(t, err)
	assert.Contains(t, out, "Purged 1 photos")
	_, err = env.store.GetPhoto(context.Background(), id)
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestMarkInvalidID(t *testing.T) {
	env := newTestEnv(t)
	for _, arg := range []string{"abc", "0", "-4"} {
		_, err := env.run(t, "mark", "--", arg)
		assert.ErrorIs(t, err, types.ErrInvalidInput, arg)
	}

	_, err := env.run(t, "mark", "99")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestEmbedAndSearch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	sunset := &types.PhotoRecord{Path: "/p/sunset.jpg"}
	beach := &types.PhotoRecord{Path: "/p/beach.jpg"}
	require.NoError(t, env.store.PutPhoto(ctx, sunset))
	require.NoError(t, env.store.PutPhoto(ctx, beach))

	embeddings := filepath.Join(env.photoDir, "embeddings.json")
	require.NoError(t, os.WriteFile(embeddings, []byte(`[
		{"photo_id": `+strconv.FormatInt(sunset.ID, 10)+`, "embedding": [1, 0, 0]},
		{"path": "/p/beach.jpg", "embedding": [0, 1, 0]}
	]`), 0o644))
	out, err := env.run(t, "embed", "--model", "clip", "--file", embeddings)
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 2 embeddings")

	query := filepath.Join(env.photoDir, "query.json")
	require.NoError(t, os.WriteFile(query, []byte(`[0.1, 0.9, 0]`), 0o644))
	out, err = env.run(t, "search", "--vector-file", query, "--model", "clip", "--limit", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "/p/beach.jpg")
	assert.NotContains(t, out, "/p/sunset.jpg")

	_, err = env.run(t, "describe", strconv.FormatInt(sunset.ID, 10), "Red", "sunset", "over", "water")
	require.NoError(t, err)
	out, err = env.run(t, "search", "--text", "sunset red")
	require.NoError(t, err)
	assert.Contains(t, out, "/p/sunset.jpg")
	assert.Contains(t, out, "Red sunset over water")
}

func TestSearchNeedsOneQuery(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.run(t, "search")
	assert.ErrorIs(t, err, types.ErrInvalidInput)

	bad := filepath.Join(env.photoDir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"not": "a vector"}`), 0o644))
	_, err = env.run(t, "search", "--vector-file", bad, "--model", "clip")
	assert.ErrorIs(t, err, types.ErrInvalidInput)
}

func TestInvalidConfig(t *testing.T) {
	env := newTestEnv(t)
	cfg := filepath.Join(env.photoDir, "config.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("search:\n  limit: 0\n"), 0o644))

	_, err := env.run(t, "--config", cfg, "stats")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "search.limit")
}

func TestStats(t *testing.T) {
	env := newTestEnv(t)
	env.writePhoto(t, "a.jpg", "one")
	env.writePhoto(t, "b.jpg", "two")
	_, err := env.run(t, "scan", "--folder", env.photoDir)
	require.NoError(t, err)

	out, err := env.run(t, "stats")
	require.NoError(t, err)
	assert.Regexp(t, `Photos:\s+2`, out)
	assert.Regexp(t, `Unique hashes:\s+2`, out)
}

func TestSQLiteStoreOpenedFromSettings(t *testing.T) {
	env := newTestEnv(t)
	env.app.Store = nil
	dbPath := filepath.Join(t.TempDir(), "nested", "photos.db")

	_, err := env.run(t, "--database", dbPath, "stats")
	require.NoError(t, err)
	assert.FileExists(t, dbPath)
	assert.Nil(t, env.app.Store, "store is closed after the command")
}
