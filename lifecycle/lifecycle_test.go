package lifecycle

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"photofinder/database"
	"photofinder/logging"
	"photofinder/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func forEachStore(t *testing.T, fn func(t *testing.T, store database.Store)) {
	t.Helper()
	t.Run("sqlite", func(t *testing.T) {
		store, err := database.InitDatabase(filepath.Join(t.TempDir(), "photos.db"))
		require.NoError(t, err)
		t.Cleanup(func() { store.Close() })
		fn(t, store)
	})
	t.Run("memory", func(t *testing.T) { fn(t, database.NewMemoryStore()) })
}

func newManager(store database.LifecycleStore, now time.Time) *Manager {
	m := NewManager(store, logging.Nop())
	m.now = func() time.Time { return now }
	return m
}

func addPhoto(t *testing.T, store database.Store, path string, size int64) *types.PhotoRecord {
	t.Helper()
	p := &types.PhotoRecord{Path: path, SizeBytes: size}
	require.NoError(t, store.PutPhoto(context.Background(), p))
	return p
}

func TestMarkAndUnmark(t *testing.T) {
	forEachStore(t, func(t *testing.T, store database.Store) {
		ctx := context.Background()
		m := newManager(store, time.Now())
		p := addPhoto(t, store, "/a.jpg", 1)

		state, err := m.State(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, StateActive, state)

		require.NoError(t, m.Mark(ctx, p.ID))
		state, _ = m.State(ctx, p.ID)
		assert.Equal(t, StateMarked, state)
		require.NoError(t, m.Mark(ctx, p.ID), "marking twice is harmless")

		require.NoError(t, m.Unmark(ctx, p.ID))
		state, _ = m.State(ctx, p.ID)
		assert.Equal(t, StateActive, state)

		assert.ErrorIs(t, m.Mark(ctx, 999), types.ErrNotFound)
		assert.ErrorIs(t, m.Unmark(ctx, 999), types.ErrNotFound)

		require.NoError(t, m.Trash(ctx, p.ID, "/trash/a.jpg"))
		assert.ErrorIs(t, m.Mark(ctx, p.ID), types.ErrInvalidInput)
	})
}

func TestTrashRestoreRoundTrip(t *testing.T) {
	forEachStore(t, func(t *testing.T, store database.Store) {
		ctx := context.Background()
		now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
		m := newManager(store, now)
		p := addPhoto(t, store, "/photos/a.jpg", 10)
		require.NoError(t, m.Mark(ctx, p.ID))

		require.NoError(t, m.Trash(ctx, p.ID, "/trash/a.jpg"))
		state, err := m.State(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, StateTrashed, state)

		trashed, err := store.GetPhoto(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, "/trash/a.jpg", trashed.Path)
		assert.Equal(t, "/photos/a.jpg", trashed.OriginalPath)
		require.NotNil(t, trashed.TrashedAt)
		assert.True(t, now.Equal(*trashed.TrashedAt))
		assert.False(t, trashed.MarkedForDeletion)

		assert.ErrorIs(t, m.Trash(ctx, p.ID, "/trash/again.jpg"), types.ErrInvalidInput)

		original, err := m.Restore(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, "/photos/a.jpg", original)

		restored, err := store.GetPhoto(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, "/photos/a.jpg", restored.Path)
		assert.Empty(t, restored.OriginalPath)
		assert.Nil(t, restored.TrashedAt)
		state, _ = m.State(ctx, p.ID)
		assert.Equal(t, StateActive, state)

		_, err = m.Restore(ctx, p.ID)
		assert.ErrorIs(t, err, types.ErrNotFound)
	})
}

func TestTrashErrors(t *testing.T) {
	forEachStore(t, func(t *testing.T, store database.Store) {
		ctx := context.Background()
		m := newManager(store, time.Now())
		a := addPhoto(t, store, "/a.jpg", 1)
		addPhoto(t, store, "/b.jpg", 1)

		assert.ErrorIs(t, m.Trash(ctx, 999, "/trash/x.jpg"), types.ErrNotFound)
		assert.ErrorIs(t, m.Trash(ctx, a.ID, ""), types.ErrInvalidInput)
		assert.ErrorIs(t, m.Trash(ctx, a.ID, "/b.jpg"), types.ErrInvalidInput)

		state, err := m.State(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, StateActive, state, "failed trash leaves the photo untouched")
	})
}

func TestPurgeIsTerminal(t *testing.T) {
	forEachStore(t, func(t *testing.T, store database.Store) {
		ctx := context.Background()
		m := newManager(store, time.Now())
		a := addPhoto(t, store, "/a.jpg", 1)
		b := addPhoto(t, store, "/b.jpg", 1)
		require.NoError(t, store.PutEmbedding(ctx, types.EmbeddingRecord{PhotoID: b.ID, ModelName: "m", Embedding: []float32{1, 2}}))
		_, err := store.ReplaceGroups(ctx, types.GroupExact, []types.SimilarityGroup{{
			GroupType: types.GroupExact,
			Members:   []types.GroupMember{{PhotoID: a.ID, IsRepresentative: true}, {PhotoID: b.ID}},
		}})
		require.NoError(t, err)

		require.NoError(t, m.Purge(ctx, b.ID))

		_, err = m.State(ctx, b.ID)
		assert.ErrorIs(t, err, types.ErrNotFound)
		assert.ErrorIs(t, m.Purge(ctx, b.ID), types.ErrNotFound)
		assert.ErrorIs(t, m.Mark(ctx, b.ID), types.ErrNotFound)
		_, err = m.Restore(ctx, b.ID)
		assert.ErrorIs(t, err, types.ErrNotFound)

		_, err = store.GetEmbedding(ctx, b.ID, "m")
		assert.ErrorIs(t, err, types.ErrNotFound)
		groups, err := store.ListGroups(ctx, types.GroupExact)
		require.NoError(t, err)
		assert.Empty(t, groups, "a group left with one member is dissolved")
	})
}

func TestOldTrashed(t *testing.T) {
	forEachStore(t, func(t *testing.T, store database.Store) {
		ctx := context.Background()
		now := time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC)
		old := addPhoto(t, store, "/old.jpg", 300)
		recent := addPhoto(t, store, "/recent.jpg", 20)
		addPhoto(t, store, "/active.jpg", 5)

		require.NoError(t, newManager(store, now.AddDate(0, 0, -45)).Trash(ctx, old.ID, "/trash/old.jpg"))
		require.NoError(t, newManager(store, now.AddDate(0, 0, -3)).Trash(ctx, recent.ID, "/trash/recent.jpg"))
		m := newManager(store, now)

		aged, err := m.OldTrashed(ctx, 30)
		require.NoError(t, err)
		require.Len(t, aged, 1)
		assert.Equal(t, old.ID, aged[0].PhotoID)
		assert.Equal(t, "/old.jpg", aged[0].OriginalPath)

		all, err := m.OldTrashed(ctx, 0)
		require.NoError(t, err)
		assert.Len(t, all, 2)

		_, err = m.OldTrashed(ctx, -1)
		assert.ErrorIs(t, err, types.ErrInvalidInput)

		size, err := m.TrashTotalSize(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(320), size)

		still, err := store.GetPhoto(ctx, old.ID)
		require.NoError(t, err, "listing never purges")
		assert.True(t, still.IsTrashed())
	})
}

func TestFilesTrashRestoreAndPurge(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := database.NewMemoryStore()
	files := NewFiles(newManager(store, time.Now()), filepath.Join(dir, "trash"))

	path := filepath.Join(dir, "library", "a.jpg")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("jpeg"), 0o644))
	p := addPhoto(t, store, path, 4)

	trashPath, err := files.TrashFile(ctx, p.ID)
	require.NoError(t, err)
	assert.NoFileExists(t, path)
	assert.FileExists(t, trashPath)
	assert.Equal(t, files.TrashPath(*p), trashPath)

	original, err := files.RestoreFile(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, path, original)
	assert.FileExists(t, path)
	assert.NoFileExists(t, trashPath)

	require.NoError(t, files.PurgeFile(ctx, p.ID))
	assert.NoFileExists(t, path)
	_, err = store.GetPhoto(ctx, p.ID)
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestFilesTrashUndoesMoveOnFailure(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := database.NewMemoryStore()
	files := NewFiles(newManager(store, time.Now()), filepath.Join(dir, "trash"))

	path := filepath.Join(dir, "a.jpg")
	require.NoError(t, os.WriteFile(path, []byte("jpeg"), 0o644))
	p := addPhoto(t, store, path, 4)
	// another record already claims the trash location
	addPhoto(t, store, files.TrashPath(*p), 1)

	_, err := files.TrashFile(ctx, p.ID)
	assert.ErrorIs(t, err, types.ErrInvalidInput)
	assert.FileExists(t, path, "file is moved back")
	state, err := files.State(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, StateActive, state)
}

func TestFilesConcurrentTrashSameFile(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := database.NewMemoryStore()
	files := NewFiles(newManager(store, time.Now()), filepath.Join(dir, "trash"))

	path := filepath.Join(dir, "a.jpg")
	require.NoError(t, os.WriteFile(path, []byte("jpeg"), 0o644))
	p := addPhoto(t, store, path, 4)

	const workers = 8
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = files.TrashFile(ctx, p.ID)
		}()
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, types.ErrInvalidInput)
	}
	assert.Equal(t, 1, succeeded)
	assert.NoFileExists(t, path)
	assert.FileExists(t, files.TrashPath(*p))

	got, err := store.GetPhoto(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, path, got.OriginalPath)
	assert.Equal(t, files.TrashPath(*p), got.Path)
}

func TestFilesSweep(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := database.NewMemoryStore()
	now := time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC)

	var ids []int64
	for i, age := range []int{60, 40, 1} {
		path := filepath.Join(dir, []string{"a.jpg", "b.jpg", "c.jpg"}[i])
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
		p := addPhoto(t, store, path, 1)
		_, err := NewFiles(newManager(store, now.AddDate(0, 0, -age)), filepath.Join(dir, "trash")).TrashFile(ctx, p.ID)
		require.NoError(t, err)
		ids = append(ids, p.ID)
	}

	files := NewFiles(newManager(store, now), filepath.Join(dir, "trash"))
	listed, err := files.Sweep(ctx, 30, false)
	require.NoError(t, err)
	assert.Len(t, listed, 2)
	size, err := files.TrashTotalSize(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), size, "listing alone purges nothing")

	purged, err := files.Sweep(ctx, 30, true)
	require.NoError(t, err)
	require.Len(t, purged, 2)
	assert.Equal(t, []int64{ids[0], ids[1]}, []int64{purged[0].PhotoID, purged[1].PhotoID})

	remaining, err := files.Trashed(ctx)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, ids[2], remaining[0].PhotoID)
}
