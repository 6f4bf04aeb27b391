package database

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"photofinder/types"
)

type embeddingKey struct {
	photoID int64
	model   string
}

// MemoryStore implements Store in process memory. Embeddings are kept in
// their encoded form so that both backends share the binary layout.
type MemoryStore struct {
	mu          sync.RWMutex
	photos      map[int64]*types.PhotoRecord
	byPath      map[string]int64
	groups      map[types.GroupType][]types.SimilarityGroup
	embeddings  map[embeddingKey][]byte
	nextPhotoID int64
	nextGroupID int64
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		photos:     make(map[int64]*types.PhotoRecord),
		byPath:     make(map[string]int64),
		groups:     make(map[types.GroupType][]types.SimilarityGroup),
		embeddings: make(map[embeddingKey][]byte),
	}
}

// Close is a no-op
func (m *MemoryStore) Close() error { return nil }

func clonePhoto(p *types.PhotoRecord) types.PhotoRecord {
	c := *p
	for _, t := range []**time.Time{&c.TakenAt, &c.ModifiedAt, &c.TrashedAt} {
		if *t != nil {
			v := **t
			*t = &v
		}
	}
	return c
}

func (m *MemoryStore) PutPhoto(_ context.Context, photo *types.PhotoRecord) error {
	if photo.Path == "" {
		return fmt.Errorf("%w: photo path is empty", types.ErrInvalidInput)
	}
	if photo.Filename == "" {
		photo.Filename = filepath.Base(photo.Path)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if id, ok := m.byPath[photo.Path]; ok {
		existing := m.photos[id]
		updated := clonePhoto(photo)
		updated.ID = id
		updated.MarkedForDeletion = existing.MarkedForDeletion
		updated.OriginalPath = existing.OriginalPath
		updated.TrashedAt = existing.TrashedAt
		updated.Description = existing.Description
		m.photos[id] = &updated
		photo.ID = id
		return nil
	}

	m.nextPhotoID++
	stored := clonePhoto(photo)
	stored.ID = m.nextPhotoID
	stored.OriginalPath = ""
	stored.TrashedAt = nil
	m.photos[stored.ID] = &stored
	m.byPath[stored.Path] = stored.ID
	photo.ID = stored.ID
	return nil
}

func (m *MemoryStore) GetPhoto(_ context.Context, id int64) (*types.PhotoRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.photos[id]
	if !ok {
		return nil, fmt.Errorf("photo %d: %w", id, types.ErrNotFound)
	}
	c := clonePhoto(p)
	return &c, nil
}

func (m *MemoryStore) GetPhotoByPath(ctx context.Context, path string) (*types.PhotoRecord, error) {
	m.mu.RLock()
	id, ok := m.byPath[path]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("photo %s: %w", path, types.ErrNotFound)
	}
	return m.GetPhoto(ctx, id)
}

func (m *MemoryStore) GetPhotos(_ context.Context, ids []int64) ([]types.PhotoRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var photos []types.PhotoRecord
	seen := make(map[int64]bool, len(ids))
	for _, id := range ids {
		if p, ok := m.photos[id]; ok && !seen[id] {
			seen[id] = true
			photos = append(photos, clonePhoto(p))
		}
	}
	sort.Slice(photos, func(i, j int) bool { return photos[i].ID < photos[j].ID })
	return photos, nil
}

func (m *MemoryStore) ListPhotos(_ context.Context, filter types.PhotoFilter) ([]types.PhotoRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var photos []types.PhotoRecord
	for _, p := range m.photos {
		if filter.WithContentHash && p.SHA256Hash == "" {
			continue
		}
		if filter.WithPerceptualHash && p.PerceptualHash == "" {
			continue
		}
		if !filter.IncludeTrashed && p.IsTrashed() {
			continue
		}
		if filter.MarkedOnly && !p.MarkedForDeletion {
			continue
		}
		photos = append(photos, clonePhoto(p))
	}
	sort.Slice(photos, func(i, j int) bool { return photos[i].ID < photos[j].ID })
	return photos, nil
}

func (m *MemoryStore) SetHashes(_ context.Context, id int64, sha256, perceptual string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.photos[id]
	if !ok {
		return fmt.Errorf("set hashes: photo %d: %w", id, types.ErrNotFound)
	}
	p.SHA256Hash = sha256
	p.PerceptualHash = perceptual
	return nil
}

func (m *MemoryStore) SetDescription(_ context.Context, id int64, description string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.photos[id]
	if !ok {
		return fmt.Errorf("set description: photo %d: %w", id, types.ErrNotFound)
	}
	p.Description = description
	return nil
}

func (m *MemoryStore) SearchDescriptions(ctx context.Context, keywords []string, limit int) ([]types.PhotoRecord, error) {
	if len(keywords) == 0 || limit <= 0 {
		return nil, nil
	}
	photos, err := m.ListPhotos(ctx, types.PhotoFilter{})
	if err != nil {
		return nil, err
	}

	var matches []types.PhotoRecord
	for _, p := range photos {
		desc := strings.ToLower(p.Description)
		if desc == "" {
			continue
		}
		all := true
		for _, kw := range keywords {
			if !strings.Contains(desc, strings.ToLower(kw)) {
				all = false
				break
			}
		}
		if all {
			matches = append(matches, p)
			if len(matches) == limit {
				break
			}
		}
	}
	return matches, nil
}

func (m *MemoryStore) ReplaceGroups(_ context.Context, groupType types.GroupType, groups []types.SimilarityGroup) ([]types.SimilarityGroup, error) {
	if err := ValidateGroups(groupType, groups); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, g := range groups {
		for _, mem := range g.Members {
			if _, ok := m.photos[mem.PhotoID]; !ok {
				return nil, fmt.Errorf("group member photo %d: %w", mem.PhotoID, types.ErrNotFound)
			}
		}
	}

	now := time.Now().UTC()
	stored := make([]types.SimilarityGroup, len(groups))
	for i, g := range groups {
		m.nextGroupID++
		g.ID = m.nextGroupID
		g.CreatedAt = now
		g.Members = append([]types.GroupMember(nil), g.Members...)
		stored[i] = g
	}
	m.groups[groupType] = stored

	out := make([]types.SimilarityGroup, len(stored))
	for i, g := range stored {
		out[i] = cloneGroup(g)
	}
	return out, nil
}

func cloneGroup(g types.SimilarityGroup) types.SimilarityGroup {
	g.Members = append([]types.GroupMember(nil), g.Members...)
	return g
}

func (m *MemoryStore) ListGroups(_ context.Context, groupType types.GroupType) ([]types.SimilarityGroup, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var groups []types.SimilarityGroup
	for _, g := range m.groups[groupType] {
		groups = append(groups, cloneGroup(g))
	}
	return groups, nil
}

func (m *MemoryStore) PutEmbedding(_ context.Context, record types.EmbeddingRecord) error {
	if record.ModelName == "" {
		return fmt.Errorf("%w: embedding model name is empty", types.ErrInvalidInput)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.photos[record.PhotoID]; !ok {
		return fmt.Errorf("embedding for photo %d: %w", record.PhotoID, types.ErrNotFound)
	}
	m.embeddings[embeddingKey{record.PhotoID, record.ModelName}] = EncodeEmbedding(record.Embedding)
	return nil
}

func (m *MemoryStore) GetEmbedding(_ context.Context, photoID int64, modelName string) (*types.EmbeddingRecord, error) {
	m.mu.RLock()
	blob, ok := m.embeddings[embeddingKey{photoID, modelName}]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("embedding for photo %d model %q: %w", photoID, modelName, types.ErrNotFound)
	}

	vec, err := DecodeEmbedding(blob)
	if err != nil {
		return nil, fmt.Errorf("embedding for photo %d: %w", photoID, err)
	}
	return &types.EmbeddingRecord{PhotoID: photoID, ModelName: modelName, Embedding: vec}, nil
}

func (m *MemoryStore) ListEmbeddings(_ context.Context, modelName string) ([]types.EmbeddingRecord, []types.Skip, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var records []types.EmbeddingRecord
	var skipped []types.Skip
	for key, blob := range m.embeddings {
		if key.model != modelName {
			continue
		}
		p, ok := m.photos[key.photoID]
		if !ok || p.IsTrashed() {
			continue
		}
		vec, err := DecodeEmbedding(blob)
		if err != nil {
			skipped = append(skipped, types.Skip{PhotoID: key.photoID, Reason: err.Error()})
			continue
		}
		records = append(records, types.EmbeddingRecord{PhotoID: key.photoID, ModelName: modelName, Embedding: vec})
	}
	sort.Slice(records, func(i, j int) bool { return records[i].PhotoID < records[j].PhotoID })
	sort.Slice(skipped, func(i, j int) bool { return skipped[i].PhotoID < skipped[j].PhotoID })
	return records, skipped, nil
}

func (m *MemoryStore) SetMarked(_ context.Context, id int64, marked bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.photos[id]
	if !ok {
		return fmt.Errorf("set marked: photo %d: %w", id, types.ErrNotFound)
	}
	p.MarkedForDeletion = marked
	return nil
}

func (m *MemoryStore) TrashPhoto(_ context.Context, id int64, trashPath string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.photos[id]
	if !ok {
		return fmt.Errorf("trash photo %d: %w", id, types.ErrNotFound)
	}
	if p.IsTrashed() {
		return fmt.Errorf("%w: photo %d is already trashed", types.ErrInvalidInput, id)
	}
	if other, ok := m.byPath[trashPath]; ok && other != id {
		return fmt.Errorf("%w: trash path %s is already in use", types.ErrInvalidInput, trashPath)
	}

	at = at.UTC()
	delete(m.byPath, p.Path)
	p.OriginalPath = p.Path
	p.Path = trashPath
	p.TrashedAt = &at
	p.MarkedForDeletion = false
	m.byPath[trashPath] = id
	return nil
}

func (m *MemoryStore) RestorePhoto(_ context.Context, id int64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.photos[id]
	if !ok {
		return "", fmt.Errorf("restore photo %d: %w", id, types.ErrNotFound)
	}
	if p.OriginalPath == "" {
		return "", fmt.Errorf("restore photo %d: not in trash: %w", id, types.ErrNotFound)
	}
	if other, ok := m.byPath[p.OriginalPath]; ok && other != id {
		return "", fmt.Errorf("%w: original path %s is now used by another photo", types.ErrInvalidInput, p.OriginalPath)
	}

	original := p.OriginalPath
	delete(m.byPath, p.Path)
	p.Path = original
	p.OriginalPath = ""
	p.TrashedAt = nil
	m.byPath[original] = id
	return original, nil
}

func (m *MemoryStore) DeletePhoto(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.photos[id]
	if !ok {
		return fmt.Errorf("delete photo: photo %d: %w", id, types.ErrNotFound)
	}
	delete(m.byPath, p.Path)
	delete(m.photos, id)
	for key := range m.embeddings {
		if key.photoID == id {
			delete(m.embeddings, key)
		}
	}

	for groupType, groups := range m.groups {
		kept := groups[:0]
		for _, g := range groups {
			members := g.Members[:0]
			for _, mem := range g.Members {
				if mem.PhotoID != id {
					members = append(members, mem)
				}
			}
			g.Members = members
			if _, hasRep := g.Representative(); hasRep && len(g.Members) >= 2 {
				kept = append(kept, g)
			}
		}
		m.groups[groupType] = kept
	}
	return nil
}

func (m *MemoryStore) ListTrashed(_ context.Context, before time.Time) ([]types.TrashedPhoto, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var trashed []types.TrashedPhoto
	for _, p := range m.photos {
		if !p.IsTrashed() || p.OriginalPath == "" {
			continue
		}
		if !before.IsZero() && !p.TrashedAt.Before(before) {
			continue
		}
		trashed = append(trashed, types.TrashedPhoto{
			PhotoID:      p.ID,
			Path:         p.Path,
			OriginalPath: p.OriginalPath,
			TrashedAt:    *p.TrashedAt,
			SizeBytes:    p.SizeBytes,
		})
	}
	sort.Slice(trashed, func(i, j int) bool {
		if !trashed[i].TrashedAt.Equal(trashed[j].TrashedAt) {
			return trashed[i].TrashedAt.Before(trashed[j].TrashedAt)
		}
		return trashed[i].PhotoID < trashed[j].PhotoID
	})
	return trashed, nil
}

func (m *MemoryStore) TrashSize(_ context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var total int64
	for _, p := range m.photos {
		if p.IsTrashed() {
			total += p.SizeBytes
		}
	}
	return total, nil
}

func (m *MemoryStore) Stats(_ context.Context) (*types.LibraryStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := &types.LibraryStats{TotalPhotos: len(m.photos)}
	hashes := make(map[string]struct{})
	embedded := make(map[int64]struct{})
	for _, p := range m.photos {
		if p.SHA256Hash != "" {
			hashes[p.SHA256Hash] = struct{}{}
		}
		if p.MarkedForDeletion {
			stats.MarkedPhotos++
		}
		if p.IsTrashed() {
			stats.TrashedPhotos++
			stats.TrashedBytes += p.SizeBytes
		}
	}
	for key := range m.embeddings {
		embedded[key.photoID] = struct{}{}
	}
	stats.UniqueHashes = len(hashes)
	stats.EmbeddedPhotos = len(embedded)
	return stats, nil
}
