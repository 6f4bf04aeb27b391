package database

import (
	"context"
	"time"

	"photofinder/types"
)

// PhotoStore provides get/put/query access to photo records keyed by id or path
type PhotoStore interface {
	// PutPhoto inserts the photo or updates the record with the same path,
	// setting photo.ID. Lifecycle fields and descriptions are left untouched
	// on update.
	PutPhoto(ctx context.Context, photo *types.PhotoRecord) error
	GetPhoto(ctx context.Context, id int64) (*types.PhotoRecord, error)
	GetPhotoByPath(ctx context.Context, path string) (*types.PhotoRecord, error)
	// GetPhotos returns the records that exist among ids, ordered by id
	GetPhotos(ctx context.Context, ids []int64) ([]types.PhotoRecord, error)
	ListPhotos(ctx context.Context, filter types.PhotoFilter) ([]types.PhotoRecord, error)
}

// HashStore is the narrow view used by duplicate detection
type HashStore interface {
	SetHashes(ctx context.Context, id int64, sha256, perceptual string) error
	ListPhotos(ctx context.Context, filter types.PhotoFilter) ([]types.PhotoRecord, error)
	GetPhotos(ctx context.Context, ids []int64) ([]types.PhotoRecord, error)
}

// GroupStore persists the result sets of duplicate detection runs
type GroupStore interface {
	// ReplaceGroups atomically supersedes every stored group of groupType
	// and returns the new groups with ids assigned.
	ReplaceGroups(ctx context.Context, groupType types.GroupType, groups []types.SimilarityGroup) ([]types.SimilarityGroup, error)
	ListGroups(ctx context.Context, groupType types.GroupType) ([]types.SimilarityGroup, error)
}

// EmbeddingStore persists per-model photo embeddings and descriptions
type EmbeddingStore interface {
	PutEmbedding(ctx context.Context, record types.EmbeddingRecord) error
	GetEmbedding(ctx context.Context, photoID int64, modelName string) (*types.EmbeddingRecord, error)
	// ListEmbeddings returns the embeddings of non-trashed photos for one
	// model. Blobs that cannot be decoded are reported as skips.
	ListEmbeddings(ctx context.Context, modelName string) ([]types.EmbeddingRecord, []types.Skip, error)
	SetDescription(ctx context.Context, id int64, description string) error
	// SearchDescriptions returns non-trashed photos whose description
	// contains every keyword, case-insensitively, ordered by id.
	SearchDescriptions(ctx context.Context, keywords []string, limit int) ([]types.PhotoRecord, error)
	GetPhotos(ctx context.Context, ids []int64) ([]types.PhotoRecord, error)
}

// LifecycleStore applies deletion state transitions. Each method is atomic.
type LifecycleStore interface {
	GetPhoto(ctx context.Context, id int64) (*types.PhotoRecord, error)
	SetMarked(ctx context.Context, id int64, marked bool) error
	TrashPhoto(ctx context.Context, id int64, trashPath string, at time.Time) error
	RestorePhoto(ctx context.Context, id int64) (string, error)
	DeletePhoto(ctx context.Context, id int64) error
	// ListTrashed returns trashed photos with trashed_at strictly before
	// before; a zero before returns all trashed photos.
	ListTrashed(ctx context.Context, before time.Time) ([]types.TrashedPhoto, error)
	TrashSize(ctx context.Context) (int64, error)
}

// Store is the full capability set implemented by every storage backend
type Store interface {
	PhotoStore
	HashStore
	GroupStore
	EmbeddingStore
	LifecycleStore
	Stats(ctx context.Context) (*types.LibraryStats, error)
	Close() error
}
