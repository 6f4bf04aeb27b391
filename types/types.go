package types

import (
	"time"
)

// PhotoRecord holds the metadata and hashes stored for a single photo
type PhotoRecord struct {
	ID                int64      `json:"id"`
	Path              string     `json:"path"`
	Filename          string     `json:"filename"`
	SizeBytes         int64      `json:"size_bytes"`
	Width             int        `json:"width"`
	Height            int        `json:"height"`
	SHA256Hash        string     `json:"sha256_hash,omitempty"`
	PerceptualHash    string     `json:"perceptual_hash,omitempty"`
	TakenAt           *time.Time `json:"taken_at,omitempty"`
	ModifiedAt        *time.Time `json:"modified_at,omitempty"`
	MarkedForDeletion bool       `json:"marked_for_deletion"`
	OriginalPath      string     `json:"original_path,omitempty"`
	TrashedAt         *time.Time `json:"trashed_at,omitempty"`
	Description       string     `json:"description,omitempty"`
}

// IsTrashed reports whether the photo currently lives in the trash area
func (p PhotoRecord) IsTrashed() bool {
	return p.TrashedAt != nil
}

// PixelCount returns width*height, treating unknown dimensions as zero
func (p PhotoRecord) PixelCount() int64 {
	if p.Width <= 0 || p.Height <= 0 {
		return 0
	}
	return int64(p.Width) * int64(p.Height)
}

// ImageHashes contains the hashes computed for an image file
type ImageHashes struct {
	SHA256     string
	Perceptual string
	Width      int
	Height     int
}

// PhotoFilter narrows ListPhotos results
type PhotoFilter struct {
	WithContentHash    bool
	WithPerceptualHash bool
	IncludeTrashed     bool
	MarkedOnly         bool
}

// GroupType distinguishes exact from perceptual duplicate groups
type GroupType string

const (
	GroupExact      GroupType = "exact"
	GroupPerceptual GroupType = "perceptual"
)

// Valid reports whether t is a known group type
func (t GroupType) Valid() bool {
	return t == GroupExact || t == GroupPerceptual
}

// GroupMember is one photo inside a SimilarityGroup. SimilarityScore is the
// Hamming distance to the representative for perceptual groups and nil for
// exact groups.
type GroupMember struct {
	PhotoID          int64 `json:"photo_id"`
	SimilarityScore  *int  `json:"similarity_score,omitempty"`
	IsRepresentative bool  `json:"is_representative"`
}

// SimilarityGroup is a set of photos considered duplicates of one another
type SimilarityGroup struct {
	ID        int64         `json:"id"`
	GroupType GroupType     `json:"group_type"`
	RunID     string        `json:"run_id"`
	CreatedAt time.Time     `json:"created_at"`
	Members   []GroupMember `json:"members"`
}

// Representative returns the member flagged as representative
func (g SimilarityGroup) Representative() (GroupMember, bool) {
	for _, m := range g.Members {
		if m.IsRepresentative {
			return m, true
		}
	}
	return GroupMember{}, false
}

// PhotoIDs returns member ids in group order
func (g SimilarityGroup) PhotoIDs() []int64 {
	ids := make([]int64, len(g.Members))
	for i, m := range g.Members {
		ids[i] = m.PhotoID
	}
	return ids
}

// EmbeddingRecord is a vector embedding of one photo in one model's space
type EmbeddingRecord struct {
	PhotoID   int64
	Embedding []float32
	ModelName string
}

// SearchResult is a single ranked search hit. Similarity is NaN for results
// of the text fallback, which has no comparable score.
type SearchResult struct {
	PhotoID     int64
	Path        string
	Filename    string
	Similarity  float64
	Description string
}

// TrashedPhoto is the trash view of a PhotoRecord
type TrashedPhoto struct {
	PhotoID      int64     `json:"photo_id"`
	Path         string    `json:"path"`
	OriginalPath string    `json:"original_path"`
	TrashedAt    time.Time `json:"trashed_at"`
	SizeBytes    int64     `json:"size_bytes"`
}

// Skip records an item left out of a detection or search run and why
type Skip struct {
	PhotoID int64
	Reason  string
}

// LibraryStats summarizes the contents of the photo store
type LibraryStats struct {
	TotalPhotos    int   `db:"total_photos"`
	UniqueHashes   int   `db:"unique_hashes"`
	MarkedPhotos   int   `db:"marked_photos"`
	TrashedPhotos  int   `db:"trashed_photos"`
	TrashedBytes   int64 `db:"trashed_bytes"`
	EmbeddedPhotos int   `db:"embedded_photos"`
}
