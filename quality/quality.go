// Package quality ranks the members of a duplicate group to pick the one to keep.
package quality

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"photofinder/types"

	"github.com/rs/zerolog"
)

// Score is the ranking key of a photo. Pixels dominate, then file size as
// a proxy for less compressed originals, then the lower (older) id.
type Score struct {
	Pixels    int64
	SizeBytes int64
	PhotoID   int64
}

// ScoreOf computes the score of a photo, treating unknown dimensions as zero pixels
func ScoreOf(p types.PhotoRecord) Score {
	return Score{Pixels: p.PixelCount(), SizeBytes: p.SizeBytes, PhotoID: p.ID}
}

// Compare returns a positive number when a ranks above b, negative when
// below, and zero only for the same photo id
func Compare(a, b types.PhotoRecord) int {
	sa, sb := ScoreOf(a), ScoreOf(b)
	if c := cmp.Compare(sa.Pixels, sb.Pixels); c != 0 {
		return c
	}
	if c := cmp.Compare(sa.SizeBytes, sb.SizeBytes); c != 0 {
		return c
	}
	return cmp.Compare(sb.PhotoID, sa.PhotoID)
}

// Rank returns a copy of photos ordered best first
func Rank(photos []types.PhotoRecord) []types.PhotoRecord {
	ranked := slices.Clone(photos)
	slices.SortStableFunc(ranked, func(a, b types.PhotoRecord) int {
		return Compare(b, a)
	})
	return ranked
}

// PickRepresentative returns the id of the best photo
func PickRepresentative(photos []types.PhotoRecord) (int64, error) {
	if len(photos) == 0 {
		return 0, fmt.Errorf("%w: no photos to score", types.ErrInvalidInput)
	}
	best := photos[0]
	for _, p := range photos[1:] {
		if Compare(p, best) > 0 {
			best = p
		}
	}
	return best.ID, nil
}

// DeletionCandidates returns the ids of every member except the representative.
// Nothing is marked; acting on the candidates is up to the caller.
func DeletionCandidates(group types.SimilarityGroup) []int64 {
	var ids []int64
	for _, m := range group.Members {
		if !m.IsRepresentative {
			ids = append(ids, m.PhotoID)
		}
	}
	return ids
}

// PhotoGetter loads photo records by id
type PhotoGetter interface {
	GetPhotos(ctx context.Context, ids []int64) ([]types.PhotoRecord, error)
}

// Scorer picks representatives for stored groups
type Scorer struct {
	photos PhotoGetter
	log    zerolog.Logger
}

// NewScorer creates a Scorer reading member records from photos
func NewScorer(photos PhotoGetter, log zerolog.Logger) *Scorer {
	return &Scorer{photos: photos, log: log}
}

// ScoreAndPickRepresentative loads every member of group and returns the id
// that should carry the representative flag
func (s *Scorer) ScoreAndPickRepresentative(ctx context.Context, group types.SimilarityGroup) (int64, error) {
	ids := group.PhotoIDs()
	if len(ids) == 0 {
		return 0, fmt.Errorf("%w: group %d has no members", types.ErrInvalidInput, group.ID)
	}

	photos, err := s.photos.GetPhotos(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("load members of group %d: %w", group.ID, err)
	}
	if len(photos) != len(ids) {
		return 0, fmt.Errorf("group %d: %d of %d members exist: %w", group.ID, len(photos), len(ids), types.ErrNotFound)
	}

	id, err := PickRepresentative(photos)
	if err != nil {
		return 0, err
	}
	s.log.Debug().Int64("group", group.ID).Int64("representative", id).Int("members", len(photos)).Msg("picked representative")
	return id, nil
}
