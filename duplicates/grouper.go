// Package duplicates finds exact and perceptual duplicate photos and stores
// the resulting groups.
package duplicates

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"photofinder/database"
	"photofinder/quality"
	"photofinder/types"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Result describes one detection run
type Result struct {
	RunID  string
	Groups []types.SimilarityGroup
	// Skipped lists photos left out of the run, e.g. malformed hashes
	Skipped []types.Skip
	// Candidates is the number of photos that took part in the comparison
	Candidates int
	// Comparisons is the number of pairwise hash comparisons made
	Comparisons int
}

// Grouper runs duplicate detection against a store
type Grouper struct {
	hashes database.HashStore
	groups database.GroupStore
	log    zerolog.Logger
}

// NewGrouper creates a Grouper
func NewGrouper(hashes database.HashStore, groups database.GroupStore, log zerolog.Logger) *Grouper {
	return &Grouper{hashes: hashes, groups: groups, log: log}
}

// FindExactDuplicates partitions non-trashed photos by content hash. Every
// partition of two or more photos becomes an exact group, replacing the
// groups of the previous exact run.
func (g *Grouper) FindExactDuplicates(ctx context.Context) (*Result, error) {
	res := &Result{RunID: uuid.NewString()}
	log := g.log.With().Str("run_id", res.RunID).Str("group_type", string(types.GroupExact)).Logger()
	start := time.Now()
	log.Info().Msg("starting duplicate detection")

	photos, err := g.hashes.ListPhotos(ctx, types.PhotoFilter{WithContentHash: true})
	if err != nil {
		log.Error().Err(err).Msg("duplicate detection failed")
		return nil, fmt.Errorf("list photos: %w", err)
	}
	res.Candidates = len(photos)

	byHash := make(map[string][]types.PhotoRecord)
	for _, p := range photos {
		byHash[p.SHA256Hash] = append(byHash[p.SHA256Hash], p)
	}

	var groups []types.SimilarityGroup
	for _, members := range byHash {
		if len(members) < 2 {
			continue
		}
		group, err := buildGroup(types.GroupExact, res.RunID, members, nil)
		if err != nil {
			log.Error().Err(err).Msg("duplicate detection failed")
			return nil, err
		}
		groups = append(groups, group)
	}

	return g.store(ctx, log, res, types.GroupExact, groups, start)
}

type hashedPhoto struct {
	photo   types.PhotoRecord
	nibbles []byte
}

// FindPerceptualDuplicates links photos whose perceptual hashes are within
// threshold bits of each other and groups the connected components, so
// similarity is transitive within a group. Only hashes of equal length are
// compared; malformed hashes are skipped.
func (g *Grouper) FindPerceptualDuplicates(ctx context.Context, threshold uint) (*Result, error) {
	res := &Result{RunID: uuid.NewString()}
	log := g.log.With().Str("run_id", res.RunID).Str("group_type", string(types.GroupPerceptual)).Uint("threshold", threshold).Logger()
	start := time.Now()
	log.Info().Msg("starting duplicate detection")

	photos, err := g.hashes.ListPhotos(ctx, types.PhotoFilter{WithPerceptualHash: true})
	if err != nil {
		log.Error().Err(err).Msg("duplicate detection failed")
		return nil, fmt.Errorf("list photos: %w", err)
	}

	buckets := make(map[int][]hashedPhoto)
	var lengths []int
	for _, p := range photos {
		nibbles, err := decodeHash(p.PerceptualHash)
		if err != nil {
			log.Warn().Int64("photo_id", p.ID).Err(err).Msg("skipping malformed perceptual hash")
			res.Skipped = append(res.Skipped, types.Skip{PhotoID: p.ID, Reason: err.Error()})
			continue
		}
		if _, ok := buckets[len(nibbles)]; !ok {
			lengths = append(lengths, len(nibbles))
		}
		buckets[len(nibbles)] = append(buckets[len(nibbles)], hashedPhoto{photo: p, nibbles: nibbles})
		res.Candidates++
	}
	if len(lengths) > 1 {
		log.Warn().Ints("hash_lengths", lengths).Msg("perceptual hashes of different lengths are never compared")
	}

	var groups []types.SimilarityGroup
	for _, n := range lengths {
		bucket := buckets[n]
		ds := newDisjointSet(len(bucket))
		for i := range bucket {
			if err := ctx.Err(); err != nil {
				log.Error().Err(err).Msg("duplicate detection failed")
				return nil, err
			}
			for j := i + 1; j < len(bucket); j++ {
				res.Comparisons++
				if nibbleDistance(bucket[i].nibbles, bucket[j].nibbles) <= int(threshold) {
					ds.union(i, j)
				}
			}
		}

		for _, cluster := range ds.clusters(2) {
			members := make([]types.PhotoRecord, len(cluster))
			nibbles := make(map[int64][]byte, len(cluster))
			for k, idx := range cluster {
				members[k] = bucket[idx].photo
				nibbles[bucket[idx].photo.ID] = bucket[idx].nibbles
			}
			distance := func(rep, id int64) *int {
				d := nibbleDistance(nibbles[rep], nibbles[id])
				return &d
			}
			group, err := buildGroup(types.GroupPerceptual, res.RunID, members, distance)
			if err != nil {
				log.Error().Err(err).Msg("duplicate detection failed")
				return nil, err
			}
			groups = append(groups, group)
		}
	}

	return g.store(ctx, log, res, types.GroupPerceptual, groups, start)
}

// ListGroups returns the groups stored by the last run of groupType
func (g *Grouper) ListGroups(ctx context.Context, groupType types.GroupType) ([]types.SimilarityGroup, error) {
	if !groupType.Valid() {
		return nil, fmt.Errorf("%w: unknown group type %q", types.ErrInvalidInput, groupType)
	}
	return g.groups.ListGroups(ctx, groupType)
}

func (g *Grouper) store(ctx context.Context, log zerolog.Logger, res *Result, groupType types.GroupType, groups []types.SimilarityGroup, start time.Time) (*Result, error) {
	slices.SortFunc(groups, func(a, b types.SimilarityGroup) int {
		return cmp.Compare(minPhotoID(a), minPhotoID(b))
	})

	stored, err := g.groups.ReplaceGroups(ctx, groupType, groups)
	if err != nil {
		log.Error().Err(err).Msg("duplicate detection failed")
		return nil, fmt.Errorf("store %s groups: %w", groupType, err)
	}
	res.Groups = stored

	log.Info().
		Int("groups", len(stored)).
		Int("candidates", res.Candidates).
		Int("comparisons", res.Comparisons).
		Int("skipped", len(res.Skipped)).
		Dur("elapsed", time.Since(start)).
		Msg("duplicate detection finished")
	return res, nil
}

// buildGroup picks the representative of members and orders them
// representative first, then by ascending id. score, when set, gives the
// similarity score of a member relative to the representative.
func buildGroup(groupType types.GroupType, runID string, members []types.PhotoRecord, score func(rep, id int64) *int) (types.SimilarityGroup, error) {
	rep, err := quality.PickRepresentative(members)
	if err != nil {
		return types.SimilarityGroup{}, err
	}

	ids := make([]int64, 0, len(members))
	for _, m := range members {
		if m.ID != rep {
			ids = append(ids, m.ID)
		}
	}
	slices.Sort(ids)

	group := types.SimilarityGroup{GroupType: groupType, RunID: runID}
	repMember := types.GroupMember{PhotoID: rep, IsRepresentative: true}
	if score != nil {
		repMember.SimilarityScore = score(rep, rep)
	}
	group.Members = append(group.Members, repMember)
	for _, id := range ids {
		m := types.GroupMember{PhotoID: id}
		if score != nil {
			m.SimilarityScore = score(rep, id)
		}
		group.Members = append(group.Members, m)
	}
	return group, nil
}

func minPhotoID(g types.SimilarityGroup) int64 {
	lowest := g.Members[0].PhotoID
	for _, m := range g.Members[1:] {
		lowest = min(lowest, m.PhotoID)
	}
	return lowest
}
