package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"photofinder/types"

	"github.com/mattn/go-sqlite3"
)

// ValidateGroups checks the invariants of a group set before it is stored:
// every group has the expected type, at least two members, exactly one
// representative, and no photo appears in more than one group.
func ValidateGroups(groupType types.GroupType, groups []types.SimilarityGroup) error {
	if !groupType.Valid() {
		return fmt.Errorf("%w: unknown group type %q", types.ErrInvalidInput, groupType)
	}

	seen := make(map[int64]int, len(groups)*2)
	for i, g := range groups {
		if g.GroupType != groupType {
			return fmt.Errorf("%w: group %d has type %q, want %q", types.ErrInvalidInput, i, g.GroupType, groupType)
		}
		if len(g.Members) < 2 {
			return fmt.Errorf("%w: group %d has %d members", types.ErrInvalidInput, i, len(g.Members))
		}
		reps := 0
		for _, m := range g.Members {
			if m.IsRepresentative {
				reps++
			}
			if prev, ok := seen[m.PhotoID]; ok {
				return fmt.Errorf("%w: photo %d is in groups %d and %d", types.ErrInvalidInput, m.PhotoID, prev, i)
			}
			seen[m.PhotoID] = i
		}
		if reps != 1 {
			return fmt.Errorf("%w: group %d has %d representatives", types.ErrInvalidInput, i, reps)
		}
	}
	return nil
}

// ReplaceGroups deletes all groups of groupType and inserts groups in one transaction
func (s *SQLiteStore) ReplaceGroups(ctx context.Context, groupType types.GroupType, groups []types.SimilarityGroup) ([]types.SimilarityGroup, error) {
	if err := ValidateGroups(groupType, groups); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, storageErr("begin transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM similarity_groups WHERE group_type = ?", groupType); err != nil {
		return nil, storageErr("delete groups", err)
	}

	now := time.Now().UTC()
	stored := make([]types.SimilarityGroup, len(groups))
	for i, g := range groups {
		res, err := tx.ExecContext(ctx,
			"INSERT INTO similarity_groups (group_type, run_id, created_at) VALUES (?, ?, ?)",
			groupType, g.RunID, formatTime(now))
		if err != nil {
			return nil, storageErr("insert group", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, storageErr("get last insert id", err)
		}

		for pos, m := range g.Members {
			var score sql.NullInt64
			if m.SimilarityScore != nil {
				score = sql.NullInt64{Int64: int64(*m.SimilarityScore), Valid: true}
			}
			_, err := tx.ExecContext(ctx, `
				INSERT INTO group_members (group_id, photo_id, group_type, position, similarity_score, is_representative)
				VALUES (?, ?, ?, ?, ?, ?)`,
				id, m.PhotoID, groupType, pos, score, m.IsRepresentative)
			if err != nil {
				if isConstraint(err, sqlite3.ErrConstraintForeignKey) {
					return nil, fmt.Errorf("group member photo %d: %w", m.PhotoID, types.ErrNotFound)
				}
				return nil, storageErr("insert group member", err)
			}
		}

		g.ID = id
		g.CreatedAt = now
		stored[i] = g
	}

	if err := tx.Commit(); err != nil {
		return nil, storageErr("commit groups", err)
	}
	return stored, nil
}

type groupMemberRow struct {
	GroupID          int64         `db:"group_id"`
	GroupType        string        `db:"group_type"`
	RunID            string        `db:"run_id"`
	CreatedAt        string        `db:"created_at"`
	PhotoID          int64         `db:"photo_id"`
	SimilarityScore  sql.NullInt64 `db:"similarity_score"`
	IsRepresentative bool          `db:"is_representative"`
}

// ListGroups returns the stored groups of groupType with members in stored order
func (s *SQLiteStore) ListGroups(ctx context.Context, groupType types.GroupType) ([]types.SimilarityGroup, error) {
	var rows []groupMemberRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT g.id AS group_id, g.group_type, g.run_id, g.created_at,
			m.photo_id, m.similarity_score, m.is_representative
		FROM similarity_groups g
		JOIN group_members m ON m.group_id = g.id
		WHERE g.group_type = ?
		ORDER BY g.id, m.position`, groupType)
	if err != nil {
		return nil, storageErr("list groups", err)
	}

	var groups []types.SimilarityGroup
	for _, r := range rows {
		if len(groups) == 0 || groups[len(groups)-1].ID != r.GroupID {
			createdAt, err := time.Parse(timeLayout, r.CreatedAt)
			if err != nil {
				return nil, storageErr("decode group", err)
			}
			groups = append(groups, types.SimilarityGroup{
				ID:        r.GroupID,
				GroupType: types.GroupType(r.GroupType),
				RunID:     r.RunID,
				CreatedAt: createdAt,
			})
		}

		m := types.GroupMember{PhotoID: r.PhotoID, IsRepresentative: r.IsRepresentative}
		if r.SimilarityScore.Valid {
			score := int(r.SimilarityScore.Int64)
			m.SimilarityScore = &score
		}
		g := &groups[len(groups)-1]
		g.Members = append(g.Members, m)
	}
	return groups, nil
}
