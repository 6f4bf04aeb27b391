package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"photofinder/types"

	"github.com/mattn/go-sqlite3"
)

type embeddingRow struct {
	PhotoID   int64  `db:"photo_id"`
	ModelName string `db:"model_name"`
	Embedding []byte `db:"embedding"`
}

// PutEmbedding creates or overwrites the embedding of a photo for one model
func (s *SQLiteStore) PutEmbedding(ctx context.Context, record types.EmbeddingRecord) error {
	if record.ModelName == "" {
		return fmt.Errorf("%w: embedding model name is empty", types.ErrInvalidInput)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO embeddings (photo_id, model_name, embedding, dimensions, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(photo_id, model_name) DO UPDATE SET
			embedding = excluded.embedding,
			dimensions = excluded.dimensions,
			updated_at = excluded.updated_at`,
		record.PhotoID, record.ModelName, EncodeEmbedding(record.Embedding),
		len(record.Embedding), formatTime(time.Now()))
	if err != nil {
		if isConstraint(err, sqlite3.ErrConstraintForeignKey) {
			return fmt.Errorf("embedding for photo %d: %w", record.PhotoID, types.ErrNotFound)
		}
		return storageErr("put embedding", err)
	}
	return nil
}

// GetEmbedding returns the embedding of a photo for one model
func (s *SQLiteStore) GetEmbedding(ctx context.Context, photoID int64, modelName string) (*types.EmbeddingRecord, error) {
	var row embeddingRow
	err := s.db.GetContext(ctx, &row,
		"SELECT photo_id, model_name, embedding FROM embeddings WHERE photo_id = ? AND model_name = ?",
		photoID, modelName)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("embedding for photo %d model %q: %w", photoID, modelName, types.ErrNotFound)
		}
		return nil, storageErr("get embedding", err)
	}

	vec, err := DecodeEmbedding(row.Embedding)
	if err != nil {
		return nil, fmt.Errorf("embedding for photo %d: %w", photoID, err)
	}
	return &types.EmbeddingRecord{PhotoID: row.PhotoID, ModelName: row.ModelName, Embedding: vec}, nil
}

// ListEmbeddings returns every decodable embedding of non-trashed photos for modelName
func (s *SQLiteStore) ListEmbeddings(ctx context.Context, modelName string) ([]types.EmbeddingRecord, []types.Skip, error) {
	var rows []embeddingRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT e.photo_id, e.model_name, e.embedding
		FROM embeddings e
		JOIN photos p ON p.id = e.photo_id
		WHERE e.model_name = ? AND p.trashed_at IS NULL
		ORDER BY e.photo_id`, modelName)
	if err != nil {
		return nil, nil, storageErr("list embeddings", err)
	}

	records := make([]types.EmbeddingRecord, 0, len(rows))
	var skipped []types.Skip
	for _, r := range rows {
		vec, err := DecodeEmbedding(r.Embedding)
		if err != nil {
			skipped = append(skipped, types.Skip{PhotoID: r.PhotoID, Reason: err.Error()})
			continue
		}
		records = append(records, types.EmbeddingRecord{PhotoID: r.PhotoID, ModelName: r.ModelName, Embedding: vec})
	}
	return records, skipped, nil
}
