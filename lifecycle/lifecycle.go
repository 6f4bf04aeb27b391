// Package lifecycle applies the mark, trash, restore and purge transitions
// to photo records.
package lifecycle

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"photofinder/database"
	"photofinder/types"

	"github.com/rs/zerolog"
)

// State is the deletion state of a photo
type State string

const (
	StateActive  State = "active"
	StateMarked  State = "marked"
	StateTrashed State = "trashed"
)

// StateOf derives the state of a record
func StateOf(p types.PhotoRecord) State {
	switch {
	case p.IsTrashed():
		return StateTrashed
	case p.MarkedForDeletion:
		return StateMarked
	default:
		return StateActive
	}
}

// Manager serializes lifecycle transitions for one store
type Manager struct {
	mu    sync.Mutex
	store database.LifecycleStore
	log   zerolog.Logger
	now   func() time.Time
}

// NewManager creates a Manager over store
func NewManager(store database.LifecycleStore, log zerolog.Logger) *Manager {
	return &Manager{store: store, log: log, now: time.Now}
}

// State reports the current state of a photo
func (m *Manager) State(ctx context.Context, id int64) (State, error) {
	p, err := m.store.GetPhoto(ctx, id)
	if err != nil {
		return "", err
	}
	return StateOf(*p), nil
}

// Mark flags a photo for deletion. Trashed photos cannot be marked.
func (m *Manager) Mark(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, err := m.store.GetPhoto(ctx, id)
	if err != nil {
		return err
	}
	if p.IsTrashed() {
		return fmt.Errorf("%w: photo %d is in the trash", types.ErrInvalidInput, id)
	}
	if err := m.store.SetMarked(ctx, id, true); err != nil {
		return err
	}
	m.log.Info().Int64("photo_id", id).Msg("marked for deletion")
	return nil
}

// Unmark clears the deletion flag
func (m *Manager) Unmark(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.SetMarked(ctx, id, false); err != nil {
		return err
	}
	m.log.Info().Int64("photo_id", id).Msg("unmarked")
	return nil
}

// Trash records that the photo now lives at trashPath. The previous path
// is kept as the original path and the deletion mark is cleared.
func (m *Manager) Trash(ctx context.Context, id int64, trashPath string) error {
	if strings.TrimSpace(trashPath) == "" {
		return fmt.Errorf("%w: empty trash path", types.ErrInvalidInput)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.trash(ctx, id, trashPath)
}

func (m *Manager) trash(ctx context.Context, id int64, trashPath string) error {
	at := m.now()
	if err := m.store.TrashPhoto(ctx, id, trashPath, at); err != nil {
		return err
	}
	m.log.Info().Int64("photo_id", id).Str("trash_path", trashPath).Time("trashed_at", at).Msg("moved to trash")
	return nil
}

// Restore moves a trashed photo back to its original path and returns that path
func (m *Manager) Restore(ctx context.Context, id int64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.restore(ctx, id)
}

func (m *Manager) restore(ctx context.Context, id int64) (string, error) {
	original, err := m.store.RestorePhoto(ctx, id)
	if err != nil {
		return "", err
	}
	m.log.Info().Int64("photo_id", id).Str("path", original).Msg("restored from trash")
	return original, nil
}

// Purge permanently removes the record with its embeddings and group
// memberships. Groups that no longer have two members and a representative
// are dissolved.
func (m *Manager) Purge(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.purge(ctx, id)
}

func (m *Manager) purge(ctx context.Context, id int64) error {
	if err := m.store.DeletePhoto(ctx, id); err != nil {
		return err
	}
	m.log.Info().Int64("photo_id", id).Msg("purged")
	return nil
}

// OldTrashed lists photos trashed more than maxAgeDays ago, oldest first.
// Nothing is purged.
func (m *Manager) OldTrashed(ctx context.Context, maxAgeDays int) ([]types.TrashedPhoto, error) {
	if maxAgeDays < 0 {
		return nil, fmt.Errorf("%w: negative max age %d", types.ErrInvalidInput, maxAgeDays)
	}
	cutoff := m.now().AddDate(0, 0, -maxAgeDays)
	return m.store.ListTrashed(ctx, cutoff)
}

// Trashed lists every trashed photo, oldest first
func (m *Manager) Trashed(ctx context.Context) ([]types.TrashedPhoto, error) {
	return m.store.ListTrashed(ctx, time.Time{})
}

// TrashTotalSize returns the total size in bytes of trashed photos
func (m *Manager) TrashTotalSize(ctx context.Context) (int64, error) {
	return m.store.TrashSize(ctx)
}
