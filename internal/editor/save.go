// internal/editor/save.go
package editor

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
)

// ErrSaveInFlight is returned when a save is requested while another is still
// waiting on persistence.
var ErrSaveInFlight = errors.New("a save is already in progress")

// Persister stores a snapshot. It is the only call the editor awaits.
type Persister interface {
	Persist(ctx context.Context, snap Snapshot) error
}

// PersisterFunc adapts a function to Persister.
type PersisterFunc func(ctx context.Context, snap Snapshot) error

func (f PersisterFunc) Persist(ctx context.Context, snap Snapshot) error {
	return f(ctx, snap)
}

type saveGuard struct {
	inFlight atomic.Bool
}

// Saving reports whether a save is in flight.
func (s *Session) Saving() bool {
	return s.save.inFlight.Load()
}

// BeginSave claims the save slot and returns the snapshot to persist. In text
// mode the buffer must parse first. Every successful BeginSave must be
// followed by EndSave.
func (s *Session) BeginSave() (Snapshot, error) {
	if !s.save.inFlight.CompareAndSwap(false, true) {
		return Snapshot{}, ErrSaveInFlight
	}
	scenes, err := s.text.PrepareSave()
	if err != nil {
		s.save.inFlight.Store(false)
		return Snapshot{}, err
	}
	return s.snapshot(scenes), nil
}

// EndSave releases the save slot.
func (s *Session) EndSave() {
	s.save.inFlight.Store(false)
}

// Save persists the current state. A second call while one is pending is
// rejected with ErrSaveInFlight rather than queued.
func (s *Session) Save(ctx context.Context, p Persister) (Snapshot, error) {
	snap, err := s.BeginSave()
	if err != nil {
		return Snapshot{}, err
	}
	defer s.EndSave()

	if err := p.Persist(ctx, snap); err != nil {
		return Snapshot{}, fmt.Errorf("failed to persist story %s: %w", snap.StoryID, err)
	}
	return snap, nil
}
