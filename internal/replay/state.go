package replay

import (
	"context"
	"time"

	"stableScope/internal/model"
	"stableScope/internal/storage"
	"stableScope/internal/storage/postgres"
)

// State is the resume point of a replay: every event up to LastProcessedTs
// has been applied to Snapshot.
type State struct {
	LastProcessedTs uint64           `json:"last_processed_ts"`
	Snapshot        *model.PoolState `json:"snapshot,omitempty"`
	UpdatedAt       string           `json:"updated_at,omitempty"`
}

// StateStore persists replay progress.
type StateStore interface {
	Load(ctx context.Context) (State, bool, error)
	Save(ctx context.Context, state State) error
}

// FileStateStore stores state in a local JSON file.
type FileStateStore struct {
	Path string
}

func (s *FileStateStore) Load(ctx context.Context) (State, bool, error) {
	if s == nil || s.Path == "" {
		return State{}, false, nil
	}
	var st State
	ok, err := storage.ReadJSONFile(s.Path, &st)
	return st, ok, err
}

func (s *FileStateStore) Save(ctx context.Context, state State) error {
	if s == nil || s.Path == "" {
		return nil
	}
	state.UpdatedAt = time.Now().UTC().Format(time.RFC3339Nano)
	return storage.WriteJSONFile(s.Path, state)
}

// DBStateStore stores state in the replay_state table.
type DBStateStore struct {
	Store *postgres.Store
	Name  string
}

func (s *DBStateStore) Load(ctx context.Context) (State, bool, error) {
	if s == nil || s.Store == nil {
		return State{}, false, nil
	}
	ts, snap, ok, err := s.Store.LoadState(ctx, s.Name)
	if err != nil || !ok {
		return State{}, ok, err
	}
	return State{LastProcessedTs: ts, Snapshot: snap}, true, nil
}

func (s *DBStateStore) Save(ctx context.Context, state State) error {
	if s == nil || s.Store == nil {
		return nil
	}
	return s.Store.SaveState(ctx, s.Name, state.LastProcessedTs, state.Snapshot)
}
