package snapshot

import (
	"context"
	"fmt"
	"strings"

	"stableScope/internal/model"
	"stableScope/internal/storage"
	"stableScope/internal/storage/postgres"
)

// Store loads and saves pool states.
type Store interface {
	Load(ctx context.Context, chainID uint64, address string) (model.PoolState, bool, error)
	Save(ctx context.Context, state model.PoolState) error
}

// FileStore keeps a single pool state in a JSON file.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load reads the file. A non-empty address must match the stored pool.
func (s *FileStore) Load(_ context.Context, chainID uint64, address string) (model.PoolState, bool, error) {
	var state model.PoolState
	ok, err := storage.ReadJSONFile(s.path, &state)
	if err != nil || !ok {
		return model.PoolState{}, ok, err
	}
	if address != "" && !strings.EqualFold(address, state.Address) {
		return model.PoolState{}, false, fmt.Errorf("snapshot %s holds pool %s, not %s", s.path, state.Address, address)
	}
	if chainID != 0 && state.ChainID != 0 && chainID != state.ChainID {
		return model.PoolState{}, false, fmt.Errorf("snapshot %s holds chain %d, not %d", s.path, state.ChainID, chainID)
	}
	return state, true, nil
}

func (s *FileStore) Save(_ context.Context, state model.PoolState) error {
	return storage.WriteJSONFile(s.path, state)
}

// DBStore keeps pool states in the pool_snapshots table.
type DBStore struct {
	store *postgres.Store
}

func NewDBStore(store *postgres.Store) *DBStore {
	return &DBStore{store: store}
}

func (s *DBStore) Load(ctx context.Context, chainID uint64, address string) (model.PoolState, bool, error) {
	return s.store.LoadPoolSnapshot(ctx, chainID, address)
}

func (s *DBStore) Save(ctx context.Context, state model.PoolState) error {
	return s.store.SavePoolSnapshot(ctx, state)
}
