// (c) 2021, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package codecache

import (
	"errors"

	"github.com/ava-labs/avalanchego/cache"
	"github.com/ava-labs/avalanchego/cache/metercacher"
	"github.com/ava-labs/avalanchego/database"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	DefaultModuleStateCacheSize = 8192
)

var (
	errModuleWrongVersion = errors.New("wrong version")
	errModuleWrongID      = errors.New("stored module id mismatch")

	_ ModuleState = &moduleState{}
)

// ModuleState stores published modules keyed by [ModuleID].
type ModuleState interface {
	// GetModule returns [database.ErrNotFound] if [id] was never published.
	GetModule(id ModuleID) (*Module, error)
	// GetModuleBytes returns nil if [id] was never published.
	GetModuleBytes(id ModuleID) ([]byte, error)
	PutModule(m *Module) error

	ClearCache()
}

type moduleState struct {
	// Caches decoded modules. A nil value records a known miss.
	moduleCache cache.Cacher
	moduleDB    database.Database
}

func NewModuleState(db database.Database, namespace string, registerer prometheus.Registerer) (ModuleState, error) {
	moduleCache, err := metercacher.New(
		namespace+"_module_state_cache",
		registerer,
		&cache.LRU{Size: DefaultModuleStateCacheSize},
	)
	if err != nil {
		return nil, err
	}
	return &moduleState{
		moduleCache: moduleCache,
		moduleDB:    db,
	}, nil
}

func (s *moduleState) GetModule(id ModuleID) (*Module, error) {
	if m, ok := s.moduleCache.Get(id); ok {
		if m == nil {
			return nil, database.ErrNotFound
		}
		return m.(*Module), nil
	}

	moduleBytes, err := s.moduleDB.Get(id.Bytes())
	if errors.Is(err, database.ErrNotFound) {
		s.moduleCache.Put(id, nil)
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	m := &Module{}
	parsedVersion, err := Codec.Unmarshal(moduleBytes, m)
	if err != nil {
		return nil, err
	}
	if parsedVersion != CodecVersion {
		return nil, errModuleWrongVersion
	}
	if m.ID != id {
		return nil, errModuleWrongID
	}
	m.initialize()

	s.moduleCache.Put(id, m)
	return m, nil
}

func (s *moduleState) GetModuleBytes(id ModuleID) ([]byte, error) {
	moduleBytes, err := s.moduleDB.Get(id.Bytes())
	if errors.Is(err, database.ErrNotFound) {
		return nil, nil
	}
	return moduleBytes, err
}

func (s *moduleState) PutModule(m *Module) error {
	bytes, err := Codec.Marshal(CodecVersion, m)
	if err != nil {
		return err
	}

	if err := s.moduleDB.Put(m.ID.Bytes(), bytes); err != nil {
		return err
	}
	s.moduleCache.Put(m.ID, m)
	return nil
}

func (s *moduleState) ClearCache() {
	s.moduleCache.Flush()
}
