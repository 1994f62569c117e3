// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package codecache

import (
	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/database/prefixdb"
	"github.com/ava-labs/avalanchego/database/versiondb"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Prefixes keep each sub state in its own key space.
	singletonStatePrefix = []byte("singleton")
	configStatePrefix    = []byte("config")
	moduleStatePrefix    = []byte("module")

	_ State = &state{}
)

// State is the durable storage every cache falls back to. Writes are
// buffered until Commit.
type State interface {
	InitializedState
	ConfigState
	ModuleState
	Resolver

	Commit() error
	// Abort discards every write since the last Commit.
	Abort()
	Close() error
}

type state struct {
	InitializedState
	ConfigState
	ModuleState

	baseDB *versiondb.Database
}

// NewState wraps [db]. [registerer] receives the module cache metrics.
func NewState(db database.Database, namespace string, registerer prometheus.Registerer) (State, error) {
	baseDB := versiondb.New(db)

	singletonDB := prefixdb.New(singletonStatePrefix, baseDB)
	configDB := prefixdb.New(configStatePrefix, baseDB)
	moduleDB := prefixdb.New(moduleStatePrefix, baseDB)

	moduleState, err := NewModuleState(moduleDB, namespace, registerer)
	if err != nil {
		return nil, err
	}
	return &state{
		InitializedState: NewInitializedState(singletonDB),
		ConfigState:      NewConfigState(configDB),
		ModuleState:      moduleState,
		baseDB:           baseDB,
	}, nil
}

func (s *state) FetchConfigBytes(key []byte) ([]byte, error) {
	return s.GetConfig(key)
}

func (s *state) FetchModuleBytes(id ModuleID) ([]byte, error) {
	return s.GetModuleBytes(id)
}

// Commit commits pending operations to the underlying database.
func (s *state) Commit() error {
	return s.baseDB.Commit()
}

func (s *state) Abort() {
	s.baseDB.Abort()
	// The module cache may hold writes that were just discarded.
	s.ClearCache()
}

// Close closes the underlying base database
func (s *state) Close() error {
	return s.baseDB.Close()
}
