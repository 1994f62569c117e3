// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package codecache

import (
	"errors"

	"github.com/ava-labs/avalanchego/database"
)

const (
	IsInitializedKey byte = iota
)

var (
	isInitializedKey = []byte{IsInitializedKey}

	_ InitializedState = (*initializedState)(nil)
	_ ConfigState      = (*configState)(nil)
)

// InitializedState records whether genesis has been loaded.
type InitializedState interface {
	IsInitialized() (bool, error)
	SetInitialized() error
}

type initializedState struct {
	singletonDB database.Database
}

func NewInitializedState(db database.Database) InitializedState {
	return &initializedState{
		singletonDB: db,
	}
}

func (s *initializedState) IsInitialized() (bool, error) {
	return s.singletonDB.Has(isInitializedKey)
}

func (s *initializedState) SetInitialized() error {
	return s.singletonDB.Put(isInitializedKey, nil)
}

// ConfigState holds on-chain config blobs such as the core code registry
// and the feature flags.
type ConfigState interface {
	// GetConfig returns nil if nothing is stored at [key].
	GetConfig(key []byte) ([]byte, error)
	PutConfig(key []byte, value []byte) error
}

type configState struct {
	configDB database.Database
}

func NewConfigState(db database.Database) ConfigState {
	return &configState{configDB: db}
}

func (s *configState) GetConfig(key []byte) ([]byte, error) {
	value, err := s.configDB.Get(key)
	if errors.Is(err, database.ErrNotFound) {
		return nil, nil
	}
	return value, err
}

func (s *configState) PutConfig(key []byte, value []byte) error {
	return s.configDB.Put(key, value)
}
