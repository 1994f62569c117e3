// (c) 2019-2020, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package codecache

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/ids"
	"github.com/gorilla/rpc/v2"
	"github.com/prometheus/client_golang/prometheus"

	log "github.com/inconshreveable/log15"

	cjson "github.com/ava-labs/avalanchego/utils/json"

	"github.com/ava-labs/codecache/sdk/blockcache"
	"github.com/ava-labs/codecache/sdk/warmvm"
)

const (
	Name = "codecache"
)

var (
	errNotInitialized     = errors.New("environment not initialized")
	errNoVMFactory        = errors.New("no vm factory configured")
	errMissingNatives     = errors.New("no native builder configured")
	errMissingVerifier    = errors.New("no verifier configured")
	errAlreadyInitialized = errors.New("environment already initialized")
)

// Environment owns everything that outlives a block: durable state, the warm
// VM cache and the node configuration. Blocks are created from it.
type Environment struct {
	config   Config
	state    State
	factory  VMFactory
	natives  NativeBuilder
	verifier Verifier

	warmVMs      *warmvm.Cache[VM]
	cacheMetrics *blockcache.Metrics
}

// Initialize this environment.
// [db] is the durable store the caches fall back to.
// The contents of [genesisBytes] are loaded if [db] is empty.
// [configBytes] is the JSON node config, or empty for defaults.
// Metrics are registered on [registerer].
func (e *Environment) Initialize(
	db database.Database,
	genesisBytes []byte,
	configBytes []byte,
	registerer prometheus.Registerer,
) error {
	if e.state != nil {
		return errAlreadyInitialized
	}
	config, err := ParseConfig(configBytes)
	if err != nil {
		return err
	}
	e.config = config
	log.Info("initializing code cache environment", "config", fmt.Sprintf("%+v", config))

	state, err := NewState(db, Name, registerer)
	if err != nil {
		return fmt.Errorf("couldn't create state: %w", err)
	}
	e.warmVMs, err = warmvm.New[VM](config.WarmVMCacheCapacity, Name, registerer)
	if err != nil {
		return fmt.Errorf("couldn't create warm vm cache: %w", err)
	}
	e.cacheMetrics, err = blockcache.NewMetrics(Name, registerer)
	if err != nil {
		return fmt.Errorf("couldn't create block cache metrics: %w", err)
	}

	initialized, err := state.IsInitialized()
	if err != nil {
		return err
	}
	if !initialized {
		genesis, err := ParseGenesis(genesisBytes)
		if err != nil {
			return err
		}
		if err := genesis.Load(state); err != nil {
			return fmt.Errorf("couldn't load genesis: %w", err)
		}
		if err := state.SetInitialized(); err != nil {
			return fmt.Errorf("error while setting db to initialized: %w", err)
		}
		if err := state.Commit(); err != nil {
			log.Error("error while committing db", "err", err)
			return err
		}
	}
	e.state = state
	return nil
}

// State returns the durable state.
func (e *Environment) State() State { return e.state }

// Config returns the node config in effect.
func (e *Environment) Config() Config { return e.config }

// Features reads the feature flags currently stored on chain.
func (e *Environment) Features() (Features, error) {
	if e.state == nil {
		return Features{}, errNotInitialized
	}
	b, err := e.state.GetConfig(FeaturesKey)
	if err != nil {
		return Features{}, err
	}
	features, err := ParseFeatures(b)
	if err != nil {
		return Features{}, fmt.Errorf("%w: malformed features: %v", ErrInvariantViolation, err)
	}
	return features, nil
}

// Fingerprint computes the WarmVMID for the current durable state.
func (e *Environment) Fingerprint() (WarmVMID, VMConfig, Features, error) {
	features, err := e.Features()
	if err != nil {
		return WarmVMID{}, VMConfig{}, Features{}, err
	}
	config := NewVMConfig(e.config, features)
	id, err := Fingerprint(e.natives, config, features, e.state)
	return id, config, features, err
}

// VM returns a warm VM for the current durable state, building and warming a
// new one if no VM with the same fingerprint is cached.
func (e *Environment) VM() (VM, WarmVMID, error) {
	if e.factory == nil {
		return nil, WarmVMID{}, errNoVMFactory
	}
	id, config, features, err := e.Fingerprint()
	if err != nil {
		return nil, WarmVMID{}, err
	}
	vm, err := e.warmVMs.GetOrCreate(ids.ID(id), func() (VM, error) {
		vm, err := e.factory.NewVM(e.natives, config, features)
		if err != nil {
			return nil, fmt.Errorf("couldn't build vm %s: %w", id, err)
		}
		warmUp(vm, e.state)
		log.Debug("built warm vm", "id", id)
		return vm, nil
	})
	if err != nil {
		return nil, WarmVMID{}, err
	}
	return vm, id, nil
}

// IsWarm reports whether a VM for [id] is cached.
func (e *Environment) IsWarm(id WarmVMID) bool {
	return e.warmVMs.Contains(ids.ID(id))
}

// FlushWarmVMs drops every warm VM and returns how many were dropped.
func (e *Environment) FlushWarmVMs() int {
	return e.warmVMs.Flush()
}

// NewBlock returns the caches for executing the block at [height].
func (e *Environment) NewBlock(height uint64) (*Block, error) {
	if e.state == nil {
		return nil, errNotInitialized
	}
	vm, id, err := e.VM()
	if err != nil {
		return nil, err
	}
	return newBlock(e, height, vm, id), nil
}

// CreateHandlers returns a map where:
// Keys: The path extension for this environment's API (empty in this case)
// Values: The handler for the API
func (e *Environment) CreateHandlers() (map[string]http.Handler, error) {
	server := rpc.NewServer()
	codec := cjson.NewCodec()
	server.RegisterCodec(codec, "application/json")
	server.RegisterCodec(codec, "application/json;charset=UTF-8")
	if err := server.RegisterService(&Service{env: e}, Name); err != nil {
		return nil, err
	}
	return map[string]http.Handler{
		"": server,
	}, nil
}

// Shutdown closes the durable state.
func (e *Environment) Shutdown() error {
	if e.state == nil {
		return nil
	}
	return e.state.Close()
}
