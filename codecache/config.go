// (c) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package codecache

import (
	"encoding/json"
	"fmt"

	log "github.com/inconshreveable/log15"

	"github.com/ava-labs/codecache/sdk/concurrent"
	"github.com/ava-labs/codecache/sdk/warmvm"
)

const (
	defaultMaxValueNestDepth = 128
	defaultTypeMaxCost       = 5000
	defaultLogLevel          = "info"
)

// Config is the node-side configuration of the code caches. Zero fields take
// their defaults.
type Config struct {
	WarmVMCacheCapacity int    `json:"warmVMCacheCapacity"`
	ModuleCacheShards   int    `json:"moduleCacheShards"`
	ScriptCacheShards   int    `json:"scriptCacheShards"`
	VersionedShards     int    `json:"versionedShards"`
	MaxValueNestDepth   uint64 `json:"maxValueNestDepth"`
	TypeMaxCost         uint64 `json:"typeMaxCost"`
	ParanoidTypeChecks  bool   `json:"paranoidTypeChecks"`
	LogLevel            string `json:"logLevel"`
}

// DefaultConfig returns the configuration used when none is supplied.
func DefaultConfig() Config {
	return Config{
		WarmVMCacheCapacity: warmvm.DefaultCapacity,
		ModuleCacheShards:   concurrent.DefaultShardCount,
		ScriptCacheShards:   concurrent.DefaultShardCount,
		VersionedShards:     concurrent.DefaultShardCount,
		MaxValueNestDepth:   defaultMaxValueNestDepth,
		TypeMaxCost:         defaultTypeMaxCost,
		LogLevel:            defaultLogLevel,
	}
}

// ParseConfig decodes [b] over the defaults. Empty input yields the defaults.
func ParseConfig(b []byte) (Config, error) {
	config := DefaultConfig()
	if len(b) == 0 {
		return config, nil
	}
	if err := json.Unmarshal(b, &config); err != nil {
		return Config{}, fmt.Errorf("couldn't parse config: %w", err)
	}
	if config.WarmVMCacheCapacity < 0 || config.ModuleCacheShards < 0 ||
		config.ScriptCacheShards < 0 || config.VersionedShards < 0 {
		return Config{}, fmt.Errorf("couldn't parse config: negative size in %s", b)
	}
	return config, nil
}

// Level returns the configured log level.
func (c Config) Level() (log.Lvl, error) {
	if c.LogLevel == "" {
		return log.LvlInfo, nil
	}
	return log.LvlFromString(c.LogLevel)
}
