// (c) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package codecache

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	log "github.com/inconshreveable/log15"
)

var errDuplicateGenesisModule = errors.New("duplicate genesis module")

// GenesisModule is a module published at genesis. Code is 0x-prefixed hex.
type GenesisModule struct {
	ID   string `json:"id"`
	Code string `json:"code"`
}

// Genesis is the initial durable state: the core modules, the registry
// describing them and the starting feature flags. A nil Registry means no
// registry is stored.
type Genesis struct {
	Modules  []GenesisModule  `json:"modules"`
	Registry *PackageRegistry `json:"registry,omitempty"`
	Features Features         `json:"features"`
}

// ParseGenesis decodes genesis JSON.
func ParseGenesis(b []byte) (*Genesis, error) {
	genesis := &Genesis{}
	if len(b) == 0 {
		return genesis, nil
	}
	if err := json.Unmarshal(b, genesis); err != nil {
		return nil, fmt.Errorf("couldn't parse genesis: %w", err)
	}
	return genesis, nil
}

// Load writes the genesis contents into [s] without committing.
func (g *Genesis) Load(s State) error {
	seen := make(map[ModuleID]struct{}, len(g.Modules))
	for _, gm := range g.Modules {
		id, err := ParseModuleID(gm.ID)
		if err != nil {
			return err
		}
		if _, ok := seen[id]; ok {
			return fmt.Errorf("%w: %s", errDuplicateGenesisModule, id)
		}
		seen[id] = struct{}{}

		code, err := hex.DecodeString(strings.TrimPrefix(gm.Code, "0x"))
		if err != nil {
			return fmt.Errorf("couldn't decode code of %s: %w", id, err)
		}
		if err := s.PutModule(NewModule(id, code)); err != nil {
			return err
		}
	}

	if g.Registry != nil {
		registryBytes, err := Codec.Marshal(CodecVersion, g.Registry)
		if err != nil {
			return err
		}
		if err := s.PutConfig(CodeRegistryKey, registryBytes); err != nil {
			return err
		}
	}

	featureBytes, err := Codec.Marshal(CodecVersion, &g.Features)
	if err != nil {
		return err
	}
	if err := s.PutConfig(FeaturesKey, featureBytes); err != nil {
		return err
	}
	log.Info("loaded genesis", "modules", len(g.Modules), "registry", g.Registry != nil)
	return nil
}
