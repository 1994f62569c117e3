// (c) 2019-2020, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package codecache

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/ava-labs/avalanchego/api"
	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/formatting"

	cjson "github.com/ava-labs/avalanchego/utils/json"
	log "github.com/inconshreveable/log15"
)

var errModuleNotFound = errors.New("module not found")

// Service is the admin API of an [Environment].
type Service struct {
	env *Environment
}

// FlushWarmVMsReply is the reply from FlushWarmVMs
type FlushWarmVMsReply struct {
	Dropped cjson.Uint64 `json:"dropped"`
}

// FlushWarmVMs drops every warm VM. Call it after changing VM-affecting
// configuration that fingerprints don't capture.
func (s *Service) FlushWarmVMs(_ *http.Request, _ *struct{}, reply *FlushWarmVMsReply) error {
	log.Info("codecache: FlushWarmVMs called")
	reply.Dropped = cjson.Uint64(s.env.FlushWarmVMs())
	return nil
}

// WarmVMStatsReply is the reply from WarmVMStats
type WarmVMStatsReply struct {
	Size     cjson.Uint64 `json:"size"`
	Capacity cjson.Uint64 `json:"capacity"`
}

// WarmVMStats returns the occupancy of the warm VM cache
func (s *Service) WarmVMStats(_ *http.Request, _ *struct{}, reply *WarmVMStatsReply) error {
	reply.Size = cjson.Uint64(s.env.warmVMs.Len())
	reply.Capacity = cjson.Uint64(s.env.warmVMs.Capacity())
	return nil
}

// FingerprintReply is the reply from Fingerprint
type FingerprintReply struct {
	ID       ids.ID   `json:"id"`
	Warm     bool     `json:"warm"`
	Config   VMConfig `json:"config"`
	Features Features `json:"features"`
}

// Fingerprint returns the WarmVMID of the current durable state and whether
// a VM for it is cached
func (s *Service) Fingerprint(_ *http.Request, _ *struct{}, reply *FingerprintReply) error {
	id, config, features, err := s.env.Fingerprint()
	if err != nil {
		return err
	}
	reply.ID = ids.ID(id)
	reply.Warm = s.env.IsWarm(id)
	reply.Config = config
	reply.Features = features
	return nil
}

// GetModuleArgs are the arguments to GetModule
type GetModuleArgs struct {
	// ID is "<address>::<name>"
	ID string `json:"id"`
}

// GetModuleReply is the reply from GetModule
type GetModuleReply struct {
	Code     string              `json:"code"`
	Encoding formatting.Encoding `json:"encoding"`
	Hash     ids.ID              `json:"hash"`
}

// GetModule returns a module from durable state
func (s *Service) GetModule(_ *http.Request, args *GetModuleArgs, reply *GetModuleReply) error {
	id, err := ParseModuleID(args.ID)
	if err != nil {
		return err
	}
	m, err := s.env.state.GetModule(id)
	if errors.Is(err, database.ErrNotFound) {
		return fmt.Errorf("%w: %s", errModuleNotFound, id)
	}
	if err != nil {
		return err
	}
	code, err := formatting.EncodeWithChecksum(formatting.Hex, m.Code)
	if err != nil {
		return fmt.Errorf("couldn't encode code as string: %s", err)
	}
	reply.Code = code
	reply.Encoding = formatting.Hex
	reply.Hash = m.Hash()
	return nil
}

// ClearModuleStateCache drops the decoded modules cached in front of durable
// state
func (s *Service) ClearModuleStateCache(_ *http.Request, _ *struct{}, reply *api.SuccessResponse) error {
	log.Info("codecache: ClearModuleStateCache called")
	s.env.state.ClearCache()
	reply.Success = true
	return nil
}
