// (c) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package codecache

import (
	"errors"
	"fmt"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/hashing"
)

// ErrInvariantViolation is returned when the on-chain state a VM would be
// built from is malformed. The VM is not built and nothing is cached.
var ErrInvariantViolation = errors.New("vm invariant violation")

// WarmVMID fingerprints everything that determines how a VM behaves. Two VMs
// built from configurations with equal fingerprints are interchangeable.
type WarmVMID ids.ID

func (id WarmVMID) String() string { return ids.ID(id).String() }

// VMConfig is the VM configuration that is fixed for the life of a VM.
type VMConfig struct {
	MaxBinaryFormatVersion uint32 `serialize:"true"`
	MaxValueNestDepth      uint64 `serialize:"true"`
	TypeMaxCost            uint64 `serialize:"true"`
	ParanoidTypeChecks     bool   `serialize:"true"`
}

const (
	binaryFormatVersion       = 6
	latestBinaryFormatVersion = 7
)

// NewVMConfig derives the VM configuration from node config and features.
func NewVMConfig(config Config, features Features) VMConfig {
	c := VMConfig{
		MaxBinaryFormatVersion: binaryFormatVersion,
		MaxValueNestDepth:      config.MaxValueNestDepth,
		TypeMaxCost:            config.TypeMaxCost,
		ParanoidTypeChecks:     config.ParanoidTypeChecks,
	}
	if features.LatestBinaryFormat {
		c.MaxBinaryFormatVersion = latestBinaryFormatVersion
	}
	return c
}

// warmVMPreimage is hashed to produce a WarmVMID. Registry presence is
// encoded on its own so a missing registry never collides with an empty one.
type warmVMPreimage struct {
	Natives            []byte `serialize:"true"`
	Config             []byte `serialize:"true"`
	HasRegistry        bool   `serialize:"true"`
	Registry           []byte `serialize:"true"`
	LatestBinaryFormat bool   `serialize:"true"`
	InjectSigners      bool   `serialize:"true"`
}

// Fingerprint computes the WarmVMID for a VM built from [natives], [config]
// and [features] against the core code registry [resolver] returns.
//
// A resolver failure, an undecodable registry, or a core package depending
// on code outside the reserved addresses is an [ErrInvariantViolation]: a VM
// warmed against the wrong core code must never be cached.
func Fingerprint(natives NativeBuilder, config VMConfig, features Features, resolver Resolver) (WarmVMID, error) {
	configBytes, err := Codec.Marshal(CodecVersion, &config)
	if err != nil {
		return WarmVMID{}, fmt.Errorf("%w: couldn't serialize vm config: %v", ErrInvariantViolation, err)
	}

	registryBytes, err := resolver.FetchConfigBytes(CodeRegistryKey)
	if err != nil {
		return WarmVMID{}, fmt.Errorf("%w: couldn't read core code registry: %v", ErrInvariantViolation, err)
	}
	if registryBytes != nil {
		registry, err := ParsePackageRegistry(registryBytes)
		if err != nil {
			return WarmVMID{}, fmt.Errorf("%w: malformed core code registry: %v", ErrInvariantViolation, err)
		}
		if err := registry.checkCoreOnly(); err != nil {
			return WarmVMID{}, fmt.Errorf("%w: %v", ErrInvariantViolation, err)
		}
	}

	preimage := warmVMPreimage{
		Natives:            natives.Identity(),
		Config:             configBytes,
		HasRegistry:        registryBytes != nil,
		Registry:           registryBytes,
		LatestBinaryFormat: features.LatestBinaryFormat,
		InjectSigners:      features.InjectSigners,
	}
	preimageBytes, err := Codec.Marshal(CodecVersion, &preimage)
	if err != nil {
		return WarmVMID{}, fmt.Errorf("%w: couldn't serialize fingerprint: %v", ErrInvariantViolation, err)
	}
	return WarmVMID(hashing.ComputeHash256Array(preimageBytes)), nil
}
