// (c) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package codecache

import (
	"fmt"
)

var (
	// CodeRegistryKey is where the registry of core packages published at
	// [SystemAddress] is stored.
	CodeRegistryKey = []byte("0x1::code::PackageRegistry")
	// FeaturesKey is where the on-chain feature flags are stored.
	FeaturesKey = []byte("0x1::features::Features")
)

// PackageDep points at a package another package depends on.
type PackageDep struct {
	Address Address `serialize:"true" json:"address"`
	Name    string  `serialize:"true" json:"name"`
}

// PackageMetadata describes one published package.
type PackageMetadata struct {
	Name          string       `serialize:"true" json:"name"`
	UpgradeNumber uint64       `serialize:"true" json:"upgradeNumber"`
	Modules       []string     `serialize:"true" json:"modules"`
	Deps          []PackageDep `serialize:"true" json:"deps"`
}

// ModuleIDs returns the ids of the package's modules published at [addr].
func (p *PackageMetadata) ModuleIDs(addr Address) []ModuleID {
	out := make([]ModuleID, len(p.Modules))
	for i, name := range p.Modules {
		out[i] = ModuleID{Address: addr, Name: name}
	}
	return out
}

// PackageRegistry lists the packages published under one account.
type PackageRegistry struct {
	Packages []PackageMetadata `serialize:"true" json:"packages"`
}

// ParsePackageRegistry decodes registry bytes as stored on chain.
func ParsePackageRegistry(b []byte) (*PackageRegistry, error) {
	registry := &PackageRegistry{}
	if _, err := Codec.Unmarshal(b, registry); err != nil {
		return nil, err
	}
	return registry, nil
}

// checkCoreOnly fails if any package in the core registry depends on a
// package outside the reserved addresses.
func (r *PackageRegistry) checkCoreOnly() error {
	for _, pkg := range r.Packages {
		for _, dep := range pkg.Deps {
			if !dep.Address.IsReserved() {
				return fmt.Errorf("core package %s depends on %s::%s outside reserved addresses",
					pkg.Name, dep.Address, dep.Name)
			}
		}
	}
	return nil
}

// Features are the on-chain flags that change how the VM is built.
type Features struct {
	// LatestBinaryFormat enables the newest bytecode format version.
	LatestBinaryFormat bool `serialize:"true" json:"latestBinaryFormat"`
	// InjectSigners lets entry functions take signer arguments implicitly.
	InjectSigners bool `serialize:"true" json:"injectSigners"`
}

// ParseFeatures decodes feature bytes as stored on chain. Missing bytes mean
// every feature is off.
func ParseFeatures(b []byte) (Features, error) {
	var f Features
	if len(b) == 0 {
		return f, nil
	}
	_, err := Codec.Unmarshal(b, &f)
	return f, err
}
