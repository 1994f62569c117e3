// (c) 2019-2020, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package codecache

import (
	log "github.com/inconshreveable/log15"
)

// Resolver reads on-chain state the VM is configured from.
type Resolver interface {
	// FetchConfigBytes returns the on-chain config stored at [key], or nil
	// if there is none.
	FetchConfigBytes(key []byte) ([]byte, error)
	// FetchModuleBytes returns the serialized module [id], or nil if it
	// hasn't been published.
	FetchModuleBytes(id ModuleID) ([]byte, error)
}

// NativeBuilder builds the native function table a VM links against.
type NativeBuilder interface {
	// Identity is a stable serialization of the native table. Builders
	// producing the same table must return the same bytes.
	Identity() []byte
}

// StaticNatives is a NativeBuilder whose identity is fixed up front.
type StaticNatives []byte

func (n StaticNatives) Identity() []byte { return n }

// VM is a ready-to-run execution environment. A VM is shared by every block
// whose configuration has the same WarmVMID, so it must be safe for
// concurrent use and is never reconfigured after it is built.
type VM interface {
	// LoadModule loads [id] through [resolver] into the VM's own loader.
	LoadModule(id ModuleID, resolver Resolver) error
}

// VMFactory builds cold VMs.
type VMFactory interface {
	NewVM(natives NativeBuilder, config VMConfig, features Features) (VM, error)
}

// Verifier runs bytecode verification.
type Verifier interface {
	VerifyModule(m *Module) error
	VerifyScript(code []byte) error
}

// warmUpModules are loaded into every new VM. Almost every transaction
// touches them in its prologue.
var warmUpModules = []ModuleID{
	{Address: SystemAddress, Name: "account"},
	{Address: SystemAddress, Name: "transaction_validation"},
}

// warmUp preloads [warmUpModules]. A VM that fails to warm up is still
// correct, only slower on first use, so errors are logged and dropped.
func warmUp(vm VM, resolver Resolver) {
	for _, id := range warmUpModules {
		if err := vm.LoadModule(id, resolver); err != nil {
			log.Warn("failed to warm up vm", "module", id, "err", err)
		}
	}
}
