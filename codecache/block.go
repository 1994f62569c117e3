// (c) 2019-2020, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package codecache

import (
	"bytes"
	"errors"
	"fmt"
	"sort"

	"github.com/ava-labs/avalanchego/database"

	log "github.com/inconshreveable/log15"

	"github.com/ava-labs/codecache/sdk/blockcache"
	"github.com/ava-labs/codecache/sdk/versioned"
)

var (
	errBlockCommitted  = errors.New("block already committed")
	errPendingAtCommit = errors.New("module publish still pending at commit")
	// ErrVerification wraps verifier failures.
	ErrVerification = errors.New("verification failed")
)

// Block holds the caches used while executing one block in parallel. It is
// created by [Environment.NewBlock] and dropped after [Block.Commit].
type Block struct {
	height uint64
	env    *Environment
	vm     VM
	vmID   WarmVMID

	scripts   *blockcache.ScriptCache[ScriptHash, *ScriptEntry]
	modules   *blockcache.ModuleCache[ModuleID, *ModuleEntry]
	versioned *versioned.Storage[ModuleID, *ModuleEntry]

	committed bool
}

func newBlock(env *Environment, height uint64, vm VM, vmID WarmVMID) *Block {
	return &Block{
		height:    height,
		env:       env,
		vm:        vm,
		vmID:      vmID,
		scripts:   blockcache.NewScriptCache[ScriptHash, *ScriptEntry](env.config.ScriptCacheShards, env.cacheMetrics),
		modules:   blockcache.NewModuleCache[ModuleID, *ModuleEntry](env.config.ModuleCacheShards, env.cacheMetrics),
		versioned: versioned.NewStorage[ModuleID, *ModuleEntry](env.config.VersionedShards),
	}
}

func (b *Block) Height() uint64     { return b.height }
func (b *Block) VM() VM             { return b.vm }
func (b *Block) WarmVMID() WarmVMID { return b.vmID }

// Txn returns the view transaction [idx] executes against.
func (b *Block) Txn(idx versioned.TxnIndex) *TxnView {
	return &TxnView{block: b, index: idx}
}

// fetchDurable loads [id] from durable state and verifies it. Modules that
// reached durable state passed verification once, but the verifier is the
// only thing allowed to mark an entry verified.
func (b *Block) fetchDurable(id ModuleID) blockcache.Fetch[*ModuleEntry] {
	return func() (*ModuleEntry, bool, error) {
		m, err := b.env.state.GetModule(id)
		if errors.Is(err, database.ErrNotFound) {
			return nil, false, nil
		}
		if err != nil {
			return nil, false, fmt.Errorf("couldn't load module %s: %w", id, err)
		}
		if err := b.env.verifier.VerifyModule(m); err != nil {
			return nil, false, fmt.Errorf("%w: module %s: %v", ErrVerification, id, err)
		}
		return NewVerifiedEntry(m), true, nil
	}
}

// PreloadPackage loads every module of [pkg] published at [addr] into the
// module cache as one atomic step. Concurrent readers either see none of
// the package or all of it.
func (b *Block) PreloadPackage(addr Address, pkg *PackageMetadata) error {
	locked := b.modules.Lock()
	defer locked.Unlock()

	for _, id := range pkg.ModuleIDs(addr) {
		if _, _, err := locked.GetOrInsertWith(id, b.fetchDurable(id)); err != nil {
			return fmt.Errorf("couldn't preload package %s: %w", pkg.Name, err)
		}
	}
	return nil
}

// LoadedModules returns the ids of the modules under [addr] currently in the
// module cache, sorted by name.
func (b *Block) LoadedModules(addr Address) []ModuleID {
	var out []ModuleID
	blockcache.FilterInto(b.modules, &out,
		func(id ModuleID, _ *ModuleEntry) bool { return id.Address == addr },
		func(id ModuleID, _ *ModuleEntry) ModuleID { return id },
	)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// IsVerifiedStable reports whether [id] is in the module cache and verified.
// A true result holds for the rest of the block.
func (b *Block) IsVerifiedStable(id ModuleID) bool {
	return b.modules.ContainsAnd(id, (*ModuleEntry).IsVerified)
}

// Commit writes every module published in this block to durable state and
// commits it. Every pending publish must have been published or aborted.
// If writing fails, durable state is rolled back to the last commit. Warm
// VMs are dropped when a module at a reserved address is published.
// Returns the number of modules written.
func (b *Block) Commit() (int, error) {
	if b.committed {
		return 0, errBlockCommitted
	}

	var (
		published []*Module
		pending   []ModuleID
	)
	b.versioned.ForEachLatestWrite(func(id ModuleID, idx versioned.TxnIndex, e *ModuleEntry, exists bool) {
		if !exists {
			pending = append(pending, id)
			return
		}
		published = append(published, e.Module)
	})
	if len(pending) > 0 {
		return 0, fmt.Errorf("%w: %v", errPendingAtCommit, pending)
	}

	sort.Slice(published, func(i, j int) bool {
		return bytes.Compare(published[i].ID.Bytes(), published[j].ID.Bytes()) < 0
	})
	coreUpgraded := false
	for _, m := range published {
		if err := b.env.state.PutModule(m); err != nil {
			b.env.state.Abort()
			return 0, fmt.Errorf("couldn't write module %s: %w", m.ID, err)
		}
		coreUpgraded = coreUpgraded || m.ID.Address.IsReserved()
	}
	if err := b.env.state.Commit(); err != nil {
		log.Error("error while committing db", "err", err)
		b.env.state.Abort()
		return 0, err
	}
	b.committed = true

	// Warm VMs hold preloaded core modules. The registry may be unchanged.
	if coreUpgraded {
		dropped := b.env.FlushWarmVMs()
		log.Info("core modules upgraded, dropped warm vms", "height", b.height, "dropped", dropped)
	}
	log.Info("committed block", "height", b.height, "published", len(published), "vm", b.vmID)
	return len(published), nil
}
