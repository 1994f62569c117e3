// (c) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package codecache

import (
	"fmt"

	"github.com/ava-labs/codecache/sdk/versioned"
)

// TxnView is what one transaction sees of the block's code. Modules written
// earlier in the block are read from the versioned storage, everything else
// from the module cache, and both fall back to durable state.
//
// Publishing goes through three hooks: [TxnView.RecordPending] while the
// transaction executes, then [TxnView.Publish] once it commits or
// [TxnView.Abort] if it is re-executed.
type TxnView struct {
	block *Block
	index versioned.TxnIndex
}

func (t *TxnView) Index() versioned.TxnIndex { return t.index }

// GetModule returns the module [id] as this transaction sees it, or nil if
// it does not exist. The entry may not be verified.
func (t *TxnView) GetModule(id ModuleID) (*ModuleEntry, error) {
	entry, _, err := t.getModule(id)
	return entry, err
}

// getModule also returns the index the entry was read at when it came from
// the versioned storage.
func (t *TxnView) getModule(id ModuleID) (*ModuleEntry, versioned.ShiftedTxnIndex, error) {
	b := t.block
	if b.versioned.Contains(id) {
		r, err := b.versioned.GetOrElse(id, t.index, versioned.Fetch[*ModuleEntry](b.fetchDurable(id)))
		if err != nil {
			return nil, versioned.BaseIndex, err
		}
		if !r.Exists() {
			return nil, versioned.BaseIndex, nil
		}
		return r.Value, r.Index, nil
	}

	entry, ok, err := b.modules.GetOrInsertWith(id, b.fetchDurable(id))
	if err != nil || !ok {
		return nil, versioned.BaseIndex, err
	}
	return entry, versioned.BaseIndex, nil
}

// GetVerifiedModule is like [TxnView.GetModule] but verifies the module
// first if needed. A module published earlier in the block is verified here,
// and the verified entry replaces the published one for later readers as
// long as that write is still the one that was read.
func (t *TxnView) GetVerifiedModule(id ModuleID) (*ModuleEntry, error) {
	entry, idx, err := t.getModule(id)
	if err != nil || entry == nil {
		return nil, err
	}
	if entry.IsVerified() {
		return entry, nil
	}

	if err := t.block.env.verifier.VerifyModule(entry.Module); err != nil {
		return nil, fmt.Errorf("%w: module %s: %v", ErrVerification, id, err)
	}
	verified := NewVerifiedEntry(entry.Module)
	if writer, ok := idx.TxnIndex(); ok {
		// The writer may have been aborted or re-executed since the read.
		t.block.versioned.UpgradeIf(id, writer, verified, func(current *ModuleEntry) bool {
			return current == entry
		})
	}
	return verified, nil
}

// RecordPending marks [ids] as being published by this transaction.
func (t *TxnView) RecordPending(ids ...ModuleID) {
	for _, id := range ids {
		t.block.versioned.WritePending(id, t.index)
	}
}

// Publish makes [modules] visible to later transactions. Each module must
// have been recorded with [TxnView.RecordPending].
func (t *TxnView) Publish(modules ...*Module) {
	for _, m := range modules {
		t.block.versioned.WritePublished(m.ID, t.index, NewDeserializedEntry(m))
	}
}

// Abort discards this transaction's pending or published writes of [ids].
func (t *TxnView) Abort(ids ...ModuleID) {
	for _, id := range ids {
		t.block.versioned.Remove(id, t.index)
	}
}

// GetScript returns the cached entry for [code], deserializing it on a miss.
func (t *TxnView) GetScript(code []byte) *ScriptEntry {
	hash := HashScript(code)
	if s, ok := t.block.scripts.Get(hash); ok {
		return s
	}
	s := &ScriptEntry{Hash: hash, Code: code}
	t.block.scripts.Insert(hash, s)
	return s
}

// GetVerifiedScript returns a verified entry for [code].
func (t *TxnView) GetVerifiedScript(code []byte) (*ScriptEntry, error) {
	s := t.GetScript(code)
	if s.Verified {
		return s, nil
	}
	if err := t.block.env.verifier.VerifyScript(code); err != nil {
		return nil, fmt.Errorf("%w: script %s: %v", ErrVerification, s.Hash, err)
	}
	verified := &ScriptEntry{Hash: s.Hash, Code: s.Code, Verified: true}
	t.block.scripts.Insert(s.Hash, verified)
	return verified, nil
}
