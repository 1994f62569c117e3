// (c) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package codecache

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/hashing"

	"github.com/ava-labs/codecache/sdk/versioned"
)

// AddressLen is the length of an account address in bytes.
const AddressLen = 32

var (
	errBadAddress  = errors.New("invalid address")
	errBadModuleID = errors.New("invalid module id")

	// SystemAddress hosts the core framework and the code registry.
	SystemAddress = Address{AddressLen - 1: 0x1}

	_ versioned.Entry = (*ModuleEntry)(nil)
)

// Address is an account address.
type Address [AddressLen]byte

// IsReserved reports whether [a] is one of the reserved framework addresses
// 0x0 through 0xf.
func (a Address) IsReserved() bool {
	for _, b := range a[:AddressLen-1] {
		if b != 0 {
			return false
		}
	}
	return a[AddressLen-1] < 0x10
}

// String returns the short hex form, e.g. 0x1.
func (a Address) String() string {
	s := strings.TrimLeft(hex.EncodeToString(a[:]), "0")
	if s == "" {
		s = "0"
	}
	return "0x" + s
}

func (a Address) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// ModuleID names a module: the account it is published under and its name.
type ModuleID struct {
	Address Address `serialize:"true"`
	Name    string  `serialize:"true"`
}

// Bytes is the canonical key encoding of the module id.
func (id ModuleID) Bytes() []byte { return MarshalModuleID(id) }

func (id ModuleID) String() string {
	return fmt.Sprintf("%s::%s", id.Address, id.Name)
}

// Module is a unit of compiled contract bytecode.
type Module struct {
	ID   ModuleID `serialize:"true"`
	Code []byte   `serialize:"true"`

	hash ids.ID
}

// NewModule returns a module for [code] published at [id].
func NewModule(id ModuleID, code []byte) *Module {
	m := &Module{ID: id, Code: code}
	m.initialize()
	return m
}

func (m *Module) initialize() {
	m.hash = ids.ID(hashing.ComputeHash256Array(m.Code))
}

// Hash returns the hash of the module's code.
func (m *Module) Hash() ids.ID { return m.hash }

// ModuleEntry is a module as the caches hand it out. Entries are shared by
// pointer between every reader that saw them and never copied.
type ModuleEntry struct {
	Module   *Module
	Verified bool
}

// NewDeserializedEntry wraps a module that was decoded but not verified.
func NewDeserializedEntry(m *Module) *ModuleEntry {
	return &ModuleEntry{Module: m}
}

// NewVerifiedEntry wraps a module that passed verification.
func NewVerifiedEntry(m *Module) *ModuleEntry {
	return &ModuleEntry{Module: m, Verified: true}
}

func (e *ModuleEntry) IsVerified() bool { return e.Verified }

// ScriptHash is the content hash of a script.
type ScriptHash ids.ID

// HashScript returns the content hash of [code].
func HashScript(code []byte) ScriptHash {
	return ScriptHash(hashing.ComputeHash256Array(code))
}

func (h ScriptHash) Bytes() []byte { return h[:] }

func (h ScriptHash) String() string { return ids.ID(h).String() }

// ScriptEntry is a deserialized or verified script.
type ScriptEntry struct {
	Hash     ScriptHash
	Code     []byte
	Verified bool
}
