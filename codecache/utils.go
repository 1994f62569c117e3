// (c) 2019-2020, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package codecache

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// BytesToAddress converts a byte slice to an address. Short inputs are left
// padded, as in 0x1; inputs longer than [AddressLen] keep their last
// [AddressLen] bytes.
func BytesToAddress(input []byte) Address {
	var addr Address
	if len(input) > AddressLen {
		input = input[len(input)-AddressLen:]
	}
	copy(addr[AddressLen-len(input):], input)
	return addr
}

// ParseAddress parses a hex address with an optional 0x prefix. Short forms
// such as "0x1" are accepted.
func ParseAddress(s string) (Address, error) {
	s = strings.TrimPrefix(s, "0x")
	if len(s)%2 == 1 {
		s = "0" + s
	}
	if len(s) > 2*AddressLen {
		return Address{}, fmt.Errorf("%w: %q is longer than %d bytes", errBadAddress, s, AddressLen)
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return Address{}, fmt.Errorf("%w: %v", errBadAddress, err)
	}
	return BytesToAddress(b), nil
}

// ParseModuleID parses "<address>::<name>".
func ParseModuleID(s string) (ModuleID, error) {
	parts := strings.Split(s, "::")
	if len(parts) != 2 || parts[1] == "" {
		return ModuleID{}, fmt.Errorf("%w: %q", errBadModuleID, s)
	}
	addr, err := ParseAddress(parts[0])
	if err != nil {
		return ModuleID{}, err
	}
	return ModuleID{Address: addr, Name: parts[1]}, nil
}
