// (c) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package versioned

import "fmt"

// TxnIndex is the position of a transaction in its block.
type TxnIndex = uint32

// ShiftedTxnIndex orders the durable base version and every in-block write on
// one axis: 0 is the base version read from storage and transaction i writes
// at i+1.
type ShiftedTxnIndex uint64

// BaseIndex is the shifted index of the pre-block value.
const BaseIndex ShiftedTxnIndex = 0

// Shift returns the shifted index of the write made by transaction [idx].
func Shift(idx TxnIndex) ShiftedTxnIndex {
	return ShiftedTxnIndex(idx) + 1
}

// IsBase reports whether [s] refers to the durable base version.
func (s ShiftedTxnIndex) IsBase() bool { return s == BaseIndex }

// TxnIndex returns the transaction that wrote at [s]. ok is false for the base
// version.
func (s ShiftedTxnIndex) TxnIndex() (idx TxnIndex, ok bool) {
	if s == BaseIndex {
		return 0, false
	}
	return TxnIndex(s - 1), true
}

func (s ShiftedTxnIndex) String() string {
	if idx, ok := s.TxnIndex(); ok {
		return fmt.Sprintf("txn(%d)", idx)
	}
	return "base"
}
