// (c) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package versioned

// ReadKind is the outcome of a versioned read.
type ReadKind uint8

const (
	// DoesNotExist means the reader sees no module: nothing was recorded
	// below its index, the latest write below it is still pending, or
	// storage reported the module missing.
	DoesNotExist ReadKind = iota
	// Versioned means the reader sees the value written at Index.
	Versioned
)

func (k ReadKind) String() string {
	switch k {
	case Versioned:
		return "versioned"
	case DoesNotExist:
		return "does-not-exist"
	default:
		return "unknown"
	}
}

// Read is what a transaction observes for one key.
type Read[V any] struct {
	Kind  ReadKind
	Index ShiftedTxnIndex
	Value V
}

// Exists reports whether the read produced a value.
func (r Read[V]) Exists() bool { return r.Kind == Versioned }

func versionedRead[V any](idx ShiftedTxnIndex, v V) Read[V] {
	return Read[V]{Kind: Versioned, Index: idx, Value: v}
}

func doesNotExist[V any]() Read[V] {
	return Read[V]{Kind: DoesNotExist}
}
