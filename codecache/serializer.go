package codecache

import (
	"errors"
)

var (
	ErrInvalidModuleIDFormat = errors.New("invalid module id format")
)

// MarshalModuleID encodes [id] as its address followed by the raw name bytes.
// The encoding is used for shard selection and as the database key.
func MarshalModuleID(id ModuleID) []byte {
	raw := make([]byte, AddressLen+len(id.Name))
	work := raw

	copy(work, id.Address[:])
	work = work[AddressLen:]
	copy(work, id.Name)
	return raw
}

func UnmarshalModuleID(raw []byte) (ModuleID, error) {
	if len(raw) <= AddressLen {
		return ModuleID{}, ErrInvalidModuleIDFormat
	}
	var id ModuleID
	work := raw

	// Address
	copy(id.Address[:], work[:AddressLen])
	work = work[AddressLen:]

	// Name
	id.Name = string(work)
	return id, nil
}
