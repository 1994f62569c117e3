// (c) 2019-2020, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package codecache

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseModuleID(t *testing.T) {
	require := require.New(t)

	id, err := ParseModuleID("0x1::coin")
	require.NoError(err)
	require.Equal(coinID, id)
	require.Equal("0x1::coin", id.String())

	id, err = ParseModuleID("cafe::token")
	require.NoError(err)
	require.Equal(BytesToAddress([]byte{0xca, 0xfe}), id.Address)

	for _, bad := range []string{"", "0x1", "0x1::", "0xzz::coin", "0x1::a::b"} {
		_, err := ParseModuleID(bad)
		require.Error(err, bad)
	}
}

func TestModuleIDBytes(t *testing.T) {
	require := require.New(t)

	id, err := UnmarshalModuleID(coinID.Bytes())
	require.NoError(err)
	require.Equal(coinID, id)

	_, err = UnmarshalModuleID(SystemAddress[:])
	require.ErrorIs(err, ErrInvalidModuleIDFormat)
}

func TestAddressReserved(t *testing.T) {
	require := require.New(t)

	require.True(Address{}.IsReserved())
	require.True(SystemAddress.IsReserved())
	require.True(BytesToAddress([]byte{0x0f}).IsReserved())
	require.False(BytesToAddress([]byte{0x10}).IsReserved())
	require.False(BytesToAddress([]byte{0x01, 0x00}).IsReserved())
}

func TestAddressJSON(t *testing.T) {
	require := require.New(t)

	b, err := json.Marshal(PackageDep{Address: SystemAddress, Name: "std"})
	require.NoError(err)
	require.JSONEq(`{"address":"0x1","name":"std"}`, string(b))

	var dep PackageDep
	require.NoError(json.Unmarshal(b, &dep))
	require.Equal(SystemAddress, dep.Address)
}
