// (c) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package codecache

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func registryBytes(t *testing.T, r *PackageRegistry) []byte {
	b, err := Codec.Marshal(CodecVersion, r)
	require.NoError(t, err)
	return b
}

func resolverWithRegistry(b []byte) *mapResolver {
	r := &mapResolver{config: map[string][]byte{}}
	if b != nil {
		r.config[string(CodeRegistryKey)] = b
	}
	return r
}

func TestFingerprintDeterministic(t *testing.T) {
	require := require.New(t)

	config := NewVMConfig(DefaultConfig(), Features{})
	resolver := resolverWithRegistry(registryBytes(t, &PackageRegistry{}))

	id1, err := Fingerprint(testNatives, config, Features{}, resolver)
	require.NoError(err)
	id2, err := Fingerprint(StaticNatives("natives-v1"), config, Features{}, resolver)
	require.NoError(err)
	require.Equal(id1, id2)
}

func TestFingerprintInputsChangeID(t *testing.T) {
	require := require.New(t)

	base := NewVMConfig(DefaultConfig(), Features{})
	registry := resolverWithRegistry(registryBytes(t, &PackageRegistry{}))

	id, err := Fingerprint(testNatives, base, Features{}, registry)
	require.NoError(err)

	otherNatives, err := Fingerprint(StaticNatives("natives-v2"), base, Features{}, registry)
	require.NoError(err)
	require.NotEqual(id, otherNatives)

	deeper := base
	deeper.MaxValueNestDepth++
	otherConfig, err := Fingerprint(testNatives, deeper, Features{}, registry)
	require.NoError(err)
	require.NotEqual(id, otherConfig)

	otherFeatures, err := Fingerprint(testNatives, base, Features{InjectSigners: true}, registry)
	require.NoError(err)
	require.NotEqual(id, otherFeatures)

	noRegistry, err := Fingerprint(testNatives, base, Features{}, resolverWithRegistry(nil))
	require.NoError(err)
	require.NotEqual(id, noRegistry)

	upgraded := resolverWithRegistry(registryBytes(t, &PackageRegistry{Packages: []PackageMetadata{{
		Name:          "framework",
		UpgradeNumber: 1,
		Modules:       []string{"account"},
	}}}))
	otherRegistry, err := Fingerprint(testNatives, base, Features{}, upgraded)
	require.NoError(err)
	require.NotEqual(id, otherRegistry)
}

func TestFingerprintLatestBinaryFormat(t *testing.T) {
	require := require.New(t)

	require.EqualValues(binaryFormatVersion, NewVMConfig(DefaultConfig(), Features{}).MaxBinaryFormatVersion)
	require.EqualValues(latestBinaryFormatVersion,
		NewVMConfig(DefaultConfig(), Features{LatestBinaryFormat: true}).MaxBinaryFormatVersion)
}

func TestFingerprintReservedDeps(t *testing.T) {
	tests := []struct {
		name    string
		dep     Address
		wantErr bool
	}{
		{name: "0x1", dep: SystemAddress},
		{name: "0x0", dep: Address{}},
		{name: "0xf", dep: BytesToAddress([]byte{0x0f})},
		{name: "0x10", dep: BytesToAddress([]byte{0x10}), wantErr: true},
		{name: "high byte", dep: BytesToAddress([]byte{0x01, 0x00}), wantErr: true},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require := require.New(t)

			registry := &PackageRegistry{Packages: []PackageMetadata{{
				Name:    "framework",
				Modules: []string{"account"},
				Deps:    []PackageDep{{Address: test.dep, Name: "dep"}},
			}}}
			_, err := Fingerprint(testNatives, VMConfig{}, Features{}, resolverWithRegistry(registryBytes(t, registry)))
			if test.wantErr {
				require.ErrorIs(err, ErrInvariantViolation)
			} else {
				require.NoError(err)
			}
		})
	}
}

func TestFingerprintResolverError(t *testing.T) {
	_, err := Fingerprint(testNatives, VMConfig{}, Features{}, &mapResolver{err: errResolver})
	require.ErrorIs(t, err, ErrInvariantViolation)
}

func TestFingerprintMalformedRegistry(t *testing.T) {
	_, err := Fingerprint(testNatives, VMConfig{}, Features{}, resolverWithRegistry([]byte{0xff}))
	require.ErrorIs(t, err, ErrInvariantViolation)
}
