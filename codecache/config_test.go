// (c) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package codecache

import (
	"testing"

	log "github.com/inconshreveable/log15"
	"github.com/stretchr/testify/require"
)

func TestParseConfig(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    func(c *Config)
		wantErr bool
	}{
		{name: "empty"},
		{
			name:  "override",
			input: `{"warmVMCacheCapacity":2,"moduleCacheShards":64,"paranoidTypeChecks":true}`,
			want: func(c *Config) {
				c.WarmVMCacheCapacity = 2
				c.ModuleCacheShards = 64
				c.ParanoidTypeChecks = true
			},
		},
		{name: "negative", input: `{"scriptCacheShards":-1}`, wantErr: true},
		{name: "malformed", input: `{`, wantErr: true},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require := require.New(t)

			config, err := ParseConfig([]byte(test.input))
			if test.wantErr {
				require.Error(err)
				return
			}
			require.NoError(err)

			want := DefaultConfig()
			if test.want != nil {
				test.want(&want)
			}
			require.Equal(want, config)
		})
	}
}

func TestConfigLevel(t *testing.T) {
	require := require.New(t)

	lvl, err := DefaultConfig().Level()
	require.NoError(err)
	require.Equal(log.LvlInfo, lvl)

	lvl, err = Config{LogLevel: "debug"}.Level()
	require.NoError(err)
	require.Equal(log.LvlDebug, lvl)

	_, err = Config{LogLevel: "loud"}.Level()
	require.Error(err)
}
