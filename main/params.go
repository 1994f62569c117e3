// (c) 2019-2020, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	versionKey     = "version"
	httpHostKey    = "http-host"
	httpPortKey    = "http-port"
	genesisFileKey = "genesis-file"
	configFileKey  = "config-file"
	nativesKey     = "natives"
	logLevelKey    = "log-level"

	envPrefix = "CODECACHE"
)

type params struct {
	version  bool
	httpHost string
	httpPort uint16
	genesis  []byte
	config   []byte
	natives  []byte
	logLevel string
}

func buildFlagSet() *flag.FlagSet {
	fs := flag.NewFlagSet("codecache", flag.ContinueOnError)

	fs.Bool(versionKey, false, "If true, prints version and quit")
	fs.String(httpHostKey, "127.0.0.1", "Address the admin API listens on")
	fs.Uint(httpPortKey, 9660, "Port the admin API listens on")
	fs.String(genesisFileKey, "", "Genesis JSON loaded into an empty database")
	fs.String(configFileKey, "", "Node config JSON")
	fs.String(nativesKey, "", "Hex identity of the native function table")
	fs.String(logLevelKey, "", "Overrides the log level of the node config")

	return fs
}

// getViper returns the viper environment for the binary. Every flag can also
// be set as CODECACHE_<FLAG>.
func getViper() (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	fs := buildFlagSet()
	pflag.CommandLine.AddGoFlagSet(fs)
	pflag.Parse()
	if err := v.BindPFlags(pflag.CommandLine); err != nil {
		return nil, err
	}

	return v, nil
}

func getParams() (*params, error) {
	v, err := getViper()
	if err != nil {
		return nil, err
	}

	p := &params{
		version:  v.GetBool(versionKey),
		httpHost: v.GetString(httpHostKey),
		logLevel: v.GetString(logLevelKey),
	}
	port := v.GetUint(httpPortKey)
	if port > 0xffff {
		return nil, fmt.Errorf("invalid %s %d", httpPortKey, port)
	}
	p.httpPort = uint16(port)

	if p.natives, err = hex.DecodeString(strings.TrimPrefix(v.GetString(nativesKey), "0x")); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", nativesKey, err)
	}
	if p.genesis, err = readOptional(v.GetString(genesisFileKey)); err != nil {
		return nil, err
	}
	if p.config, err = readOptional(v.GetString(configFileKey)); err != nil {
		return nil, err
	}
	return p, nil
}

func readOptional(path string) ([]byte, error) {
	if path == "" {
		return nil, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("couldn't read %s: %w", path, err)
	}
	return b, nil
}
