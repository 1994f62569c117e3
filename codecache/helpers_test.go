// (c) 2019-2020, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package codecache

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/database/memdb"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

var (
	errBadCode      = errors.New("bad code")
	errNotPublished = errors.New("module not published")
	errResolver     = errors.New("resolver unavailable")
	errDiskFull     = errors.New("disk full")

	testNatives = StaticNatives("natives-v1")

	coinID    = ModuleID{Address: SystemAddress, Name: "coin"}
	accountID = ModuleID{Address: SystemAddress, Name: "account"}
	txnValID  = ModuleID{Address: SystemAddress, Name: "transaction_validation"}
)

type testVM struct {
	lock   sync.Mutex
	loaded []ModuleID
	config VMConfig
}

func (vm *testVM) LoadModule(id ModuleID, resolver Resolver) error {
	b, err := resolver.FetchModuleBytes(id)
	if err != nil {
		return err
	}
	if b == nil {
		return errNotPublished
	}
	vm.lock.Lock()
	defer vm.lock.Unlock()
	vm.loaded = append(vm.loaded, id)
	return nil
}

func (vm *testVM) Loaded() []ModuleID {
	vm.lock.Lock()
	defer vm.lock.Unlock()
	return append([]ModuleID(nil), vm.loaded...)
}

type testVMFactory struct {
	lock   sync.Mutex
	builds int
	err    error
}

func (f *testVMFactory) NewVM(_ NativeBuilder, config VMConfig, _ Features) (VM, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.builds++
	return &testVM{config: config}, nil
}

func (f *testVMFactory) Builds() int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.builds
}

// testVerifier rejects any code starting with "bad".
// [onVerify], if set, runs once for the first module it matches.
type testVerifier struct {
	lock        sync.Mutex
	moduleCalls int
	scriptCalls int
	onVerify    func(m *Module) bool
}

func (v *testVerifier) VerifyModule(m *Module) error {
	v.lock.Lock()
	v.moduleCalls++
	hook := v.onVerify
	v.lock.Unlock()
	if hook != nil && hook(m) {
		v.lock.Lock()
		v.onVerify = nil
		v.lock.Unlock()
	}
	if bytes.HasPrefix(m.Code, []byte("bad")) {
		return errBadCode
	}
	return nil
}

func (v *testVerifier) VerifyScript(code []byte) error {
	v.lock.Lock()
	v.scriptCalls++
	v.lock.Unlock()
	if bytes.HasPrefix(code, []byte("bad")) {
		return errBadCode
	}
	return nil
}

func (v *testVerifier) ModuleCalls() int {
	v.lock.Lock()
	defer v.lock.Unlock()
	return v.moduleCalls
}

func (v *testVerifier) ScriptCalls() int {
	v.lock.Lock()
	defer v.lock.Unlock()
	return v.scriptCalls
}

// mapResolver serves config and modules from maps.
type mapResolver struct {
	config  map[string][]byte
	modules map[ModuleID][]byte
	err     error
}

func (r *mapResolver) FetchConfigBytes(key []byte) ([]byte, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.config[string(key)], nil
}

func (r *mapResolver) FetchModuleBytes(id ModuleID) ([]byte, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.modules[id], nil
}

func hexCode(s string) string { return "0x" + hex.EncodeToString([]byte(s)) }

func testGenesis(t *testing.T, modules map[ModuleID]string, registry *PackageRegistry, features Features) []byte {
	g := Genesis{Registry: registry, Features: features}
	for id, code := range modules {
		g.Modules = append(g.Modules, GenesisModule{ID: id.String(), Code: hexCode(code)})
	}
	b, err := json.Marshal(g)
	require.NoError(t, err)
	return b
}

func coreGenesis(t *testing.T) []byte {
	return testGenesis(t,
		map[ModuleID]string{
			accountID: "account-v1",
			txnValID:  "txn-validation-v1",
			coinID:    "coin-v1",
		},
		&PackageRegistry{Packages: []PackageMetadata{{
			Name:    "framework",
			Modules: []string{"account", "transaction_validation", "coin"},
		}}},
		Features{},
	)
}

type testEnv struct {
	env      *Environment
	factory  *testVMFactory
	verifier *testVerifier
}

func newTestEnv(t *testing.T, genesis []byte) *testEnv {
	return newTestEnvWithDB(t, memdb.New(), genesis)
}

func newTestEnvWithDB(t *testing.T, db database.Database, genesis []byte) *testEnv {
	require := require.New(t)

	vms := &testVMFactory{}
	verifier := &testVerifier{}
	env, err := (&Factory{VMs: vms, Natives: testNatives, Verifier: verifier}).New()
	require.NoError(err)
	require.NoError(env.Initialize(db, genesis, nil, prometheus.NewRegistry()))
	t.Cleanup(func() { _ = env.Shutdown() })

	return &testEnv{env: env, factory: vms, verifier: verifier}
}

// failingDB fails batch writes while [fail] is set.
type failingDB struct {
	*memdb.Database
	fail *atomic.Bool
}

func newFailingDB() *failingDB {
	return &failingDB{Database: memdb.New(), fail: &atomic.Bool{}}
}

func (db *failingDB) NewBatch() database.Batch {
	return &failingBatch{Batch: db.Database.NewBatch(), fail: db.fail}
}

type failingBatch struct {
	database.Batch
	fail *atomic.Bool
}

func (b *failingBatch) Write() error {
	if b.fail.Load() {
		return errDiskFull
	}
	return b.Batch.Write()
}
