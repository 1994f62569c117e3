// (c) 2019-2020, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package codecache

// Factory creates environments around an embedder's VM implementation.
type Factory struct {
	VMs      VMFactory
	Natives  NativeBuilder
	Verifier Verifier
}

// New returns an uninitialized environment. [VMs] and [Verifier] may both be
// nil for tools that only inspect durable state and fingerprints.
func (f *Factory) New() (*Environment, error) {
	if f.Natives == nil {
		return nil, errMissingNatives
	}
	if f.VMs != nil && f.Verifier == nil {
		return nil, errMissingVerifier
	}
	return &Environment{
		factory:  f.VMs,
		natives:  f.Natives,
		verifier: f.Verifier,
	}, nil
}
