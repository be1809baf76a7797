// Package hooks adapts the policy engine to a host security framework.
//
// The host registers the [Ops] table and invokes its callbacks
// synchronously from its exec, unlink, and jail-teardown paths. A non-nil
// error from a vnode check means the host must fail the operation; the
// returned errors unwrap to [unix.EPERM] so hosts that speak errno get the
// standard permission failure.
package hooks

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"

	"github.com/hardenedlabs/secadm/internal/engine"
)

// Ops is the registration table, one callback per framework hook. It
// mirrors the policy-ops shape of MAC frameworks: the host copies the
// table once and calls through it.
type Ops struct {
	Init             func()
	Destroy          func()
	VnodeCheckExec   func(cred engine.Credential, path string, proc engine.ProcessAttrs) error
	VnodeCheckUnlink func(cred engine.Credential, path string) error
	PrisonDestroy    func(jailID uint32)
}

// Policy binds an engine to the hook table.
type Policy struct {
	eng *engine.Engine
	log zerolog.Logger
}

// NewPolicy wires a policy to an engine.
func NewPolicy(eng *engine.Engine, log zerolog.Logger) *Policy {
	return &Policy{eng: eng, log: log}
}

// Ops returns the registration table for this policy.
func (p *Policy) Ops() Ops {
	return Ops{
		Init:             func() {},
		Destroy:          p.destroy,
		VnodeCheckExec:   p.vnodeCheckExec,
		VnodeCheckUnlink: p.vnodeCheckUnlink,
		PrisonDestroy:    p.prisonDestroy,
	}
}

func (p *Policy) destroy() {
	p.eng.Close()
}

// vnodeCheckExec renders the exec decision and applies any PaX toggles.
// Denials carry EPERM for the host to surface as the syscall error.
func (p *Policy) vnodeCheckExec(cred engine.Credential, path string, proc engine.ProcessAttrs) error {
	if err := p.eng.CheckExec(cred, path, proc); err != nil {
		p.log.Info().
			Uint32("jail", cred.JailID).
			Str("path", path).
			Err(err).
			Msg("exec denied")

		return denial(err)
	}

	return nil
}

func (p *Policy) vnodeCheckUnlink(cred engine.Credential, path string) error {
	if err := p.eng.CheckUnlink(cred, path); err != nil {
		p.log.Info().
			Uint32("jail", cred.JailID).
			Str("path", path).
			Err(err).
			Msg("unlink denied")

		return denial(err)
	}

	return nil
}

func (p *Policy) prisonDestroy(jailID uint32) {
	p.eng.JailDestroyed(jailID)
}

// denialError pairs the engine's diagnosis with the errno the host needs.
type denialError struct {
	err error
}

func (d *denialError) Error() string {
	return d.err.Error()
}

func (d *denialError) Unwrap() []error {
	return []error{d.err, unix.EPERM}
}

// denial wraps an engine denial so it unwraps both to the engine sentinel
// and to EPERM.
func denial(err error) error {
	if err == nil {
		return nil
	}

	return &denialError{err: err}
}

// Errno extracts the errno a denial carries. Unknown errors map to EPERM:
// the hooks fail closed, never open.
func Errno(err error) unix.Errno {
	if err == nil {
		return 0
	}

	var errno unix.Errno
	if errors.As(err, &errno) {
		return errno
	}

	return unix.EPERM
}

// ProcFlags is a plain [engine.ProcessAttrs] sink recording the toggles a
// PaX rule applied. Hosts with real per-process mitigation state implement
// the interface themselves; ProcFlags serves hosts and tests that only
// need the resulting values.
type ProcFlags struct {
	ASLR         bool
	ASLRSet      bool
	Segvguard    bool
	SegvguardSet bool
}

// NewProcFlags returns a sink seeded with the host defaults.
func NewProcFlags(aslr, segvguard bool) *ProcFlags {
	return &ProcFlags{ASLR: aslr, Segvguard: segvguard}
}

func (f *ProcFlags) SetASLR(enabled bool) {
	f.ASLR = enabled
	f.ASLRSet = true
}

func (f *ProcFlags) SetSegvguard(enabled bool) {
	f.Segvguard = enabled
	f.SegvguardSet = true
}

// String renders the applied state for logs.
func (f *ProcFlags) String() string {
	return fmt.Sprintf("aslr=%t segvguard=%t", f.ASLR, f.Segvguard)
}
