package engine

import (
	"crypto/subtle"
	"fmt"

	"github.com/hardenedlabs/secadm/internal/fsx"
)

// Credential identifies the subject on whose behalf an enforcement hook
// runs. The host reads it from the thread's credentials; only the jail id
// matters to this engine.
type Credential struct {
	JailID uint32
}

// ProcessAttrs receives the exploit-mitigation toggles a PaX rule applies
// to the process being exec'd. PaX rules never deny an exec; they mutate
// process attributes through this sink.
type ProcessAttrs interface {
	SetASLR(enabled bool)
	SetSegvguard(enabled bool)
}

// CheckExec renders the exec decision for path in the caller's jail.
//
// A nil return allows the exec. An Integriforce hit hashes the file and
// denies with [ErrIntegrityViolation] on mismatch or any read error. A PaX
// hit applies its feature flags to proc. Every non-definite outcome -
// unresolvable attributes, unreadable contents, engine teardown - denies.
//
// The matched rule is cloned under the jail's read lock and the lock is
// released before the file is hashed, so enforcement never holds a lock
// across filesystem I/O.
func (e *Engine) CheckExec(cred Credential, path string, proc ProcessAttrs) error {
	entry, err := e.enforceEntry(cred)
	if err != nil {
		return err
	}

	if entry == nil {
		return nil // jail has never had rules
	}

	ident, err := e.enforceIdent(entry, path)
	if err != nil {
		return err
	}

	if ident == nil {
		return nil // no live rules, nothing can match
	}

	entry.mu.RLock()

	var (
		integ     Rule
		haveInteg bool
		flags     PaXFlags
		havePaX   bool
	)

	if r, ok := entry.live[Fingerprint(entry.jid, KindIntegriforce, *ident)]; ok {
		if r.Active && r.Kind() == KindIntegriforce {
			integ = r.clone()
			haveInteg = true
		}
	}

	if r, ok := entry.live[Fingerprint(entry.jid, KindPaX, *ident)]; ok {
		if r.Active && r.Kind() == KindPaX {
			flags = r.Data.(PaX).Flags
			havePaX = true
		}
	}

	entry.mu.RUnlock()

	if haveInteg {
		if err := e.verifyIntegrity(integ, path); err != nil {
			return err
		}
	}

	if havePaX && proc != nil {
		applyPaX(flags, proc)

		e.log.Debug().
			Uint32("jail", cred.JailID).
			Str("path", path).
			Uint32("flags", uint32(flags)).
			Msg("pax flags applied")
	}

	return nil
}

// CheckUnlink renders the unlink decision for path in the caller's jail.
// An active Integriforce rule on the file denies with [ErrImmutable].
func (e *Engine) CheckUnlink(cred Credential, path string) error {
	entry, err := e.enforceEntry(cred)
	if err != nil {
		return err
	}

	if entry == nil {
		return nil
	}

	ident, err := e.enforceIdent(entry, path)
	if err != nil {
		return err
	}

	if ident == nil {
		return nil
	}

	entry.mu.RLock()
	defer entry.mu.RUnlock()

	r, ok := entry.live[Fingerprint(entry.jid, KindIntegriforce, *ident)]
	if ok && r.Active && r.Kind() == KindIntegriforce {
		e.log.Warn().
			Uint32("jail", cred.JailID).
			Uint32("rule", r.ID).
			Str("path", path).
			Msg("unlink denied: file is rule-protected")

		return fmt.Errorf("unlink %s: %w", path, ErrImmutable)
	}

	return nil
}

// enforceEntry looks the jail up without creating an entry. A closed
// engine denies; a jail with no entry definitively has no rules.
func (e *Engine) enforceEntry(cred Credential) (*jailEntry, error) {
	entry, closed := e.lookup(cred.JailID)
	if closed {
		return nil, fmt.Errorf("enforce: engine closed: %w", ErrInternal)
	}

	return entry, nil
}

// enforceIdent resolves the target's (mount point, file id) for the probe.
// A nil ident with nil error means the jail's live index is empty, which
// is the one case where skipping resolution is still a definite Allow.
// Resolution failures deny: a candidate fingerprint cannot be computed.
func (e *Engine) enforceIdent(entry *jailEntry, path string) (*fsx.FileIdent, error) {
	entry.mu.RLock()
	empty := entry.counts.Total == 0
	entry.mu.RUnlock()

	if empty {
		return nil, nil
	}

	ident, err := fsx.Identify(e.fs, path)
	if err != nil {
		e.log.Warn().Str("path", path).Err(err).Msg("enforcement: cannot identify target, denying")

		return nil, fmt.Errorf("enforce %s: %v: %w", path, err, ErrPathResolution)
	}

	return &ident, nil
}

// verifyIntegrity hashes the file and compares against the rule's digest.
// Read errors and mismatches both deny: a file that cannot be verified is
// treated as tampered.
func (e *Engine) verifyIntegrity(rule Rule, path string) error {
	data, ok := rule.Data.(Integriforce)
	if !ok {
		return fmt.Errorf("verify %s: rule %d carries no digest: %w", path, rule.ID, ErrInternal)
	}

	sum, err := fsx.DigestFile(e.fs, path, data.HashKind.New())
	if err != nil {
		e.log.Warn().
			Uint32("jail", rule.JailID).
			Uint32("rule", rule.ID).
			Str("path", path).
			Err(err).
			Msg("integriforce: cannot hash file, denying exec")

		return fmt.Errorf("exec %s: %v: %w", path, err, ErrIntegrityViolation)
	}

	if subtle.ConstantTimeCompare(sum, data.Hash) != 1 {
		e.log.Warn().
			Uint32("jail", rule.JailID).
			Uint32("rule", rule.ID).
			Str("path", path).
			Stringer("hash", data.HashKind).
			Msg("integriforce: hash mismatch, denying exec")

		return fmt.Errorf("exec %s: %w", path, ErrIntegrityViolation)
	}

	return nil
}

// applyPaX translates toggle bits into attribute writes. Unset feature
// pairs leave the process default untouched.
func applyPaX(flags PaXFlags, proc ProcessAttrs) {
	if flags&ASLREnable != 0 {
		proc.SetASLR(true)
	}

	if flags&ASLRDisable != 0 {
		proc.SetASLR(false)
	}

	if flags&SegvguardEnable != 0 {
		proc.SetSegvguard(true)
	}

	if flags&SegvguardDisable != 0 {
		proc.SetSegvguard(false)
	}
}
