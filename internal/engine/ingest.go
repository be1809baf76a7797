package engine

import (
	"errors"
	"fmt"

	"github.com/hardenedlabs/secadm/internal/fsx"
)

// Dest selects which index an ingested rule lands in.
type Dest int

// Ingestion destinations.
const (
	DestLive Dest = iota
	DestStaging
)

// AddRule validates and canonicalizes spec, resolves its path against the
// live filesystem namespace, and inserts the resulting record into the
// jail's chosen index. The assigned rule id is returned.
//
// The duplicate check and the insert run in a single exclusive critical
// section, so at most one rule per (kind, mount point, file id) can ever
// exist in the live index. The check scans the live index regardless of
// destination.
func (e *Engine) AddRule(jid uint32, spec Spec, dest Dest) (uint32, error) {
	data, err := e.resolve(spec)
	if err != nil {
		return 0, err
	}

	entry := e.entry(jid)
	if entry == nil {
		return 0, fmt.Errorf("add rule: engine closed: %w", ErrInternal)
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.dupLocked(data) {
		return 0, fmt.Errorf("add rule %s: %w", data.Path(), ErrDuplicate)
	}

	id, err := entry.insertLocked(data, dest)
	if err != nil {
		return 0, fmt.Errorf("add rule %s: %w", data.Path(), err)
	}

	e.log.Debug().
		Uint32("jail", jid).
		Uint32("rule", id).
		Stringer("kind", data.Kind()).
		Str("path", data.Path()).
		Bool("staged", dest == DestStaging).
		Msg("rule added")

	return id, nil
}

// LoadRuleset stages a complete replacement ruleset in one call.
//
// The load is all-or-nothing: every element is validated and resolved
// before anything is staged, and the staging inserts happen in a single
// exclusive critical section. On failure the error names the failing
// element's position and nothing is staged.
func (e *Engine) LoadRuleset(jid uint32, specs []Spec) error {
	datas := make([]Data, len(specs))

	for i, spec := range specs {
		data, err := e.resolve(spec)
		if err != nil {
			return fmt.Errorf("load ruleset: rule %d: %w", i, err)
		}

		datas[i] = data
	}

	entry := e.entry(jid)
	if entry == nil {
		return fmt.Errorf("load ruleset: engine closed: %w", ErrInternal)
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	// Reject before touching the index: against live rules, and against
	// earlier elements of this batch, so a later commit cannot break live
	// uniqueness.
	seen := make(map[uint32]struct{}, len(datas))

	for i, data := range datas {
		if entry.dupLocked(data) {
			return fmt.Errorf("load ruleset: rule %d (%s): %w", i, data.Path(), ErrDuplicate)
		}

		fp := Fingerprint(jid, data.Kind(), data.Ident())
		if _, dup := seen[fp]; dup {
			return fmt.Errorf("load ruleset: rule %d (%s): %w", i, data.Path(), ErrDuplicate)
		}

		seen[fp] = struct{}{}

		if _, staged := entry.staging[fp]; staged {
			return fmt.Errorf("load ruleset: rule %d (%s): %w", i, data.Path(), ErrDuplicate)
		}
	}

	for _, data := range datas {
		// Cannot fail: occupancy was checked above in this critical section.
		if _, err := entry.insertLocked(data, DestStaging); err != nil {
			return fmt.Errorf("load ruleset: %w", ErrInternal)
		}
	}

	e.log.Info().Uint32("jail", jid).Int("rules", len(datas)).Msg("ruleset staged")

	return nil
}

// resolve turns a spec into an immutable rule payload: bounds checks,
// digest-length checks, then path resolution to (mount point, file id).
func (e *Engine) resolve(spec Spec) (Data, error) {
	if spec == nil {
		return nil, fmt.Errorf("resolve rule: nil spec: %w", ErrInvalidArgument)
	}

	path := spec.specPath()
	if len(path) == 0 || len(path) >= MaxPathLen {
		return nil, fmt.Errorf("resolve rule: path length %d: %w", len(path), ErrInvalidArgument)
	}

	switch s := spec.(type) {
	case IntegriforceSpec:
		want := s.HashKind.DigestLen()
		if want == 0 {
			return nil, fmt.Errorf("resolve rule %s: unknown hash kind %d: %w",
				path, s.HashKind, ErrInvalidArgument)
		}

		if len(s.Hash) != want {
			return nil, fmt.Errorf("resolve rule %s: %s digest must be %d bytes, got %d: %w",
				path, s.HashKind, want, len(s.Hash), ErrInvalidArgument)
		}

		ident, err := e.identify(path)
		if err != nil {
			return nil, err
		}

		return Integriforce{
			FilePath: path,
			File:     ident,
			HashKind: s.HashKind,
			Hash:     append([]byte(nil), s.Hash...),
		}, nil

	case PaXSpec:
		if !s.Flags.valid() {
			return nil, fmt.Errorf("resolve rule %s: flags %#x: %w", path, uint32(s.Flags), ErrInvalidArgument)
		}

		ident, err := e.identify(path)
		if err != nil {
			return nil, err
		}

		return PaX{FilePath: path, File: ident, Flags: s.Flags}, nil

	case ExtendedSpec:
		return nil, fmt.Errorf("resolve rule %s: extended rules: %w", path, ErrUnsupported)

	default:
		return nil, fmt.Errorf("resolve rule %s: unknown spec type: %w", path, ErrInvalidArgument)
	}
}

// identify maps fsx resolution outcomes onto the engine error taxonomy.
func (e *Engine) identify(path string) (fsx.FileIdent, error) {
	ident, err := fsx.Identify(e.fs, path)

	switch {
	case err == nil:
		return ident, nil
	case errors.Is(err, fsx.ErrNotRegular):
		return fsx.FileIdent{}, fmt.Errorf("%s: %w", path, ErrNotRegularFile)
	case errors.Is(err, fsx.ErrNotAbsolute):
		return fsx.FileIdent{}, fmt.Errorf("%s: %w", path, ErrInvalidArgument)
	default:
		return fsx.FileIdent{}, fmt.Errorf("%s: %v: %w", path, err, ErrPathResolution)
	}
}
