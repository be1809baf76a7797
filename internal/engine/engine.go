package engine

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/hardenedlabs/secadm/internal/fsx"
)

// Options configures a new [Engine]. The zero value is usable: it runs
// against the real filesystem and discards logs.
type Options struct {
	// FS is the filesystem used for path resolution and content hashing.
	// Defaults to [fsx.NewReal].
	FS fsx.FS

	// Logger receives structured enforcement and mutation events.
	// Defaults to a no-op logger.
	Logger *zerolog.Logger
}

// Engine is the process-wide policy store: the registry of per-jail rule
// entries plus the enforcement entry points.
//
// An Engine is an explicit value; there is no package-level instance.
// Construct one with [New], share it by reference with the control channel
// and the hooks, and tear it down with [Engine.Close].
//
// All methods are safe for concurrent use. Enforcement hooks take each
// jail's lock shared; mutations take it exclusive. The registry lock is
// always acquired before a jail lock, never after.
type Engine struct {
	fs  fsx.FS
	log zerolog.Logger

	mu     sync.RWMutex
	jails  map[uint32]*jailEntry
	closed bool
}

// New constructs an engine with no rules.
func New(opts Options) *Engine {
	fs := opts.FS
	if fs == nil {
		fs = fsx.NewReal()
	}

	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}

	return &Engine{
		fs:    fs,
		log:   log,
		jails: make(map[uint32]*jailEntry),
	}
}

// Close drains every jail's rules and shuts the engine down. Subsequent
// [Engine.AddRule] and [Engine.LoadRuleset] calls fail with [ErrInternal];
// the other mutations and the queries find no jail and do nothing;
// enforcement hooks fail closed.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, entry := range e.jails {
		entry.mu.Lock()
		entry.drainLiveLocked()
		clear(entry.staging)
		entry.mu.Unlock()
	}

	e.jails = nil
	e.closed = true
}

// JailDestroyed drops the entry for a destroyed jail, freeing its live and
// staged rules. Safe to call for jails that never had rules.
func (e *Engine) JailDestroyed(jid uint32) {
	e.mu.Lock()
	defer e.mu.Unlock()

	entry, ok := e.jails[jid]
	if !ok {
		return
	}

	entry.mu.Lock()
	entry.drainLiveLocked()
	clear(entry.staging)
	entry.mu.Unlock()

	delete(e.jails, jid)

	e.log.Debug().Uint32("jail", jid).Msg("jail entry destroyed")
}

// entry returns the jail's entry, creating it on first reference.
// Returns nil once the engine is closed.
func (e *Engine) entry(jid uint32) *jailEntry {
	e.mu.RLock()
	entry, ok := e.jails[jid]
	closed := e.closed
	e.mu.RUnlock()

	if closed {
		return nil
	}

	if ok {
		return entry
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}

	// Lost the race to another creator.
	if entry, ok := e.jails[jid]; ok {
		return entry
	}

	entry = newJailEntry(jid)
	e.jails[jid] = entry

	return entry
}

// lookup returns the jail's entry without creating one. entry is nil when
// the jail has no entry; closed reports engine teardown.
func (e *Engine) lookup(jid uint32) (entry *jailEntry, closed bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.closed {
		return nil, true
	}

	return e.jails[jid], false
}
