package engine

import (
	"slices"
	"sync"
)

// Counts reports the size of a jail's live index.
type Counts struct {
	Total        int
	Integriforce int
	PaX          int
	Extended     int
}

// jailEntry owns the rule indices for one jail.
//
// Every rule record belongs to exactly one of the two indices. The live
// index is what enforcement consults; the staging index accumulates a
// replacement ruleset until commit swaps it in. Both are keyed by
// fingerprint, which makes the enforcement-path lookup a point query.
//
// The lock covers both indices, the id generators, and the counters.
// Enforcement and queries take it shared; every mutation takes it
// exclusive, including the duplicate check that precedes an insert, so
// uniqueness of (kind, mount point, file id) in the live index is strict.
type jailEntry struct {
	jid uint32

	mu            sync.RWMutex
	live          map[uint32]*Rule
	staging       map[uint32]*Rule
	nextLiveID    uint32
	nextStagingID uint32
	counts        Counts
}

func newJailEntry(jid uint32) *jailEntry {
	return &jailEntry{
		jid:     jid,
		live:    make(map[uint32]*Rule),
		staging: make(map[uint32]*Rule),
	}
}

// dupLocked reports whether a live rule of the same kind already targets
// the same file. The extended family matches by mere presence, preserving
// the conservative behavior of the original implementation.
//
// Caller holds mu (read or write).
func (e *jailEntry) dupLocked(data Data) bool {
	for _, r := range e.live {
		if r.Kind() != data.Kind() {
			continue
		}

		if r.Kind() == KindExtended {
			return true
		}

		if r.Data.Ident() == data.Ident() {
			return true
		}
	}

	return false
}

// insertLocked assigns an id from the destination's generator, inserts the
// record, and maintains the live counters. It assumes the duplicate check
// already ran in this critical section. A fingerprint collision with a
// different file is rejected rather than clobbering the occupant.
//
// Caller holds mu exclusively.
func (e *jailEntry) insertLocked(data Data, dest Dest) (uint32, error) {
	fp := Fingerprint(e.jid, data.Kind(), data.Ident())

	index := e.live
	if dest == DestStaging {
		index = e.staging
	}

	if _, occupied := index[fp]; occupied {
		return 0, ErrDuplicate
	}

	rule := &Rule{
		JailID:      e.jid,
		Active:      true,
		Fingerprint: fp,
		Data:        data,
	}

	if dest == DestStaging {
		rule.ID = e.nextStagingID
		e.nextStagingID++
	} else {
		rule.ID = e.nextLiveID
		e.nextLiveID++
		e.bumpLocked(data.Kind(), 1)
	}

	index[fp] = rule

	return rule.ID, nil
}

// findLiveLocked locates a live rule by id. Ids are not the primary key, so
// this is a linear scan. Caller holds mu.
func (e *jailEntry) findLiveLocked(id uint32) *Rule {
	for _, r := range e.live {
		if r.ID == id {
			return r
		}
	}

	return nil
}

// drainLiveLocked empties the live index and zeroes the counters. Staging
// is untouched. Caller holds mu exclusively.
func (e *jailEntry) drainLiveLocked() {
	clear(e.live)
	e.counts = Counts{}
}

// commitLocked swaps staging into live: the old live set is dropped, each
// staged record gets a fresh id from the live generator (in staged-id
// order, so the swap is deterministic), and the counters are rebuilt.
// Caller holds mu exclusively.
func (e *jailEntry) commitLocked() {
	e.drainLiveLocked()

	staged := make([]*Rule, 0, len(e.staging))
	for _, r := range e.staging {
		staged = append(staged, r)
	}

	slices.SortFunc(staged, func(a, b *Rule) int {
		return int(a.ID) - int(b.ID)
	})

	for _, r := range staged {
		r.ID = e.nextLiveID
		e.nextLiveID++
		e.live[r.Fingerprint] = r
		e.bumpLocked(r.Kind(), 1)
	}

	clear(e.staging)
}

// bumpLocked adjusts the total and per-kind counters. Caller holds mu
// exclusively.
func (e *jailEntry) bumpLocked(k Kind, delta int) {
	e.counts.Total += delta

	switch k {
	case KindIntegriforce:
		e.counts.Integriforce += delta
	case KindPaX:
		e.counts.PaX += delta
	case KindExtended:
		e.counts.Extended += delta
	}
}
