package engine

import "slices"

// DeleteRule removes the live rule with the given id and frees its slot.
// A miss is a no-op: deleting an already-deleted rule is not an error.
func (e *Engine) DeleteRule(jid, id uint32) {
	entry, _ := e.lookup(jid)
	if entry == nil {
		return
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	rule := entry.findLiveLocked(id)
	if rule == nil {
		return
	}

	delete(entry.live, rule.Fingerprint)
	entry.bumpLocked(rule.Kind(), -1)

	e.log.Debug().Uint32("jail", jid).Uint32("rule", id).Msg("rule deleted")
}

// SetActive toggles enforcement of a live rule. A miss is a no-op.
func (e *Engine) SetActive(jid, id uint32, active bool) {
	entry, _ := e.lookup(jid)
	if entry == nil {
		return
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if rule := entry.findLiveLocked(id); rule != nil {
		rule.Active = active
	}
}

// Rule returns a copy of the live rule with the given id.
func (e *Engine) Rule(jid, id uint32) (Rule, bool) {
	entry, _ := e.lookup(jid)
	if entry == nil {
		return Rule{}, false
	}

	entry.mu.RLock()
	defer entry.mu.RUnlock()

	rule := entry.findLiveLocked(id)
	if rule == nil {
		return Rule{}, false
	}

	return rule.clone(), true
}

// Rules returns copies of every live rule in the jail, ordered by id.
func (e *Engine) Rules(jid uint32) []Rule {
	entry, _ := e.lookup(jid)
	if entry == nil {
		return nil
	}

	entry.mu.RLock()
	defer entry.mu.RUnlock()

	rules := make([]Rule, 0, len(entry.live))
	for _, r := range entry.live {
		rules = append(rules, r.clone())
	}

	slices.SortFunc(rules, func(a, b Rule) int {
		return int(a.ID) - int(b.ID)
	})

	return rules
}

// Counts returns the jail's total and per-kind live rule counts.
func (e *Engine) Counts(jid uint32) Counts {
	entry, _ := e.lookup(jid)
	if entry == nil {
		return Counts{}
	}

	entry.mu.RLock()
	defer entry.mu.RUnlock()

	return entry.counts
}

// FlushLive atomically drops every live rule in the jail and zeroes the
// counters. Staging is untouched. Idempotent.
func (e *Engine) FlushLive(jid uint32) {
	entry, _ := e.lookup(jid)
	if entry == nil {
		return
	}

	entry.mu.Lock()
	entry.drainLiveLocked()
	entry.mu.Unlock()

	e.log.Info().Uint32("jail", jid).Msg("live ruleset flushed")
}

// CommitStaging atomically replaces the live ruleset with the staged one.
// From the perspective of any enforcement read-critical-section, either
// the old or the new ruleset is observed, never a mixture. After commit
// the staging index is empty and every committed rule carries a fresh id
// from the live generator.
func (e *Engine) CommitStaging(jid uint32) {
	entry, _ := e.lookup(jid)
	if entry == nil {
		return
	}

	entry.mu.Lock()
	n := len(entry.staging)
	entry.commitLocked()
	entry.mu.Unlock()

	e.log.Info().Uint32("jail", jid).Int("rules", n).Msg("staged ruleset committed")
}
