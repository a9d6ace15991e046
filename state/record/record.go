package record

import "container/list"

// MaxArchivedStates bounds the superseded-state archive (spec.md §3
// invariant 1). Oldest entries are evicted first once the bound is
// reached.
const MaxArchivedStates = 40

// Session holds the active SessionState plus a bounded archive of
// superseded states, and tracks whether any state has ever been installed.
type Session struct {
	current *SessionState
	archive *list.List // of *SessionState, front = most recent
	fresh   bool
}

// NewSession returns a blank, fresh session record — what SessionStore's
// LoadSession returns when no record exists for an address (spec.md §4.1).
func NewSession() *Session {
	return &Session{
		current: &SessionState{},
		archive: list.New(),
		fresh:   true,
	}
}

// IsFresh reports whether no state has ever been installed into this
// record.
func (r *Session) IsFresh() bool {
	return r.fresh
}

// SessionState returns the current (possibly blank) session state.
func (r *Session) SessionState() *SessionState {
	return r.current
}

// MarkInstalled clears the fresh flag. The builder calls this once it has
// populated the current state via the ratchet initializer; until then
// IsFresh stays true even if fields were touched while building up
// parameters.
func (r *Session) MarkInstalled() {
	r.fresh = false
}

// ArchiveCurrentState pushes the current state into the archive (evicting
// the oldest entry if at capacity) and installs a blank current state.
func (r *Session) ArchiveCurrentState() {
	r.archive.PushFront(r.current.clone())
	for r.archive.Len() > MaxArchivedStates {
		r.archive.Remove(r.archive.Back())
	}
	r.current = &SessionState{}
}

// HasSessionState reports whether some state in current ∪ archive matches
// the given version and Alice base key — the replay/duplicate
// establishment guard (spec.md §3 invariant 2).
func (r *Session) HasSessionState(version int, aliceBaseKey []byte) bool {
	if r.current.matches(version, aliceBaseKey) {
		return true
	}
	for e := r.archive.Front(); e != nil; e = e.Next() {
		if e.Value.(*SessionState).matches(version, aliceBaseKey) {
			return true
		}
	}
	return false
}

// ArchivedStates returns the archived states, most recent first. Intended
// for tests asserting the bound/eviction order.
func (r *Session) ArchivedStates() []*SessionState {
	out := make([]*SessionState, 0, r.archive.Len())
	for e := r.archive.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value.(*SessionState))
	}
	return out
}
