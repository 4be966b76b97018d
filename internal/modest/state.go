package modest

import "sync"

// stateValue is the weakly typed union a State variable holds: a
// bool, a 32-bit integer, or a string, matching the narrow type
// system of the original variable table. There is no int64 or
// double slot.
type stateValue struct {
	kind stateKind
	b    bool
	i    int32
	s    string
}

type stateKind int

const (
	kindBool stateKind = iota
	kindInt32
	kindString
)

// State is a named-variable store used by Operations to coordinate
// admission. All reads and writes happen under its lock, which is
// also the lock the dispatcher holds while evaluating guards and
// running mutators — that shared serialization point is what makes
// guard-based admission correct.
//
// Guard and Mutator implementations are invoked with the lock already
// held by the dispatcher and must use the NoLock accessors below
// rather than the locking ones, or they will deadlock.
type State struct {
	mu   sync.Mutex
	vars map[string]stateValue
}

// NewState returns an empty State.
func NewState() *State {
	return &State{vars: make(map[string]stateValue)}
}

// Lock acquires the State lock. Held by the dispatcher across guard
// evaluation and mutator invocation; never held across I/O.
func (s *State) Lock() { s.mu.Lock() }

// Unlock releases the State lock.
func (s *State) Unlock() { s.mu.Unlock() }

// --- locking public API, for ad hoc client use outside a guard/mutator ---

// SetBool sets a boolean variable.
func (s *State) SetBool(name string, v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SetBoolNoLock(name, v)
}

// GetBool reads a boolean variable.
func (s *State) GetBool(name string) (bool, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.GetBoolNoLock(name)
}

// SetInt32 sets an integer variable.
func (s *State) SetInt32(name string, v int32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SetInt32NoLock(name, v)
}

// GetInt32 reads an integer variable.
func (s *State) GetInt32(name string) (int32, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.GetInt32NoLock(name)
}

// Adjust adds delta to an existing integer variable and returns its
// new value. The variable must already exist as an integer.
func (s *State) Adjust(name string, delta int32) (int32, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.AdjustNoLock(name, delta)
}

// Diff returns nameA's value minus nameB's value. Both must exist as
// integers.
func (s *State) Diff(nameA, nameB string) (int32, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.DiffNoLock(nameA, nameB)
}

// SetString sets a string variable.
func (s *State) SetString(name, v string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SetStringNoLock(name, v)
}

// GetString reads a string variable.
func (s *State) GetString(name string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.GetStringNoLock(name)
}

// Remove deletes a variable regardless of type.
func (s *State) Remove(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.RemoveNoLock(name)
}

// --- non-locking accessors, for use by Guards and Mutators ---

// SetBoolNoLock sets a boolean variable without acquiring the lock.
// Caller must already hold it.
func (s *State) SetBoolNoLock(name string, v bool) {
	s.vars[name] = stateValue{kind: kindBool, b: v}
}

// GetBoolNoLock reads a boolean variable without acquiring the lock.
func (s *State) GetBoolNoLock(name string) (bool, bool) {
	v, ok := s.vars[name]
	if !ok || v.kind != kindBool {
		return false, false
	}
	return v.b, true
}

// SetInt32NoLock sets an integer variable without acquiring the lock.
func (s *State) SetInt32NoLock(name string, v int32) {
	s.vars[name] = stateValue{kind: kindInt32, i: v}
}

// GetInt32NoLock reads an integer variable without acquiring the lock.
func (s *State) GetInt32NoLock(name string) (int32, bool) {
	v, ok := s.vars[name]
	if !ok || v.kind != kindInt32 {
		return 0, false
	}
	return v.i, true
}

// AdjustNoLock adjusts an integer variable without acquiring the lock.
func (s *State) AdjustNoLock(name string, delta int32) (int32, bool) {
	v, ok := s.vars[name]
	if !ok || v.kind != kindInt32 {
		return 0, false
	}
	v.i += delta
	s.vars[name] = v
	return v.i, true
}

// DiffNoLock computes nameA-nameB without acquiring the lock.
func (s *State) DiffNoLock(nameA, nameB string) (int32, bool) {
	a, ok := s.GetInt32NoLock(nameA)
	if !ok {
		return 0, false
	}
	b, ok := s.GetInt32NoLock(nameB)
	if !ok {
		return 0, false
	}
	return a - b, true
}

// SetStringNoLock sets a string variable without acquiring the lock.
func (s *State) SetStringNoLock(name, v string) {
	s.vars[name] = stateValue{kind: kindString, s: v}
}

// GetStringNoLock reads a string variable without acquiring the lock.
func (s *State) GetStringNoLock(name string) (string, bool) {
	v, ok := s.vars[name]
	if !ok || v.kind != kindString {
		return "", false
	}
	return v.s, true
}

// RemoveNoLock deletes a variable without acquiring the lock.
func (s *State) RemoveNoLock(name string) {
	delete(s.vars, name)
}
