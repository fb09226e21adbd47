package agent

// State is the ordered list of pending actions for one actor. Insertion
// order is preserved and is the only ordering guarantee. State does no
// locking of its own: the owning Agent serializes access.
type State struct {
	actions []PendingAction
}

func NewState() *State { return &State{} }

func (st *State) Len() int { return len(st.actions) }

// Append stages one action. Ids are caller-generated and assumed unique.
func (st *State) Append(a PendingAction) {
	st.actions = append(st.actions, a)
}

// Find returns the action with the given id, if present.
func (st *State) Find(id string) (PendingAction, bool) {
	for _, a := range st.actions {
		if a.ID == id {
			return a, true
		}
	}
	return PendingAction{}, false
}

// Remove deletes the action with the given id, preserving the order of the
// rest. It reports whether anything was removed.
func (st *State) Remove(id string) bool {
	for i, a := range st.actions {
		if a.ID == id {
			st.actions = append(st.actions[:i], st.actions[i+1:]...)
			return true
		}
	}
	return false
}

// Actions returns a copy of the staged actions in insertion order.
func (st *State) Actions() []PendingAction {
	out := make([]PendingAction, len(st.actions))
	copy(out, st.actions)
	return out
}
