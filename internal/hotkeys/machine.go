package hotkeys

// ComboTransition is an edge of the derived "combo active" flag.
type ComboTransition uint8

const (
	// Activated fires when the last missing member is pressed.
	Activated ComboTransition = iota + 1
	// Deactivated fires when any member is released while the combo is active.
	Deactivated
)

func (t ComboTransition) String() string {
	switch t {
	case Activated:
		return "activated"
	case Deactivated:
		return "deactivated"
	default:
		return "unknown"
	}
}

// Machine tracks the held state of every combo member and derives the
// edge-triggered combo transitions.
//
// Machine is not safe for concurrent use. It is owned by the input listener
// goroutine; other goroutines learn about its state only through the
// transitions it returns.
type Machine struct {
	combo  Combo
	held   map[Key]bool
	active bool
}

// NewMachine creates a machine with every member released.
func NewMachine(combo Combo) *Machine {
	held := make(map[Key]bool, len(combo.keys))
	for _, key := range combo.keys {
		held[key] = false
	}
	return &Machine{combo: combo, held: held}
}

// Combo returns the combo this machine tracks.
func (m *Machine) Combo() Combo { return m.combo }

// Active reports whether every member is currently held.
func (m *Machine) Active() bool { return m.active }

// Held reports whether key is a member and currently held.
func (m *Machine) Held(key Key) bool { return m.held[key] }

// OnKeyEvent applies one physical key transition. It returns a transition
// only when the derived active flag flips. Non-member keys and repeated
// presses of an already held key never produce a transition.
func (m *Machine) OnKeyEvent(key Key, transition Transition) (ComboTransition, bool) {
	if _, member := m.held[key]; !member {
		return 0, false
	}
	switch transition {
	case Press:
		m.held[key] = true
	case Release:
		m.held[key] = false
	default:
		return 0, false
	}
	return m.recompute()
}

// Reset releases every member. It returns Deactivated when the combo was
// active, so callers can recover from a release event the OS never delivered.
func (m *Machine) Reset() (ComboTransition, bool) {
	for key := range m.held {
		m.held[key] = false
	}
	return m.recompute()
}

func (m *Machine) recompute() (ComboTransition, bool) {
	active := len(m.held) > 0
	for _, held := range m.held {
		if !held {
			active = false
			break
		}
	}

	switch {
	case active && !m.active:
		m.active = true
		return Activated, true
	case !active && m.active:
		m.active = false
		return Deactivated, true
	default:
		return 0, false
	}
}
