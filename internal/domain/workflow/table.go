package workflow

import "fmt"

// TransitionTable is the single source of truth for which states a role can
// reach from a given state. Both the UI (action/tab visibility) and the
// engine (validation) read the same table, so the two can never drift.
type TransitionTable struct {
	kind        Kind
	transitions map[Role]map[State][]State
}

// TableBuilder builds a configured transition table for one entity kind
type TableBuilder struct {
	kind        Kind
	transitions map[Role]map[State][]State
}

// RoleConfiguration configures the transitions one role may perform
type RoleConfiguration struct {
	builder *TableBuilder
	role    Role
}

// NewTableBuilder creates a new transition table builder for the given kind
func NewTableBuilder(kind Kind) *TableBuilder {
	return &TableBuilder{
		kind:        kind,
		transitions: make(map[Role]map[State][]State),
	}
}

// Role returns a configuration scope for the given role
func (b *TableBuilder) Role(role Role) *RoleConfiguration {
	if !role.IsValid() {
		panic(fmt.Sprintf("invalid role: %s", role))
	}
	if _, ok := b.transitions[role]; !ok {
		b.transitions[role] = make(map[State][]State)
	}
	return &RoleConfiguration{builder: b, role: role}
}

// Permit allows the role to move from one state to any of the target states.
// Panics on states outside the kind's vocabulary, on terminal source states
// and on self-loops: those are authoring mistakes, not runtime conditions.
func (c *RoleConfiguration) Permit(from State, to ...State) *RoleConfiguration {
	b := c.builder
	if !b.kind.IsValidState(from) {
		panic(fmt.Sprintf("invalid %s state: %s", b.kind, from))
	}
	if b.kind.IsTerminal(from) {
		panic(fmt.Sprintf("terminal state %s cannot have outgoing transitions", from))
	}
	for _, target := range to {
		if !b.kind.IsValidState(target) {
			panic(fmt.Sprintf("invalid %s target state: %s", b.kind, target))
		}
		if target == from {
			panic(fmt.Sprintf("self-loop on state %s is not modeled", from))
		}
		b.transitions[c.role][from] = append(b.transitions[c.role][from], target)
	}
	return c
}

// Build creates an immutable transition table snapshot
func (b *TableBuilder) Build() *TransitionTable {
	copied := make(map[Role]map[State][]State, len(b.transitions))
	for role, byState := range b.transitions {
		copied[role] = make(map[State][]State, len(byState))
		for from, targets := range byState {
			copied[role][from] = append([]State(nil), targets...)
		}
	}
	return &TransitionTable{kind: b.kind, transitions: copied}
}

// Kind returns the entity kind this table governs
func (t *TransitionTable) Kind() Kind {
	return t.kind
}

// AvailableTransitions returns the states the role can reach from the given
// state. Pure, no side effects; unknown (role, state) pairs yield an empty
// slice rather than an error.
func (t *TransitionTable) AvailableTransitions(role Role, from State) []State {
	byState, ok := t.transitions[role]
	if !ok {
		return []State{}
	}
	targets, ok := byState[from]
	if !ok {
		return []State{}
	}
	return append([]State(nil), targets...)
}

// CanTransition reports whether the role may move from one state to another
func (t *TransitionTable) CanTransition(role Role, from, to State) bool {
	for _, target := range t.AvailableTransitions(role, from) {
		if target == to {
			return true
		}
	}
	return false
}
