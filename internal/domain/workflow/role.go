package workflow

// Role identifies who is attempting a transition. The closed enum replaces
// the loose role strings the legacy portal carried around.
type Role string

const (
	// RoleRequester is the servant asking for (and accounting for) the advance.
	RoleRequester Role = "REQUESTER"
	// RoleAdministrator reviews, approves and rejects at every stage.
	RoleAdministrator Role = "ADMINISTRATOR"
	// RoleSystem is the scheduler actor driving deadline transitions.
	RoleSystem Role = "SYSTEM"
)

// IsValid returns true if the role is one of the defined constants
func (r Role) IsValid() bool {
	switch r {
	case RoleRequester, RoleAdministrator, RoleSystem:
		return true
	}
	return false
}

// String returns the string representation of the role
func (r Role) String() string {
	return string(r)
}
