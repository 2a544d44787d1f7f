package property

import "estateflow/auth"

// InitialStatus applies the creator-trust rule: agent-created listings always
// enter review, everyone else publishes directly.
func InitialStatus(creator auth.Role) Status {
	if creator == auth.RoleAgent {
		return StatusPending
	}
	return StatusActive
}

// TransitionAllowed is the transition table. isOwner reports whether the
// acting agent owns the listing; it is ignored for the other roles, whose
// agency scoping is checked by the caller's visibility rules.
//
// super_admin may force any state into any other. agency_admin decides
// pending listings (approve to active, reject to inactive) and updates the
// outcome of active ones. An owning agent may close out an already-approved
// listing (sold, rented, inactive) but can never drive any state to active,
// nor an unapproved state to sold or rented: content edits by agents travel
// through the pending reset in the service, not through this table.
func TransitionAllowed(from, to Status, role auth.Role, isOwner bool) bool {
	if !ValidStatus(from) || !ValidStatus(to) {
		return false
	}
	if role == auth.RoleSuperAdmin {
		return true
	}
	if from == to {
		return false
	}

	switch {
	case from == StatusPending && (to == StatusActive || to == StatusInactive):
		return role == auth.RoleAgencyAdmin
	case from == StatusActive && (to == StatusSold || to == StatusRented || to == StatusInactive):
		if role == auth.RoleAgencyAdmin {
			return true
		}
		return role == auth.RoleAgent && isOwner
	}

	return false
}
