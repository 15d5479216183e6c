package order

import "chatori-be/internal/auth"

// rule describes who may move an order into a target status.
type rule struct {
	roles      []auth.Role
	requireOTP map[auth.Role]bool
}

// transitions is the legal-transition table keyed by target status.
// Admins may set any status without an OTP (override). Delivery partners
// only move orders out for delivery and confirm drop-off with the OTP.
var transitions = map[Status]rule{
	StatusPending:   {roles: []auth.Role{auth.RoleAdmin}},
	StatusPreparing: {roles: []auth.Role{auth.RoleAdmin}},
	StatusReady:     {roles: []auth.Role{auth.RoleAdmin}},
	StatusOutForDelivery: {
		roles: []auth.Role{auth.RoleAdmin, auth.RoleDelivery},
	},
	StatusDelivered: {
		roles:      []auth.Role{auth.RoleAdmin, auth.RoleDelivery},
		requireOTP: map[auth.Role]bool{auth.RoleDelivery: true},
	},
	StatusCancelled: {roles: []auth.Role{auth.RoleAdmin}},
}

// Decision is the policy verdict for one requested transition.
type Decision struct {
	Allowed    bool
	RequireOTP bool
	Err        error
}

// Authorize consults the transition table for (role, from, to). The
// terminal guard applies to every role and wins over everything else.
func Authorize(role auth.Role, from, to Status) Decision {
	if from.Terminal() {
		return Decision{Err: ErrAlreadyFinalized}
	}

	r, ok := transitions[to]
	if !ok && role == auth.RoleAdmin {
		return Decision{Err: ErrInvalidStatus}
	}
	// Non-admins only learn about targets they may set.
	if !ok || !roleIn(role, r.roles) {
		return Decision{Err: ErrForbidden}
	}
	return Decision{Allowed: true, RequireOTP: r.requireOTP[role]}
}

func roleIn(role auth.Role, roles []auth.Role) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
