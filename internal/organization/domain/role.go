package domain

// Role is a member's standing within an organization. Authority comparisons
// go through Level so the ordering lives in exactly one place.
type Role string

const (
	RoleMember Role = "MEMBER"
	RoleAdmin  Role = "ADMIN"
	RoleOwner  Role = "OWNER"
)

// ParseRole validates a wire-format role string.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleMember, RoleAdmin, RoleOwner:
		return Role(s), nil
	default:
		return "", ErrInvalidRole
	}
}

// Level returns the role's rank in the total order MEMBER < ADMIN < OWNER.
// Unknown roles rank below MEMBER.
func (r Role) Level() int {
	switch r {
	case RoleOwner:
		return 3
	case RoleAdmin:
		return 2
	case RoleMember:
		return 1
	default:
		return 0
	}
}

func (r Role) AtLeast(other Role) bool {
	return r.Level() >= other.Level()
}

func (r Role) String() string { return string(r) }

// CanChangeRole reports whether an actor with role actor may change the role
// of a member with role target. The owner's role is immutable, and an ADMIN
// may not act on another ADMIN.
func CanChangeRole(actor, target Role) error {
	if target == RoleOwner {
		return ErrOwnerImmutable
	}
	if !actor.AtLeast(RoleAdmin) {
		return ErrForbidden
	}
	if target == RoleAdmin && actor != RoleOwner {
		return ErrForbidden
	}
	return nil
}

// CanRemoveMember applies the same authority rule as CanChangeRole, except
// that any member may remove themselves. The owner cannot leave through the
// remove path and must delete the organization instead.
func CanRemoveMember(actor, target Role, self bool) error {
	if self {
		if target == RoleOwner {
			return ErrOwnerCannotLeave
		}
		return nil
	}
	return CanChangeRole(actor, target)
}

// CanInvite reports whether an actor may invite a new member at the given
// role. Only the owner may mint ADMINs, and OWNER is never invitable.
func CanInvite(actor, invited Role) error {
	if invited == RoleOwner {
		return ErrForbidden
	}
	if !actor.AtLeast(RoleAdmin) {
		return ErrForbidden
	}
	if invited == RoleAdmin && actor != RoleOwner {
		return ErrForbidden
	}
	return nil
}
