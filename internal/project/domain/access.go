package domain

import "github.com/bwmarrin/snowflake"

// CanAccess implements the project read rule: the owner, any project member,
// and anyone in the project's organization may read and contribute.
func CanAccess(p *Project, userID snowflake.ID, userOrgID *snowflake.ID, isMember bool) bool {
	if p == nil {
		return false
	}
	if p.OwnerID == userID {
		return true
	}
	if isMember {
		return true
	}
	if p.OrganizationID != nil && userOrgID != nil && *p.OrganizationID == *userOrgID {
		return true
	}
	return false
}

// CanModify implements the project write rule: strictly owner-only. Neither
// organization membership nor a project member row grants owner-level
// control.
func CanModify(p *Project, userID snowflake.ID) bool {
	return p != nil && p.OwnerID == userID
}
