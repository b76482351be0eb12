package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/tracklight/internal/authorization"
	organizationdomain "github.com/smallbiznis/tracklight/internal/organization/domain"
)

type createOrganizationRequest struct {
	Name string `json:"name"`
}

type inviteToOrganizationRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

type changeMemberRoleRequest struct {
	Role string `json:"role"`
}

func (s *Server) CreateOrganization(c *gin.Context) {
	userID, ok := s.userIDFromSession(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req createOrganizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	org, err := s.organizationSvc.Create(c.Request.Context(), userID, organizationdomain.CreateRequest{
		Name: strings.TrimSpace(req.Name),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, org)
}

func (s *Server) CurrentOrganization(c *gin.Context) {
	userID, ok := s.userIDFromSession(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	org, err := s.organizationSvc.Current(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, org)
}

func (s *Server) DeleteOrganization(c *gin.Context) {
	userID, ok := s.userIDFromSession(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	if err := s.organizationSvc.Delete(c.Request.Context(), userID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) ListOrganizationMembers(c *gin.Context) {
	userID, ok := s.userIDFromSession(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	members, err := s.organizationSvc.ListMembers(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": members})
}

func (s *Server) ChangeMemberRole(c *gin.Context) {
	userID, ok := s.userIDFromSession(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	targetID, err := parseSnowflakeParam(c.Param("userId"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req changeMemberRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	role, err := organizationdomain.ParseRole(strings.ToUpper(strings.TrimSpace(req.Role)))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.organizationSvc.ChangeMemberRole(c.Request.Context(), userID, targetID, role); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// RemoveOrganizationMember is not gated by the policy middleware: leaving
// the organization is every member's own right, so the member.remove check
// only applies when removing someone else.
func (s *Server) RemoveOrganizationMember(c *gin.Context) {
	userID, ok := s.userIDFromSession(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	targetID, err := parseSnowflakeParam(c.Param("userId"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if targetID != userID {
		if err := s.authorizeForUser(c, userID, authorization.ObjectMember, authorization.ActionMemberRemove); err != nil {
			AbortWithError(c, err)
			return
		}
	}

	if err := s.organizationSvc.RemoveMember(c.Request.Context(), userID, targetID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) InviteToOrganization(c *gin.Context) {
	userID, ok := s.userIDFromSession(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req inviteToOrganizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	email := strings.TrimSpace(req.Email)
	if email == "" {
		AbortWithError(c, newValidationError("email", "required", "email is required"))
		return
	}
	roleRaw := strings.ToUpper(strings.TrimSpace(req.Role))
	if roleRaw == "" {
		roleRaw = string(organizationdomain.RoleMember)
	}
	role, err := organizationdomain.ParseRole(roleRaw)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	result, err := s.organizationSvc.Invite(c.Request.Context(), userID, organizationdomain.InviteRequest{
		Email: email,
		Role:  role,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

func (s *Server) ListOrganizationInvitations(c *gin.Context) {
	userID, ok := s.userIDFromSession(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	invitations, err := s.organizationSvc.ListInvitations(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": invitations})
}

func (s *Server) CancelOrganizationInvitation(c *gin.Context) {
	userID, ok := s.userIDFromSession(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	invitationID, err := parseSnowflakeParam(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.organizationSvc.CancelInvitation(c.Request.Context(), userID, invitationID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) AcceptOrganizationInvitation(c *gin.Context) {
	userID, ok := s.userIDFromSession(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	token := strings.TrimSpace(c.Param("token"))
	if token == "" {
		AbortWithError(c, invalidRequestError())
		return
	}

	org, err := s.organizationSvc.AcceptInvitation(c.Request.Context(), userID, token)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, org)
}
