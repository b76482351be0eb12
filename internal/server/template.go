package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	templatedomain "github.com/smallbiznis/tracklight/internal/template/domain"
)

type createTemplateRequest struct {
	ProjectID       string   `json:"project_id"`
	Name            string   `json:"name"`
	Activity        string   `json:"activity"`
	Subtask         string   `json:"subtask"`
	Description     string   `json:"description"`
	Tags            []string `json:"tags"`
	DurationSeconds int64    `json:"duration_seconds"`
	Billable        bool     `json:"billable"`
	IsDefault       bool     `json:"is_default"`
}

type updateTemplateRequest struct {
	Name            *string  `json:"name"`
	Activity        *string  `json:"activity"`
	Subtask         *string  `json:"subtask"`
	Description     *string  `json:"description"`
	Tags            []string `json:"tags"`
	DurationSeconds *int64   `json:"duration_seconds"`
	Billable        *bool    `json:"billable"`
	IsDefault       *bool    `json:"is_default"`
}

func (s *Server) ListTemplates(c *gin.Context) {
	userID, ok := s.userIDFromSession(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	templates, err := s.templateSvc.List(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": templates})
}

func (s *Server) CreateTemplate(c *gin.Context) {
	userID, ok := s.userIDFromSession(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req createTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	projectID, err := parseSnowflakeParam(req.ProjectID)
	if err != nil {
		AbortWithError(c, newValidationError("project_id", "required", "project id is required"))
		return
	}

	tmpl, err := s.templateSvc.Create(c.Request.Context(), userID, templatedomain.CreateRequest{
		ProjectID:       projectID,
		Name:            strings.TrimSpace(req.Name),
		Activity:        strings.TrimSpace(req.Activity),
		Subtask:         strings.TrimSpace(req.Subtask),
		Description:     req.Description,
		Tags:            req.Tags,
		DurationSeconds: req.DurationSeconds,
		Billable:        req.Billable,
		IsDefault:       req.IsDefault,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, tmpl)
}

func (s *Server) UpdateTemplate(c *gin.Context) {
	userID, ok := s.userIDFromSession(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	id, err := parseSnowflakeParam(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req updateTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	tmpl, err := s.templateSvc.Update(c.Request.Context(), userID, id, templatedomain.UpdateRequest{
		Name:            req.Name,
		Activity:        req.Activity,
		Subtask:         req.Subtask,
		Description:     req.Description,
		Tags:            req.Tags,
		DurationSeconds: req.DurationSeconds,
		Billable:        req.Billable,
		IsDefault:       req.IsDefault,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, tmpl)
}

func (s *Server) DeleteTemplate(c *gin.Context) {
	userID, ok := s.userIDFromSession(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	id, err := parseSnowflakeParam(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.templateSvc.Delete(c.Request.Context(), userID, id); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) InstantiateTemplate(c *gin.Context) {
	userID, ok := s.userIDFromSession(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	id, err := parseSnowflakeParam(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	entryID, err := s.templateSvc.Instantiate(c.Request.Context(), userID, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"entry_id": entryID.String()})
}
