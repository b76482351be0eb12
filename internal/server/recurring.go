package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	recurringdomain "github.com/smallbiznis/tracklight/internal/recurring/domain"
)

type createRecurringRequest struct {
	ProjectID       string   `json:"project_id"`
	Name            string   `json:"name"`
	Activity        string   `json:"activity"`
	Subtask         string   `json:"subtask"`
	Description     string   `json:"description"`
	Tags            []string `json:"tags"`
	DurationSeconds int64    `json:"duration_seconds"`
	Billable        bool     `json:"billable"`
	Frequency       string   `json:"frequency"`
	DaysOfWeek      []int    `json:"days_of_week"`
	DayOfMonth      *int     `json:"day_of_month"`
	StartDate       string   `json:"start_date"`
	EndDate         string   `json:"end_date"`
}

type updateRecurringRequest struct {
	Name            *string  `json:"name"`
	Activity        *string  `json:"activity"`
	Subtask         *string  `json:"subtask"`
	Description     *string  `json:"description"`
	Tags            []string `json:"tags"`
	DurationSeconds *int64   `json:"duration_seconds"`
	Billable        *bool    `json:"billable"`
	Frequency       *string  `json:"frequency"`
	DaysOfWeek      []int    `json:"days_of_week"`
	DayOfMonth      *int     `json:"day_of_month"`
	StartDate       string   `json:"start_date"`
	EndDate         string   `json:"end_date"`
	Active          *bool    `json:"active"`
}

func (s *Server) ListRecurring(c *gin.Context) {
	userID, ok := s.userIDFromSession(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	entries, err := s.recurringSvc.List(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": entries})
}

func (s *Server) CreateRecurring(c *gin.Context) {
	userID, ok := s.userIDFromSession(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req createRecurringRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	projectID, err := parseSnowflakeParam(req.ProjectID)
	if err != nil {
		AbortWithError(c, newValidationError("project_id", "required", "project id is required"))
		return
	}
	startDate, err := parseRequiredTime(req.StartDate)
	if err != nil {
		AbortWithError(c, newValidationError("start_date", "invalid", "invalid start date"))
		return
	}
	endDate, err := parseOptionalTime(req.EndDate, false)
	if err != nil {
		AbortWithError(c, newValidationError("end_date", "invalid", "invalid end date"))
		return
	}

	entry, err := s.recurringSvc.Create(c.Request.Context(), userID, recurringdomain.CreateRequest{
		ProjectID:       projectID,
		Name:            strings.TrimSpace(req.Name),
		Activity:        strings.TrimSpace(req.Activity),
		Subtask:         strings.TrimSpace(req.Subtask),
		Description:     req.Description,
		Tags:            req.Tags,
		DurationSeconds: req.DurationSeconds,
		Billable:        req.Billable,
		Frequency:       strings.ToUpper(strings.TrimSpace(req.Frequency)),
		DaysOfWeek:      req.DaysOfWeek,
		DayOfMonth:      req.DayOfMonth,
		StartDate:       startDate,
		EndDate:         endDate,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, entry)
}

func (s *Server) UpdateRecurring(c *gin.Context) {
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

	var req updateRecurringRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	startDate, err := parseOptionalTime(req.StartDate, false)
	if err != nil {
		AbortWithError(c, newValidationError("start_date", "invalid", "invalid start date"))
		return
	}
	endDate, err := parseOptionalTime(req.EndDate, false)
	if err != nil {
		AbortWithError(c, newValidationError("end_date", "invalid", "invalid end date"))
		return
	}

	var frequency *string
	if req.Frequency != nil {
		normalized := strings.ToUpper(strings.TrimSpace(*req.Frequency))
		frequency = &normalized
	}

	entry, err := s.recurringSvc.Update(c.Request.Context(), userID, id, recurringdomain.UpdateRequest{
		Name:            req.Name,
		Activity:        req.Activity,
		Subtask:         req.Subtask,
		Description:     req.Description,
		Tags:            req.Tags,
		DurationSeconds: req.DurationSeconds,
		Billable:        req.Billable,
		Frequency:       frequency,
		DaysOfWeek:      req.DaysOfWeek,
		DayOfMonth:      req.DayOfMonth,
		StartDate:       startDate,
		EndDate:         endDate,
		Active:          req.Active,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, entry)
}

func (s *Server) DeleteRecurring(c *gin.Context) {
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

	if err := s.recurringSvc.Delete(c.Request.Context(), userID, id); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
