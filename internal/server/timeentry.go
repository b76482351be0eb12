package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	timeentrydomain "github.com/smallbiznis/tracklight/internal/timeentry/domain"
	"github.com/smallbiznis/tracklight/pkg/db/pagination"
)

type createEntryRequest struct {
	ProjectID   string   `json:"project_id"`
	TaskID      string   `json:"task_id"`
	StartTime   string   `json:"start_time"`
	EndTime     string   `json:"end_time"`
	Billable    bool     `json:"billable"`
	Activity    string   `json:"activity"`
	Subtask     string   `json:"subtask"`
	Notes       string   `json:"notes"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

type updateEntryRequest struct {
	TaskID      string   `json:"task_id"`
	StartTime   string   `json:"start_time"`
	EndTime     string   `json:"end_time"`
	Billable    *bool    `json:"billable"`
	Activity    *string  `json:"activity"`
	Subtask     *string  `json:"subtask"`
	Notes       *string  `json:"notes"`
	Description *string  `json:"description"`
	Tags        []string `json:"tags"`
}

type startTimerRequest struct {
	ProjectID   string   `json:"project_id"`
	TaskID      string   `json:"task_id"`
	Activity    string   `json:"activity"`
	Subtask     string   `json:"subtask"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

type addCommentRequest struct {
	Content string `json:"content"`
}

// visibilityFromQuery reads the audience selectors shared by entry listing
// and reporting: all_members expands to the whole organization, user_id
// narrows to one colleague.
func visibilityFromQuery(c *gin.Context) (timeentrydomain.VisibilityOpts, error) {
	allMembers, err := parseOptionalBool(c.Query("all_members"))
	if err != nil {
		return timeentrydomain.VisibilityOpts{}, invalidRequestError()
	}
	targetUserID, err := parseOptionalSnowflakeID(c.Query("user_id"))
	if err != nil {
		return timeentrydomain.VisibilityOpts{}, invalidRequestError()
	}
	return timeentrydomain.VisibilityOpts{
		AllMembers:   allMembers,
		TargetUserID: targetUserID,
	}, nil
}

func (s *Server) ListEntries(c *gin.Context) {
	userID, ok := s.userIDFromSession(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	visibility, err := visibilityFromQuery(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	from, err := parseOptionalTime(c.Query("from"), false)
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	to, err := parseOptionalTime(c.Query("to"), true)
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	projectID, err := parseOptionalSnowflakeID(c.Query("project_id"))
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	pageSize, err := parseOptionalInt(c.Query("page_size"))
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	entries, pageInfo, err := s.entrySvc.List(c.Request.Context(), userID, timeentrydomain.ListQuery{
		Visibility: visibility,
		From:       from,
		To:         to,
		ProjectID:  projectID,
		Pagination: pagination.Pagination{
			PageToken: strings.TrimSpace(c.Query("page_token")),
			PageSize:  pageSize,
		},
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": entries, "page_info": pageInfo})
}

func (s *Server) CreateEntry(c *gin.Context) {
	userID, ok := s.userIDFromSession(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req createEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	projectID, err := parseSnowflakeParam(req.ProjectID)
	if err != nil {
		AbortWithError(c, newValidationError("project_id", "required", "project id is required"))
		return
	}
	taskID, err := parseOptionalSnowflakeID(req.TaskID)
	if err != nil {
		AbortWithError(c, newValidationError("task_id", "invalid", "invalid task id"))
		return
	}
	startTime, err := parseRequiredTime(req.StartTime)
	if err != nil {
		AbortWithError(c, newValidationError("start_time", "invalid", "invalid start time"))
		return
	}
	endTime, err := parseOptionalTime(req.EndTime, false)
	if err != nil {
		AbortWithError(c, newValidationError("end_time", "invalid", "invalid end time"))
		return
	}

	entry, err := s.entrySvc.Create(c.Request.Context(), userID, timeentrydomain.CreateRequest{
		ProjectID:   projectID,
		TaskID:      taskID,
		StartTime:   startTime,
		EndTime:     endTime,
		Billable:    req.Billable,
		Activity:    strings.TrimSpace(req.Activity),
		Subtask:     strings.TrimSpace(req.Subtask),
		Notes:       req.Notes,
		Description: req.Description,
		Tags:        req.Tags,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, entry)
}

func (s *Server) UpdateEntry(c *gin.Context) {
	userID, ok := s.userIDFromSession(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	entryID, err := parseSnowflakeParam(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req updateEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	taskID, err := parseOptionalSnowflakeID(req.TaskID)
	if err != nil {
		AbortWithError(c, newValidationError("task_id", "invalid", "invalid task id"))
		return
	}
	startTime, err := parseOptionalTime(req.StartTime, false)
	if err != nil {
		AbortWithError(c, newValidationError("start_time", "invalid", "invalid start time"))
		return
	}
	endTime, err := parseOptionalTime(req.EndTime, false)
	if err != nil {
		AbortWithError(c, newValidationError("end_time", "invalid", "invalid end time"))
		return
	}

	entry, err := s.entrySvc.Update(c.Request.Context(), userID, entryID, timeentrydomain.UpdateRequest{
		TaskID:      taskID,
		StartTime:   startTime,
		EndTime:     endTime,
		Billable:    req.Billable,
		Activity:    req.Activity,
		Subtask:     req.Subtask,
		Notes:       req.Notes,
		Description: req.Description,
		Tags:        req.Tags,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, entry)
}

func (s *Server) DeleteEntry(c *gin.Context) {
	userID, ok := s.userIDFromSession(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	entryID, err := parseSnowflakeParam(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.entrySvc.Delete(c.Request.Context(), userID, entryID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// -------- Timer --------

func (s *Server) StartTimer(c *gin.Context) {
	userID, ok := s.userIDFromSession(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req startTimerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	projectID, err := parseSnowflakeParam(req.ProjectID)
	if err != nil {
		AbortWithError(c, newValidationError("project_id", "required", "project id is required"))
		return
	}
	taskID, err := parseOptionalSnowflakeID(req.TaskID)
	if err != nil {
		AbortWithError(c, newValidationError("task_id", "invalid", "invalid task id"))
		return
	}

	entry, err := s.entrySvc.StartTimer(c.Request.Context(), userID, timeentrydomain.StartRequest{
		ProjectID:   projectID,
		TaskID:      taskID,
		Activity:    strings.TrimSpace(req.Activity),
		Subtask:     strings.TrimSpace(req.Subtask),
		Description: req.Description,
		Tags:        req.Tags,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, entry)
}

func (s *Server) StopTimer(c *gin.Context) {
	userID, ok := s.userIDFromSession(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	entry, err := s.entrySvc.StopTimer(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, entry)
}

func (s *Server) RunningTimer(c *gin.Context) {
	userID, ok := s.userIDFromSession(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	entry, err := s.entrySvc.RunningTimer(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, entry)
}

// -------- Comments --------

func (s *Server) ListComments(c *gin.Context) {
	userID, ok := s.userIDFromSession(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	entryID, err := parseSnowflakeParam(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	comments, err := s.entrySvc.ListComments(c.Request.Context(), userID, entryID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": comments})
}

func (s *Server) AddComment(c *gin.Context) {
	userID, ok := s.userIDFromSession(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	entryID, err := parseSnowflakeParam(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req addCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	comment, err := s.entrySvc.AddComment(c.Request.Context(), userID, entryID, req.Content)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, comment)
}

func (s *Server) DeleteComment(c *gin.Context) {
	userID, ok := s.userIDFromSession(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	commentID, err := parseSnowflakeParam(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.entrySvc.DeleteComment(c.Request.Context(), userID, commentID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// -------- Reports --------

func (s *Server) Summary(c *gin.Context) {
	userID, ok := s.userIDFromSession(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	visibility, err := visibilityFromQuery(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	from, err := parseOptionalTime(c.Query("from"), false)
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	to, err := parseOptionalTime(c.Query("to"), true)
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	projectID, err := parseOptionalSnowflakeID(c.Query("project_id"))
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	rows, err := s.entrySvc.Summary(c.Request.Context(), userID, timeentrydomain.SummaryQuery{
		Visibility: visibility,
		From:       from,
		To:         to,
		ProjectID:  projectID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": rows})
}
