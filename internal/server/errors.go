package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	authdomain "github.com/smallbiznis/tracklight/internal/auth/domain"
	"github.com/smallbiznis/tracklight/internal/authorization"
	organizationdomain "github.com/smallbiznis/tracklight/internal/organization/domain"
	projectdomain "github.com/smallbiznis/tracklight/internal/project/domain"
	recurringdomain "github.com/smallbiznis/tracklight/internal/recurring/domain"
	templatedomain "github.com/smallbiznis/tracklight/internal/template/domain"
	timeentrydomain "github.com/smallbiznis/tracklight/internal/timeentry/domain"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrConflict       = errors.New("conflict")
	ErrInternal       = errors.New("internal_error")
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func classifyErrorForLog(err error) (string, string) {
	_, payload := mapError(err)
	return payload.Type, payload.Type
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if isValidationError(err) {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   "request",
					Code:    "invalid_value",
					Message: err.Error(),
				},
			},
		}
	}

	switch {
	case isUnauthorizedError(err):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case isForbiddenError(err):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: err.Error(),
		}
	case isConflictError(err):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: err.Error(),
		}
	case isGoneError(err):
		return http.StatusGone, errorPayload{
			Type:    "gone",
			Message: err.Error(),
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, authdomain.ErrWeakPassword),
		errors.Is(err, authdomain.ErrResetTokenInvalid),
		errors.Is(err, authdomain.ErrResetTokenExpired),
		errors.Is(err, organizationdomain.ErrInvalidName),
		errors.Is(err, organizationdomain.ErrInvalidRole),
		errors.Is(err, projectdomain.ErrInvalidName),
		errors.Is(err, timeentrydomain.ErrInvalidTimeRange),
		errors.Is(err, timeentrydomain.ErrEmptyComment),
		errors.Is(err, recurringdomain.ErrInvalidName),
		errors.Is(err, recurringdomain.ErrInvalidFrequency),
		errors.Is(err, recurringdomain.ErrInvalidSchedule),
		errors.Is(err, recurringdomain.ErrInvalidDuration),
		errors.Is(err, templatedomain.ErrInvalidName),
		errors.Is(err, authorization.ErrInvalidActor),
		errors.Is(err, authorization.ErrInvalidOrganization),
		errors.Is(err, authorization.ErrInvalidObject),
		errors.Is(err, authorization.ErrInvalidAction):
		return true
	default:
		return false
	}
}

func isUnauthorizedError(err error) bool {
	switch {
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, authdomain.ErrInvalidCredentials),
		errors.Is(err, authdomain.ErrInvalidSession),
		errors.Is(err, authdomain.ErrSessionNotFound),
		errors.Is(err, authdomain.ErrSessionExpired),
		errors.Is(err, authdomain.ErrSessionRevoked):
		return true
	default:
		return false
	}
}

func isForbiddenError(err error) bool {
	switch {
	case errors.Is(err, ErrForbidden),
		errors.Is(err, authorization.ErrForbidden),
		errors.Is(err, organizationdomain.ErrForbidden),
		errors.Is(err, organizationdomain.ErrOwnerImmutable),
		errors.Is(err, organizationdomain.ErrOwnerCannotLeave),
		errors.Is(err, projectdomain.ErrForbidden),
		errors.Is(err, timeentrydomain.ErrForbidden):
		return true
	default:
		return false
	}
}

func isConflictError(err error) bool {
	switch {
	case errors.Is(err, ErrConflict),
		errors.Is(err, authdomain.ErrUserExists),
		errors.Is(err, timeentrydomain.ErrTimerAlreadyRunning),
		errors.Is(err, organizationdomain.ErrDuplicateInvitation),
		errors.Is(err, organizationdomain.ErrAlreadyInOrganization),
		errors.Is(err, organizationdomain.ErrInvitationNotPending),
		errors.Is(err, organizationdomain.ErrSlugTaken),
		errors.Is(err, projectdomain.ErrDuplicateInvitation),
		errors.Is(err, projectdomain.ErrAlreadyMember),
		errors.Is(err, projectdomain.ErrAlreadyFavorite),
		errors.Is(err, projectdomain.ErrInvitationNotPending),
		errors.Is(err, recurringdomain.ErrAlreadyMaterialized):
		return true
	default:
		return false
	}
}

// Expired invitations are Gone, not NotFound: the caller held a real link
// that stopped working, and the UI wants to say so.
func isGoneError(err error) bool {
	switch {
	case errors.Is(err, organizationdomain.ErrInvitationExpired),
		errors.Is(err, projectdomain.ErrInvitationExpired):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, authdomain.ErrUserNotFound),
		errors.Is(err, organizationdomain.ErrOrgNotFound),
		errors.Is(err, organizationdomain.ErrMemberNotFound),
		errors.Is(err, organizationdomain.ErrInvitationNotFound),
		errors.Is(err, organizationdomain.ErrNotInOrganization),
		errors.Is(err, projectdomain.ErrProjectNotFound),
		errors.Is(err, projectdomain.ErrTaskNotFound),
		errors.Is(err, projectdomain.ErrMemberNotFound),
		errors.Is(err, projectdomain.ErrInvitationNotFound),
		errors.Is(err, timeentrydomain.ErrEntryNotFound),
		errors.Is(err, timeentrydomain.ErrCommentNotFound),
		errors.Is(err, timeentrydomain.ErrNoRunningTimer),
		errors.Is(err, recurringdomain.ErrNotFound),
		errors.Is(err, templatedomain.ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}
