package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/ripplehq/ripple-backend/internal/domain"
	"github.com/ripplehq/ripple-backend/pkg/logger"
)

// ErrorResponse is the uniform error envelope. Code carries the stable
// machine-readable value clients branch on; Error is for humans.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// respondError maps a use-case error onto an HTTP status through the
// domain taxonomy. Unrecognized errors log and surface as 500 without
// leaking detail.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrUnauthenticated):
		status = http.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden),
		errors.Is(err, domain.ErrBlocked),
		errors.Is(err, domain.ErrNotParticipant),
		errors.Is(err, domain.ErrNotGroupAdmin):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrProfileNotFound),
		errors.Is(err, domain.ErrWaveNotFound),
		errors.Is(err, domain.ErrConversationNotFound),
		errors.Is(err, domain.ErrMessageNotFound),
		errors.Is(err, domain.ErrInvalidInviteCode):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrConflict),
		errors.Is(err, domain.ErrWaveAlreadyExists),
		errors.Is(err, domain.ErrWaveNotPending),
		errors.Is(err, domain.ErrGroupFull),
		errors.Is(err, domain.ErrAlreadyMember),
		errors.Is(err, domain.ErrOwnerMustTransfer):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrModerationRejected):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrTransient):
		status = http.StatusServiceUnavailable
	}

	message := err.Error()
	if status == http.StatusInternalServerError {
		logger.L().Error("unhandled error", zap.String("path", c.FullPath()), zap.Error(err))
		message = "internal error"
	}
	c.JSON(status, ErrorResponse{Error: message, Code: domain.Code(err)})
}

func respondBindError(c *gin.Context, err error) {
	message := err.Error()
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		parts := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			parts = append(parts, fmt.Sprintf("%s failed on %q", fe.Field(), fe.Tag()))
		}
		message = strings.Join(parts, "; ")
	}
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: message, Code: "invalid_input"})
}

// currentUserID reads the authenticated user set by the auth middleware.
func currentUserID(c *gin.Context) (int, bool) {
	v, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Code: "unauthenticated"})
		return 0, false
	}
	return v.(int), true
}
