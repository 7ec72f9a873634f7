package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"campushub/internal/account"
	"campushub/internal/auth"
	"campushub/internal/blob"
	"campushub/internal/dashboard"
	"campushub/internal/notice"
	"campushub/internal/portal"
	"campushub/internal/profile"
	"campushub/internal/records"
	"campushub/internal/session"
)

func statusFor(err error) int {
	switch {
	case errors.Is(err, records.ErrNotFound), errors.Is(err, dashboard.ErrUnknownTab), errors.Is(err, session.ErrDemoDisabled):
		return http.StatusNotFound
	case errors.Is(err, records.ErrInvalid), errors.Is(err, records.ErrUnknownColumn), errors.Is(err, records.ErrUnknownTable),
		errors.Is(err, account.ErrWeakPassword), errors.Is(err, profile.ErrNoRole), errors.Is(err, dashboard.ErrNoBucket), errors.Is(err, dashboard.ErrTooManyFiles),
		errors.Is(err, errBadForm):
		return http.StatusBadRequest
	case errors.Is(err, account.ErrEmailTaken):
		return http.StatusConflict
	case errors.Is(err, account.ErrInvalidCredentials), errors.Is(err, account.ErrTokenNotFound), errors.Is(err, account.ErrUnknownUser),
		errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrWrongKind):
		return http.StatusUnauthorized
	case errors.Is(err, portal.ErrNotOwner), errors.Is(err, dashboard.ErrSelfService):
		return http.StatusForbidden
	case errors.Is(err, blob.ErrUnsupportedType):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, blob.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}

// fail writes an error body. Internal errors are not echoed to the client.
func fail(c *gin.Context, err error, notices notice.List) {
	status := statusFor(err)
	_ = c.Error(err)
	body := gin.H{"error": err.Error()}
	if status == http.StatusInternalServerError {
		body["error"] = "internal error"
	}
	var verr *records.ValidationError
	if errors.As(err, &verr) {
		body["fields"] = verr.Fields
	}
	if len(notices) > 0 {
		body["notices"] = notices
	}
	c.JSON(status, body)
}
