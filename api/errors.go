package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/xraph/go-utils/errs"

	"github.com/xraph/mockprep"
	"github.com/xraph/mockprep/identity/google"
)

// httpError maps a domain error onto an HTTP error with a status code and
// a client-safe message. Unknown errors become a bare 500.
func httpError(err error) errs.HTTPError {
	var he errs.HTTPError
	if errors.As(err, &he) {
		return he
	}

	switch {
	case errors.Is(err, mockprep.ErrInvalidCredentials):
		return errs.Unauthorized("invalid email or password")
	case errors.Is(err, google.ErrInvalidToken):
		return errs.Unauthorized("invalid Google credential")
	case errors.Is(err, mockprep.ErrUnauthorized):
		return errs.Unauthorized("authentication required")
	case errors.Is(err, mockprep.ErrUserInactive):
		return errs.Forbidden("account is inactive")
	case errors.Is(err, mockprep.ErrForbidden):
		return errs.Forbidden("insufficient permissions")
	case errors.Is(err, mockprep.ErrInsufficientCredits):
		return errs.NewHTTPError(http.StatusPaymentRequired, "insufficient credits")
	case errors.Is(err, mockprep.ErrWebhookSignature):
		return errs.BadRequest("invalid webhook signature")
	case errors.Is(err, mockprep.ErrPaymentNotPaid):
		return errs.BadRequest(err.Error())
	case mockprep.IsNotFound(err):
		return errs.NotFound(err.Error())
	case mockprep.IsConflict(err):
		return errs.NewHTTPError(http.StatusConflict, err.Error())
	case mockprep.IsValidation(err):
		return errs.BadRequest(err.Error())
	case errors.Is(err, mockprep.ErrProviderUnavailable):
		return errs.NewHTTPError(http.StatusBadGateway, "payment provider unavailable, try again")
	case errors.Is(err, mockprep.ErrProviderNotConfigured):
		return errs.NewHTTPError(http.StatusServiceUnavailable, "payments are not configured")
	default:
		return errs.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}
}

// fail writes err as a JSON error body and aborts the chain. Server-side
// failures are logged with the request path.
func (s *Server) fail(c *gin.Context, err error) {
	he := httpError(err)
	if he.StatusCode() >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", he.StatusCode(),
			"error", err,
		)
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(he.StatusCode(), he.ResponseBody())
}

func badRequest(msg string) error {
	return errs.BadRequest(msg)
}
