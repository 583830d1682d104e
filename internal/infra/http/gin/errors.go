package ginserver

import (
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"glampstay/internal/apperrors"
)

type errorResponse struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

func statusFor(code string) int {
	switch code {
	case apperrors.CodeNotFound:
		return http.StatusNotFound
	case apperrors.CodeConcurrentModification, apperrors.CodeInvalidTransition, apperrors.CodeRequestInProgress:
		return http.StatusConflict
	case apperrors.CodeOverpayment, apperrors.CodeNegativeAmount, apperrors.CodeCurrencyMismatch:
		return http.StatusUnprocessableEntity
	case apperrors.CodeAuthorizationDenied:
		return http.StatusForbidden
	case apperrors.CodeInvalidInput:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, logger *slog.Logger, err error) {
	code := apperrors.Code(err)
	status := statusFor(code)
	if logger != nil {
		fields := []any{"status", status, "code", code, "error", err, "path", c.FullPath()}
		if status >= http.StatusInternalServerError {
			logger.Error("settlement request failed", fields...)
		} else {
			logger.Debug("settlement request rejected", fields...)
		}
	}
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		msg = "internal error"
	}
	c.JSON(status, errorResponse{Code: code, Error: msg})
}

// respondBadRequest reports a body that could not be bound. Money decoding
// errors keep their own code.
func respondBadRequest(c *gin.Context, err error) {
	code := apperrors.Code(err)
	if code == apperrors.CodeInternal {
		code = apperrors.CodeInvalidInput
	}
	c.JSON(statusFor(code), errorResponse{Code: code, Error: err.Error()})
}
