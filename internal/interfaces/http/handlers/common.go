package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/meshdecomp/pkg/errors"
)

// ErrorResponse is the standard error response body.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// statusFor maps an application error code to an HTTP status.
func statusFor(err error) int {
	switch code := errors.GetCode(err); {
	case code == errors.CodeNotFound:
		return http.StatusNotFound
	case code == errors.CodeInvalidParam, code == errors.CodeValidation:
		return http.StatusBadRequest
	case code == errors.CodeNotImplemented:
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

// writeAppError writes err as an ErrorResponse.  Internal errors are masked.
func writeAppError(c *gin.Context, err error) {
	status := statusFor(err)
	resp := ErrorResponse{Code: string(errors.GetCode(err)), Message: err.Error()}
	if status == http.StatusInternalServerError {
		resp = ErrorResponse{Code: string(errors.CodeInternal), Message: "internal server error"}
	}
	c.AbortWithStatusJSON(status, resp)
}
