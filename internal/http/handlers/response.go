// Package handlers provides the HTTP handler implementations for the public
// comment API.
//
// This file defines the response utilities shared by all endpoints: the
// structured error envelope, and helpers for writing success and failure
// responses in a uniform shape.
//
// Conventions:
//   - Every error response is an ErrorResponse with a stable `code`.
//   - fail() centralizes formatting and logs 5xx responses with request
//     context.
//
// Example error response:
//
//	HTTP/1.1 400 Bad Request
//	{
//	  "request_id": "123e4567-e89b-12d3-a456-426614174000",
//	  "code": "bad_request",
//	  "message": "text required"
//	}
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/aarush2807/aarushpathuri-dev/internal/http/middleware"
)

// ErrorResponse is the standard error envelope returned by all endpoints.
//
// RequestID echoes the X-Request-ID header so client errors can be
// correlated with server logs. Code is a stable machine-readable string
// (see errors.go); Message is safe to show to users and never exposes
// internal detail beyond the kind of failure.
type ErrorResponse struct {
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	Code      string `json:"code" example:"bad_request"`
	Message   string `json:"message" example:"text required"`
}

// fail aborts the request with a structured error. Server-side errors
// (>= 500) are logged with the request-scoped logger.
func fail(c *gin.Context, status int, code, msg string) {
	reqID := c.Writer.Header().Get("X-Request-ID")
	resp := ErrorResponse{
		RequestID: reqID,
		Code:      code,
		Message:   msg,
	}

	if status >= http.StatusInternalServerError {
		lg := middleware.LoggerFrom(c)
		lg.Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg).
			Msg("api error")
	}

	c.AbortWithStatusJSON(status, resp)
}

// Fail is the exported variant of fail(), used by router-level fallbacks
// (NoRoute/NoMethod) to keep the envelope consistent.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// ok writes a success JSON response.
func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}
