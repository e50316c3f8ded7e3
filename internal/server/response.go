package server

import (
	stderrors "errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kapu/sitcom-match-go/pkg/errors"
)

type errorResponse struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	Details   string `json:"details,omitempty"`
	Code      string `json:"code"`
	Timestamp string `json:"timestamp"`
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// respondError writes the error envelope. Client errors carry their own
// message; server errors show generic instead. Details only appear in
// diagnostics mode.
func (s *Server) respondError(c *gin.Context, err error, generic string) {
	status := errors.StatusOf(err)
	message := generic
	if status < http.StatusInternalServerError {
		message = clientMessage(err, generic)
	}

	fields := []zap.Field{
		zap.String("path", c.Request.URL.Path),
		zap.Int("status", status),
		zap.String("code", errors.CodeOf(err)),
		zap.String("request_id", c.GetString(requestIDKey)),
		zap.Error(err),
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("Request failed", fields...)
	} else {
		s.logger.Info("Request rejected", fields...)
	}

	body := errorResponse{
		Success:   false,
		Error:     message,
		Code:      errors.CodeOf(err),
		Timestamp: timestamp(),
	}
	if s.cfg.Diagnostics {
		body.Details = err.Error()
	}
	c.AbortWithStatusJSON(status, body)
}

func clientMessage(err error, fallback string) string {
	var (
		ve *errors.ValidationError
		ae *errors.AuthError
		ne *errors.NotFoundError
	)
	switch {
	case stderrors.As(err, &ve):
		return ve.Message
	case stderrors.As(err, &ae):
		return ae.Message
	case stderrors.As(err, &ne):
		return ne.Message
	default:
		return fallback
	}
}
