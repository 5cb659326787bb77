package server

import (
	"errors"
	"net/http"

	"fortune-letter/internal/domain"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var kindToStatus = map[string]int{
	"validation":        http.StatusBadRequest,
	"invalid_state":     http.StatusBadRequest,
	"payment_failed":    http.StatusBadRequest,
	"not_found":         http.StatusNotFound,
	"generation_failed": http.StatusInternalServerError,
	"timeout":           http.StatusGatewayTimeout,
	"canceled":          http.StatusRequestTimeout,
}

type errorResponse struct {
	Error     string `json:"error"`
	Kind      string `json:"kind"`
	Retryable bool   `json:"retryable,omitempty"`
}

func httpStatus(err error) int {
	if s, ok := kindToStatus[domain.Kind(err)]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// publicMessage hides internal detail for unclassified failures.
func publicMessage(err error) string {
	var verr *domain.ValidationError
	switch kind := domain.Kind(err); {
	case errors.As(err, &verr):
		return verr.Message
	case kind == "not_found":
		return "order not found"
	case kind == "invalid_state", kind == "payment_failed":
		return err.Error()
	case kind == "generation_failed":
		return "fortune generation failed, please try again shortly"
	case kind == "timeout":
		return "an upstream provider timed out, please try again"
	case kind == "canceled":
		return "request canceled"
	default:
		return "internal server error"
	}
}

func (s *Server) writeError(c *gin.Context, err error) {
	status := httpStatus(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("request_failed",
			zap.String("request_id", c.GetString(ctxRequestID)),
			zap.String("route", route(c)),
			zap.String("kind", domain.Kind(err)),
			zap.Error(err),
		)
	}
	c.AbortWithStatusJSON(status, errorResponse{
		Error:     publicMessage(err),
		Kind:      domain.Kind(err),
		Retryable: domain.Retryable(err),
	})
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{Error: msg, Kind: "validation"})
}
