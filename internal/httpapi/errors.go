package httpapi

import (
	"math"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"classattend/internal/attendance"
)

// apiError is the JSON body of every failed request.
type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Details gin.H  `json:"details,omitempty"`
}

// describe maps a validation failure to its HTTP status and body.
func describe(e *attendance.Error) (int, apiError) {
	body := apiError{Message: e.Error()}
	switch e.Kind {
	case attendance.KindNotFound:
		body.Error = e.Entity + "_not_found"
		return http.StatusNotFound, body
	case attendance.KindOutOfRange:
		body.Error = "out_of_range"
		body.Details = gin.H{
			"distance": math.Round(e.Distance*10) / 10,
			"radius":   e.Radius,
		}
		return http.StatusForbidden, body
	case attendance.KindBeaconMismatch:
		body.Error = "beacon_mismatch"
		body.Details = gin.H{"expected": e.ExpectedBeacon, "received": e.ReceivedBeacon}
		return http.StatusForbidden, body
	case attendance.KindCodeMismatch:
		body.Error = "code_mismatch"
		body.Details = gin.H{"expected": e.ExpectedCode}
		return http.StatusForbidden, body
	case attendance.KindMisconfigured:
		body.Error = e.Entity + "_not_configured"
		return http.StatusBadRequest, body
	case attendance.KindTooEarly:
		body.Error = "too_early"
		body.Details = gin.H{"minutesUntilStart": e.Minutes}
		return http.StatusBadRequest, body
	case attendance.KindWindowExpired:
		body.Error = "window_expired"
		body.Details = gin.H{"minutesLate": e.Minutes}
		return http.StatusBadRequest, body
	case attendance.KindAlreadyMarked:
		body.Error = "already_marked"
		return http.StatusBadRequest, body
	default:
		body.Error = "invalid_request"
		return http.StatusBadRequest, body
	}
}

// fail writes err as JSON. Anything that is not a validation failure is
// logged and hidden behind a generic 500.
func (h *Handler) fail(c *gin.Context, err error, fields ...zap.Field) string {
	if e, ok := attendance.AsError(err); ok {
		status, body := describe(e)
		c.JSON(status, body)
		return body.Error
	}
	_ = c.Error(err)
	h.log.Error("request failed", append(fields, zap.String("path", c.FullPath()), zap.Error(err))...)
	c.JSON(http.StatusInternalServerError, apiError{Error: "internal_error", Message: "internal server error"})
	return "internal_error"
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, apiError{Error: "invalid_request", Message: err.Error()})
}
