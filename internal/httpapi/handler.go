package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"classattend/internal/attendance"
	"classattend/internal/auth"
	"classattend/internal/metrics"
)

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Handler serves the attendance API.
type Handler struct {
	svc          *attendance.Service
	issuer       *auth.Issuer
	refresh      auth.RefreshStore
	checks       map[string]HealthCheck
	log          *zap.Logger
	authDisabled bool
}

// Options configures a Handler.
type Options struct {
	Service      *attendance.Service
	Issuer       *auth.Issuer
	Refresh      auth.RefreshStore
	Checks       map[string]HealthCheck
	Logger       *zap.Logger
	AuthDisabled bool
}

func New(opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		svc:          opts.Service,
		issuer:       opts.Issuer,
		refresh:      opts.Refresh,
		checks:       opts.Checks,
		log:          logger,
		authDisabled: opts.AuthDisabled,
	}
}

var registerOnce sync.Once

// RegisterValidators adds the custom binding rules used by request structs to
// gin's validator engine.
func RegisterValidators() {
	registerOnce.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
				return strings.TrimSpace(fl.Field().String()) != ""
			})
		}
	})
}

// Register mounts all routes on r.
func (h *Handler) Register(r gin.IRouter) {
	RegisterValidators()

	r.GET("/healthz", h.Healthz)

	v1 := r.Group("/v1")
	v1.POST("/devices/register", h.RegisterDevice)
	v1.POST("/tokens/refresh", h.RefreshToken)

	students := v1.Group("")
	if !h.authDisabled {
		students.Use(auth.StudentAuth(h.issuer))
	}
	students.GET("/students/:roll/notifications", h.Notifications)
	students.GET("/students/:roll/attendance", h.History)
	students.POST("/attendance", h.SubmitAttendance)
}

// ---------- Health ----------

func (h *Handler) Healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	result := gin.H{"status": "ok"}
	for name, check := range h.checks {
		healthy := check(ctx) == nil
		result[name] = healthy
		if !healthy {
			status = http.StatusServiceUnavailable
			result["status"] = "degraded"
		}
	}
	c.JSON(status, result)
}

// ---------- Devices & tokens ----------

type registerDeviceRequest struct {
	RollNumber string `json:"rollNumber" binding:"required,notblank"`
	DeviceID   string `json:"deviceId" binding:"required,notblank"`
}

// RegisterDevice binds a device to a student and issues tokens for it.
func (h *Handler) RegisterDevice(c *gin.Context) {
	var req registerDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	err := h.svc.RegisterDevice(c.Request.Context(), req.RollNumber, req.DeviceID)
	if errors.Is(err, attendance.ErrDeviceBound) {
		c.JSON(http.StatusConflict, apiError{Error: "device_already_bound", Message: "this roll number or device is already registered"})
		return
	}
	if err != nil {
		h.fail(c, err, zap.String("roll_number", req.RollNumber))
		return
	}

	h.issueTokens(c, http.StatusCreated, req.RollNumber, req.DeviceID)
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

// RefreshToken exchanges a single-use refresh token for a new pair.
func (h *Handler) RefreshToken(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	claims, err := h.issuer.ParseRefresh(req.RefreshToken)
	if err != nil {
		c.JSON(http.StatusUnauthorized, apiError{Error: "invalid_token", Message: "invalid refresh token"})
		return
	}
	subject, ok, err := h.refresh.Consume(c.Request.Context(), claims.ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	if !ok || subject != claims.Subject {
		c.JSON(http.StatusUnauthorized, apiError{Error: "invalid_token", Message: "refresh token already used or revoked"})
		return
	}

	h.issueTokens(c, http.StatusOK, claims.Subject, claims.DeviceID)
}

func (h *Handler) issueTokens(c *gin.Context, status int, rollNumber, deviceID string) {
	tokens, err := h.issuer.Issue(rollNumber, auth.RoleStudent, deviceID)
	if err != nil {
		h.fail(c, err)
		return
	}
	if err := h.refresh.Save(c.Request.Context(), tokens.RefreshID, rollNumber, h.issuer.RefreshTTL); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(status, gin.H{
		"accessToken":  tokens.AccessToken,
		"refreshToken": tokens.RefreshToken,
		"expiresAt":    tokens.AccessExp.Unix(),
	})
}

// ---------- Attendance ----------

// Notifications lists today's classes with their status.
func (h *Handler) Notifications(c *gin.Context) {
	roll := c.Param("roll")
	if !auth.RequireSubject(c, roll) {
		return
	}
	res, err := h.svc.Notifications(c.Request.Context(), roll)
	if err != nil {
		h.fail(c, err, zap.String("roll_number", roll))
		return
	}
	metrics.NotificationsServed.Inc()
	c.JSON(http.StatusOK, res)
}

// History lists a student's attendance, newest first.
func (h *Handler) History(c *gin.Context) {
	roll := c.Param("roll")
	if !auth.RequireSubject(c, roll) {
		return
	}
	entries, err := h.svc.History(c.Request.Context(), roll)
	if err != nil {
		h.fail(c, err, zap.String("roll_number", roll))
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": entries})
}

type submitRequest struct {
	RollNumber      string   `json:"rollNumber" binding:"required,notblank"`
	ClassName       string   `json:"className" binding:"required,notblank"`
	ClassCode       string   `json:"classCode" binding:"required,notblank"`
	Latitude        *float64 `json:"latitude" binding:"required,latitude"`
	Longitude       *float64 `json:"longitude" binding:"required,longitude"`
	BeaconProximity struct {
		BeaconID string `json:"beaconId"`
	} `json:"beaconProximity"`
}

// SubmitAttendance validates a submission and records it.
func (h *Handler) SubmitAttendance(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		metrics.Submissions.WithLabelValues("invalid_request").Inc()
		badRequest(c, err)
		return
	}
	if !auth.RequireSubject(c, req.RollNumber) {
		metrics.Submissions.WithLabelValues("roll_number_mismatch").Inc()
		return
	}

	receipt, err := h.svc.Submit(c.Request.Context(), attendance.Submission{
		RollNumber: req.RollNumber,
		ClassName:  req.ClassName,
		ClassCode:  req.ClassCode,
		Latitude:   *req.Latitude,
		Longitude:  *req.Longitude,
		BeaconID:   req.BeaconProximity.BeaconID,
	})
	if err != nil {
		if e, ok := attendance.AsError(err); ok && e.Kind == attendance.KindOutOfRange {
			metrics.GeofenceDistance.Observe(e.Distance)
		}
		code := h.fail(c, err, zap.String("roll_number", req.RollNumber), zap.String("class_code", req.ClassCode))
		metrics.Submissions.WithLabelValues(code).Inc()
		return
	}

	metrics.Submissions.WithLabelValues(metrics.OutcomeAccepted).Inc()
	h.log.Info("attendance marked",
		zap.String("roll_number", req.RollNumber),
		zap.String("class_name", receipt.ClassName),
		zap.String("subject", receipt.Subject),
		zap.String("attendance_id", receipt.ID),
	)
	c.JSON(http.StatusCreated, receipt)
}
