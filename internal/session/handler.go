package session

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"sonicattend/internal/auth"
	"sonicattend/internal/queue"
)

var (
	sessionsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sonic_sessions_started_total",
		Help: "Sessions created.",
	})
	sessionsClosed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sonic_sessions_closed_total",
		Help: "Sessions closed and finalized.",
	})
	claimsAccepted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sonic_claims_accepted_total",
		Help: "Presence claims accepted.",
	})
	heartbeatsRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sonic_heartbeats_total",
		Help: "Heartbeats recorded.",
	})
)

// Handler exposes the coordinator over HTTP.
type Handler struct {
	svc    *Service
	events queue.Queue
	log    *zap.Logger
}

// NewHandler creates the attendance HTTP handler. The queue is optional;
// when nil no audit events are published.
func NewHandler(svc *Service, events queue.Queue, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{svc: svc, events: events, log: log}
}

// Register mounts the attendance routes on an authenticated group.
func (h *Handler) Register(g *gin.RouterGroup) {
	g.POST("/start", h.start)
	g.POST("/detect", h.detect)
	g.POST("/heartbeat", h.heartbeat)
	g.POST("/stop", h.stop)
	g.GET("/stats/:sessionId", h.stats)
	g.GET("/session/:sessionId", h.session)
}

func (h *Handler) start(c *gin.Context) {
	var req struct {
		Subject  string `json:"subject" binding:"required"`
		Duration int    `json:"duration" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "subject and duration are required"})
		return
	}

	sess, token, err := h.svc.CreateSession(c.Request.Context(), auth.SubjectFrom(c), req.Subject, req.Duration)
	if err != nil {
		h.fail(c, err)
		return
	}
	sessionsStarted.Inc()
	h.publish(c, queue.EventSessionStarted, gin.H{"session_id": sess.ID, "owner_id": sess.OwnerID})

	c.JSON(http.StatusCreated, gin.H{
		"message": "Session started successfully",
		"data": gin.H{
			"session":     sess,
			"sonic_code":  sess.Code,
			"sonic_token": token,
		},
	})
}

func (h *Handler) detect(c *gin.Context) {
	var req struct {
		SessionID string `json:"session_id"`
		SonicCode string `json:"sonic_code"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session_id or sonic_code is required"})
		return
	}
	ref := req.SessionID
	if ref == "" {
		ref = req.SonicCode
	}

	rec, err := h.svc.SubmitClaim(c.Request.Context(), ref, auth.SubjectFrom(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	claimsAccepted.Inc()
	h.publish(c, queue.EventClaimAccepted, gin.H{"session_id": rec.SessionID, "subject_id": rec.SubjectID})

	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "Sonic presence detected.",
		"data":    gin.H{"status": rec.Status},
	})
}

func (h *Handler) heartbeat(c *gin.Context) {
	var req struct {
		SessionID string `json:"session_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session_id is required"})
		return
	}

	rec, err := h.svc.RecordHeartbeat(c.Request.Context(), req.SessionID, auth.SubjectFrom(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	heartbeatsRecorded.Inc()

	c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": rec.LastHeartbeat})
}

func (h *Handler) stop(c *gin.Context) {
	sess, summary, err := h.svc.CloseSession(c.Request.Context(), auth.SubjectFrom(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	sessionsClosed.Inc()
	h.publish(c, queue.EventSessionClosed, gin.H{
		"session_id": sess.ID,
		"confirmed":  summary.Confirmed,
		"invalid":    summary.Invalid,
	})

	c.JSON(http.StatusOK, gin.H{
		"message": "Session stopped and attendance finalized",
		"summary": summary,
	})
}

func (h *Handler) stats(c *gin.Context) {
	count, records, err := h.svc.GetStats(c.Request.Context(), c.Param("sessionId"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if records == nil {
		records = []Record{}
	}
	c.JSON(http.StatusOK, gin.H{"count": count, "students": records})
}

func (h *Handler) session(c *gin.Context) {
	sess, err := h.svc.GetSession(c.Request.Context(), c.Param("sessionId"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

// fail maps coordinator errors onto the wire. Unrecognized errors are
// storage-side and reported retryable.
func (h *Handler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, ErrExpired):
		c.JSON(http.StatusBadRequest, gin.H{"status": "rejected", "reason": "Session expired"})
	case errors.Is(err, ErrActiveExists):
		c.JSON(http.StatusConflict, gin.H{"error": "an active session already exists"})
	default:
		h.log.Error("storage failure", zap.Error(err), zap.String("path", c.FullPath()))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "temporarily unavailable"})
	}
}

func (h *Handler) publish(c *gin.Context, eventType string, body gin.H) {
	if h.events == nil {
		return
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return
	}
	if err := h.events.Publish(c.Request.Context(), queue.Message{Type: eventType, Body: payload}); err != nil {
		h.log.Warn("audit event publish failed", zap.String("type", eventType), zap.Error(err))
	}
}
