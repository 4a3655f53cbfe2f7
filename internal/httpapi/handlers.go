package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"screening-platform/internal/calls"
	"screening-platform/internal/candidates"
	"screening-platform/internal/notify"
	"screening-platform/internal/scheduler"
	"screening-platform/internal/timeexpr"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.

type Handlers struct {
	Calls         *calls.Service
	Candidates    candidates.Store
	Notifications notify.Store
	Scheduler     *scheduler.Scheduler
	Dialer        scheduler.Dialer
	Resolver      *timeexpr.Resolver
}

// --- Call reports (voice engine -> backend) ---

type statusRequest struct {
	CallID      string `json:"call_sid"`
	Status      string `json:"status"`
	PhoneNumber string `json:"phone_number"`
	Direction   string `json:"direction"`
}

// ReportStatus ingests one lifecycle event for a call. Reports are idempotent
// per call_sid; the current record is returned either way.
func (h Handlers) ReportStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	call, err := h.Calls.ReportStatus(c.Request.Context(), calls.StatusReport{
		CallID:      req.CallID,
		Status:      calls.CallStatus(req.Status),
		PhoneNumber: req.PhoneNumber,
		Direction:   calls.Direction(req.Direction),
	})
	if err != nil {
		if errors.Is(err, calls.ErrInvalidReport) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "status report failed"})
		return
	}
	c.JSON(http.StatusOK, call)
}

type finalDataRequest struct {
	CallID string `json:"call_sid"`

	Call struct {
		PhoneNumber       string    `json:"phone_number"`
		StartTime         time.Time `json:"start_time"`
		EndTime           time.Time `json:"end_time"`
		DurationSeconds   int       `json:"duration"`
		TransferRequested bool      `json:"transfer_requested"`
		TransferNumber    string    `json:"transfer_number"`
		RecordingRef      string    `json:"recording_ref"`
		TranscriptRef     string    `json:"transcript_ref"`
		Summary           string    `json:"summary"`
	} `json:"call_data"`

	Candidate candidates.Candidate `json:"candidate_data"`
}

// SaveFinalData ingests the full post-call payload: authoritative timing plus
// the screening snapshot. Creates a fresh candidate row and links it.
func (h Handlers) SaveFinalData(c *gin.Context) {
	var req finalDataRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	call, cand, err := h.Calls.SaveFinalData(c.Request.Context(), calls.FinalReport{
		CallID: req.CallID,
		Data: calls.FinalData{
			PhoneNumber:       req.Call.PhoneNumber,
			StartTime:         req.Call.StartTime,
			EndTime:           req.Call.EndTime,
			DurationSeconds:   req.Call.DurationSeconds,
			TransferRequested: req.Call.TransferRequested,
			TransferNumber:    req.Call.TransferNumber,
			RecordingRef:      req.Call.RecordingRef,
			TranscriptRef:     req.Call.TranscriptRef,
			Summary:           req.Call.Summary,
		},
		Snapshot: req.Candidate,
	})
	if err != nil {
		if errors.Is(err, calls.ErrInvalidReport) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "final data save failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"call": call, "candidate": cand})
}

// --- Call queries ---

func (h Handlers) ListCalls(c *gin.Context) {
	list, err := h.Calls.ListCalls(c.Request.Context(), limitParam(c, 100))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "call list failed"})
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h Handlers) ActiveCalls(c *gin.Context) {
	list, err := h.Calls.ActiveCalls(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "active call list failed"})
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h Handlers) GetCall(c *gin.Context) {
	call, err := h.Calls.GetCall(c.Request.Context(), c.Param("call_id"))
	if err != nil {
		if errors.Is(err, calls.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "call not found"})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "call lookup failed"})
		return
	}
	c.JSON(http.StatusOK, call)
}

// --- Manual dialing ---

type retryRequest struct {
	PhoneNumber string `json:"phone_number"`
	CandidateID string `json:"candidate_id"`
}

// RetryCall proxies a manual re-dial straight to the caller service. Same
// outbound operation the scheduler uses, minus the due-window logic.
func (h Handlers) RetryCall(c *gin.Context) {
	var req retryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.PhoneNumber == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "phone_number required"})
		return
	}
	res, err := h.Dialer.PlaceCall(c.Request.Context(), req.PhoneNumber)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "dispatch failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "call_sid": res.CallID, "candidate_id": req.CandidateID})
}

type outboundRequest struct {
	PhoneNumber string `json:"phone_number"`
}

func (h Handlers) OutboundCall(c *gin.Context) {
	var req outboundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.PhoneNumber == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "phone_number required"})
		return
	}
	res, err := h.Dialer.PlaceCall(c.Request.Context(), req.PhoneNumber)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "dispatch failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "call_sid": res.CallID})
}

type scheduleRequest struct {
	CandidateID string `json:"candidate_id"`
	PhoneNumber string `json:"phone_number"`

	// Time is RFC3339; TimeText is a free-text alternative ("tomorrow 3pm")
	// resolved against the current clock. Exactly one must be usable.
	Time     *time.Time `json:"time,omitempty"`
	TimeText string     `json:"time_text,omitempty"`
}

// Schedule arms a one-off call at a future time through the same dedup and
// dispatch path the periodic scheduler uses.
func (h Handlers) Schedule(c *gin.Context) {
	var req scheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.CandidateID == "" || req.PhoneNumber == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "candidate_id, phone_number required"})
		return
	}

	var at time.Time
	switch {
	case req.Time != nil:
		at = *req.Time
	case req.TimeText != "":
		resolved, ok := h.Resolver.Resolve(req.TimeText, time.Now())
		if !ok {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "time_text could not be resolved"})
			return
		}
		at = resolved
	default:
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "time or time_text required"})
		return
	}

	if err := h.Scheduler.ScheduleCall(req.CandidateID, req.PhoneNumber, at); err != nil {
		if errors.Is(err, scheduler.ErrPastTime) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "scheduled time is in the past"})
			return
		}
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"scheduled": true, "candidate_id": req.CandidateID, "time": at})
}

// --- Candidates ---

func (h Handlers) ListCandidates(c *gin.Context) {
	list, err := h.Candidates.List(c.Request.Context(), limitParam(c, 100))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "candidate list failed"})
		return
	}
	c.JSON(http.StatusOK, list)
}

// UnsuccessfulCalls lists snapshots an HR user may want to chase:
// Rescheduled and Disconnected.
func (h Handlers) UnsuccessfulCalls(c *gin.Context) {
	list, err := h.Candidates.ListUnsuccessful(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "candidate list failed"})
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h Handlers) NotInterested(c *gin.Context) {
	list, err := h.Candidates.ListNotInterested(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "candidate list failed"})
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h Handlers) GetCandidate(c *gin.Context) {
	cand, err := h.Candidates.GetByID(c.Request.Context(), c.Param("candidate_id"))
	if err != nil {
		if errors.Is(err, candidates.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "candidate not found"})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "candidate lookup failed"})
		return
	}
	c.JSON(http.StatusOK, cand)
}

// --- Notifications ---

func (h Handlers) ListNotifications(c *gin.Context) {
	list, err := h.Notifications.List(c.Request.Context(), limitParam(c, 50))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "notification list failed"})
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h Handlers) MarkNotificationRead(c *gin.Context) {
	id := c.Param("notification_id")
	if err := h.Notifications.MarkRead(c.Request.Context(), id); err != nil {
		if errors.Is(err, notify.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "notification not found"})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "mark read failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "read": true})
}

func limitParam(c *gin.Context, def int) int {
	raw := c.Query("limit")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
