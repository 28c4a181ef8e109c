package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"callagent-platform/internal/analytics"
	"callagent-platform/internal/audit"
	"callagent-platform/internal/auth"
	"callagent-platform/internal/pipeline"
	"callagent-platform/internal/pricing"
	"callagent-platform/internal/session"
	"callagent-platform/internal/subscription"
	"callagent-platform/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.

type Handlers struct {
	Auth      *auth.Manager
	Catalog   *pricing.Catalog
	Subs      *subscription.Service
	Pipeline  *pipeline.Service
	Registry  *session.Registry
	Analytics *analytics.Service
	Audit     *audit.Service
}

// --- Auth ---

type loginRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

// Login issues a JWT token pair.
//
// NOTE: This is a skeleton-only endpoint. Real systems must validate credentials.
func (h Handlers) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.UserID == "" || req.Role == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user_id and role required"})
		return
	}
	pair, err := h.Auth.IssuePair(time.Now(), req.UserID, req.Role)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": pair.AccessToken, "refresh_token": pair.RefreshToken})
}

// --- Pricing ---

func (h Handlers) ListTiers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tiers": h.Catalog.List()})
}

func (h Handlers) GetQuote(c *gin.Context) {
	tier, err := pricing.ParseServiceTier(c.Query("tier"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	complexity, err := pricing.ParseComplexity(c.Query("complexity"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	estimated := 0
	if raw := c.Query("estimated_calls"); raw != "" {
		estimated, err = strconv.Atoi(raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "estimated_calls must be an integer"})
			return
		}
	}

	q, err := h.Subs.Quote(tier, complexity, estimated)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, q)
}

// --- Subscriptions ---

type createSubscriptionRequest struct {
	ClientID     string `json:"client_id"`
	CompanyName  string `json:"company_name"`
	Tier         string `json:"tier"`
	Complexity   string `json:"complexity"`
	SetupFeePaid bool   `json:"setup_fee_paid"`
}

func (h Handlers) CreateSubscription(c *gin.Context) {
	var req createSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	tier, err := pricing.ParseServiceTier(req.Tier)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	complexity, err := pricing.ParseComplexity(req.Complexity)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sub, err := h.Subs.Open(c.Request.Context(), subscription.OpenRequest{
		ClientID:     req.ClientID,
		CompanyName:  req.CompanyName,
		Tier:         tier,
		Complexity:   complexity,
		SetupFeePaid: req.SetupFeePaid,
	})
	switch {
	case errors.Is(err, subscription.ErrDuplicateClient):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "client already has a subscription"})
	case errors.Is(err, subscription.ErrInvalidArgument), errors.Is(err, pricing.ErrTierNotFound):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case err != nil:
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "subscription create failed"})
	default:
		c.JSON(http.StatusCreated, sub)
	}
}

func (h Handlers) GetSubscriptionStatus(c *gin.Context) {
	clientID := c.Param("client_id")
	st, err := h.Subs.Status(c.Request.Context(), clientID)
	switch {
	case errors.Is(err, subscription.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "subscription not found"})
	case err != nil:
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "status lookup failed"})
	default:
		c.JSON(http.StatusOK, st)
	}
}

type setSubscriptionStatusRequest struct {
	Status string `json:"status"`
}

// SetSubscriptionStatus is the admin lifecycle control (pause, resume,
// cancel). Canceling stamps the subscription's end; rows are never deleted.
func (h Handlers) SetSubscriptionStatus(c *gin.Context) {
	var req setSubscriptionStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	status := subscription.Status(req.Status)
	if !status.Valid() {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "status must be active, paused or canceled"})
		return
	}

	clientID := c.Param("client_id")
	sub, err := h.Subs.SetStatus(c.Request.Context(), clientID, status)
	switch {
	case errors.Is(err, subscription.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "subscription not found"})
	case err != nil:
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "status change failed"})
	default:
		if h.Audit != nil {
			actor, _ := auth.UserID(c.Request.Context())
			if aerr := h.Audit.LogStatusChanged(c.Request.Context(), clientID, actor, string(status)); aerr != nil {
				logger.From(c.Request.Context()).Warn("audit append failed", "err", aerr)
			}
		}
		c.JSON(http.StatusOK, sub)
	}
}

// --- Calls ---

type placeCallRequest struct {
	ToNumber   string `json:"to_number"`
	ToName     string `json:"to_name"`
	FromNumber string `json:"from_number"`
	FromName   string `json:"from_name"`

	AgentID        string `json:"agent_id"`
	ClientID       string `json:"client_id"`
	Purpose        string `json:"purpose"`
	CallType       string `json:"call_type"`
	ScriptTemplate string `json:"script_template"`

	WantScriptInsight bool `json:"want_script_insight"`
	WantAcceleration  bool `json:"want_acceleration"`
}

// PlaceCall runs a call through the pipeline. Admission rejection is an
// expected outcome and still returns 200 with success=false.
func (h Handlers) PlaceCall(c *gin.Context) {
	var req placeCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	res, err := h.Pipeline.PlaceCall(c.Request.Context(), pipeline.PlaceCallRequest{
		To:                session.Participant{PhoneNumber: req.ToNumber, Name: req.ToName},
		From:              session.Participant{PhoneNumber: req.FromNumber, Name: req.FromName},
		AgentID:           req.AgentID,
		ClientID:          req.ClientID,
		Purpose:           req.Purpose,
		CallType:          req.CallType,
		ScriptTemplate:    req.ScriptTemplate,
		WantScriptInsight: req.WantScriptInsight,
		WantAcceleration:  req.WantAcceleration,
	})
	switch {
	case errors.Is(err, pipeline.ErrInvalidRequest):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case err != nil:
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "call placement failed"})
	default:
		c.JSON(http.StatusOK, res)
	}
}

func (h Handlers) CancelCall(c *gin.Context) {
	callID := c.Param("call_id")
	actor, _ := auth.UserID(c.Request.Context())

	s, err := h.Pipeline.Cancel(c.Request.Context(), callID, actor)
	switch {
	case errors.Is(err, session.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "active call not found"})
	case errors.Is(err, session.ErrInvalidTransition):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "call already finished"})
	case err != nil:
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "cancel failed"})
	default:
		c.JSON(http.StatusOK, s)
	}
}

func (h Handlers) GetCall(c *gin.Context) {
	s, err := h.Registry.Get(c.Request.Context(), c.Param("call_id"))
	switch {
	case errors.Is(err, session.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "call not found"})
	case err != nil:
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "call lookup failed"})
	default:
		c.JSON(http.StatusOK, s)
	}
}

func (h Handlers) GetHistory(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		limit = n
	}
	var filter session.Status
	if raw := c.Query("status"); raw != "" {
		filter = session.Status(raw)
		if !filter.Valid() {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unknown status filter"})
			return
		}
	}

	rows, err := h.Registry.ListHistory(c.Request.Context(), filter, limit)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "history lookup failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"calls": rows, "count": len(rows)})
}

// --- Analytics ---

func (h Handlers) GetAgentPerformance(c *gin.Context) {
	m, err := h.Analytics.Agent(c.Request.Context(), c.Param("agent_id"))
	switch {
	case errors.Is(err, analytics.ErrNoAgentSessions):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "agent has no sessions"})
	case err != nil:
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "agent metrics failed"})
	default:
		c.JSON(http.StatusOK, m)
	}
}

func (h Handlers) GetAnalytics(c *gin.Context) {
	o, err := h.Analytics.Overview(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "analytics failed"})
		return
	}
	c.JSON(http.StatusOK, o)
}
