package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/zuloanga/Coinorbit/internal/auth"
	"github.com/zuloanga/Coinorbit/internal/ledger/aggregate"
	"github.com/zuloanga/Coinorbit/internal/ledger/domain"
	"github.com/zuloanga/Coinorbit/internal/ledger/service"
	"github.com/zuloanga/Coinorbit/internal/platform/cache"
)

const platformStatsCacheKey = "stats:platform"

type LedgerHandler struct {
	txSvc   *service.TransactionService
	invSvc  *service.InvestmentService
	authSvc *auth.Service
	agg     *aggregate.Aggregator
	stats   *cache.StatsCache
	logger  *zap.Logger
	now     func() time.Time
}

func NewLedgerHandler(
	txSvc *service.TransactionService,
	invSvc *service.InvestmentService,
	authSvc *auth.Service,
	agg *aggregate.Aggregator,
	stats *cache.StatsCache,
	logger *zap.Logger,
) *LedgerHandler {
	return &LedgerHandler{
		txSvc:   txSvc,
		invSvc:  invSvc,
		authSvc: authSvc,
		agg:     agg,
		stats:   stats,
		logger:  logger,
		now:     time.Now,
	}
}

// RegisterRoutes mounts the authenticated user surface.
func (h *LedgerHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/me", h.GetMe)
	r.GET("/plans", h.ListPlans)

	txGroup := r.Group("/transactions")
	{
		txGroup.POST("", h.RequestTransaction)
		txGroup.GET("", h.ListMyTransactions)
	}

	invGroup := r.Group("/investments")
	{
		invGroup.POST("", h.OpenInvestment)
		invGroup.GET("", h.ListMyInvestments)
		invGroup.GET("/stats", h.GetMyStats)
	}
}

// RegisterAdminRoutes mounts the admin surface. The group must already
// carry the admin-only middleware.
func (h *LedgerHandler) RegisterAdminRoutes(r *gin.RouterGroup) {
	r.GET("/transactions/pending", h.ListPendingTransactions)
	r.GET("/transactions/recent", h.ListRecentTransactions)
	r.POST("/transactions/:id/approve", h.ApproveTransaction)
	r.POST("/transactions/:id/reject", h.RejectTransaction)

	r.GET("/investments", h.ListAllInvestments)
	r.POST("/investments/:id/payout", h.PayoutInvestment)
	r.POST("/investments/:id/cancel", h.CancelInvestment)

	r.GET("/users", h.ListUsers)
	r.PUT("/users/:id/status", h.SetUserStatus)

	r.PUT("/plans/:id", h.UpdatePlan)

	r.GET("/stats", h.GetPlatformStats)
	r.GET("/stats/value", h.GetPlatformValue)
}

// GetMe returns the caller's account, balance included.
// GET /api/v1/me
func (h *LedgerHandler) GetMe(c *gin.Context) {
	acc, err := h.authSvc.GetAccount(c.Request.Context(), auth.UserID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, acc)
}

// RequestTransaction files a deposit or withdrawal for admin review.
// POST /api/v1/transactions
func (h *LedgerHandler) RequestTransaction(c *gin.Context) {
	var req RequestTransactionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid amount: " + req.Amount})
		return
	}

	tx, err := h.txSvc.Request(c.Request.Context(), auth.UserID(c), domain.TransactionKind(req.Kind), amount)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, tx)
}

// ListMyTransactions returns the caller's history, newest first.
// GET /api/v1/transactions?limit=50
func (h *LedgerHandler) ListMyTransactions(c *gin.Context) {
	limit := intQuery(c, "limit", 50)
	txs, err := h.txSvc.ListByAccount(c.Request.Context(), auth.UserID(c), limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": txs})
}

// OpenInvestment opens a position against a catalog plan.
// POST /api/v1/investments
func (h *LedgerHandler) OpenInvestment(c *gin.Context) {
	var req OpenInvestmentReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid amount: " + req.Amount})
		return
	}

	inv, err := h.invSvc.Open(c.Request.Context(), auth.UserID(c), req.PlanID, amount)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, inv)
}

// ListMyInvestments returns the caller's positions with accrual brought
// up to the present.
// GET /api/v1/investments
func (h *LedgerHandler) ListMyInvestments(c *gin.Context) {
	invs, err := h.invSvc.ListByAccount(c.Request.Context(), auth.UserID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"investments": invs})
}

// GetMyStats returns the caller's portfolio summary.
// GET /api/v1/investments/stats
func (h *LedgerHandler) GetMyStats(c *gin.Context) {
	stats, err := h.invSvc.Stats(c.Request.Context(), auth.UserID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// ListPlans returns the investment plan catalog.
// GET /api/v1/plans
func (h *LedgerHandler) ListPlans(c *gin.Context) {
	plans, err := h.invSvc.Plans(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"plans": plans})
}

// ListPendingTransactions returns the admin review queue.
// GET /api/v1/admin/transactions/pending
func (h *LedgerHandler) ListPendingTransactions(c *gin.Context) {
	txs, err := h.txSvc.ListPending(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": txs})
}

// ListRecentTransactions returns the latest activity across all accounts.
// GET /api/v1/admin/transactions/recent?limit=20
func (h *LedgerHandler) ListRecentTransactions(c *gin.Context) {
	limit := intQuery(c, "limit", 20)
	c.JSON(http.StatusOK, gin.H{"transactions": h.agg.RecentTransactions(c.Request.Context(), limit)})
}

// ApproveTransaction settles a pending request and applies its balance effect.
// POST /api/v1/admin/transactions/:id/approve
func (h *LedgerHandler) ApproveTransaction(c *gin.Context) {
	if err := h.txSvc.Approve(c.Request.Context(), c.Param("id"), auth.UserID(c)); err != nil {
		h.respondError(c, err)
		return
	}
	h.refreshStats(c)
	c.JSON(http.StatusOK, gin.H{"message": "transaction approved"})
}

// RejectTransaction declines a pending request with a reason.
// POST /api/v1/admin/transactions/:id/reject
func (h *LedgerHandler) RejectTransaction(c *gin.Context) {
	var req RejectTransactionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	if err := h.txSvc.Reject(c.Request.Context(), c.Param("id"), auth.UserID(c), req.Reason); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "transaction rejected"})
}

// ListAllInvestments returns every position with owner info.
// GET /api/v1/admin/investments
func (h *LedgerHandler) ListAllInvestments(c *gin.Context) {
	invs, err := h.invSvc.ListAll(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"investments": invs})
}

// PayoutInvestment settles a position ahead of maturity.
// POST /api/v1/admin/investments/:id/payout
func (h *LedgerHandler) PayoutInvestment(c *gin.Context) {
	if err := h.invSvc.ForcePayout(c.Request.Context(), c.Param("id"), auth.UserID(c)); err != nil {
		h.respondError(c, err)
		return
	}
	h.refreshStats(c)
	c.JSON(http.StatusOK, gin.H{"message": "investment paid out"})
}

// CancelInvestment voids a position and refunds the principal.
// POST /api/v1/admin/investments/:id/cancel
func (h *LedgerHandler) CancelInvestment(c *gin.Context) {
	if err := h.invSvc.Cancel(c.Request.Context(), c.Param("id"), auth.UserID(c)); err != nil {
		h.respondError(c, err)
		return
	}
	h.refreshStats(c)
	c.JSON(http.StatusOK, gin.H{"message": "investment cancelled"})
}

// ListUsers returns all accounts for the admin user table.
// GET /api/v1/admin/users
func (h *LedgerHandler) ListUsers(c *gin.Context) {
	accounts, err := h.authSvc.ListAccounts(c.Request.Context(), auth.UserID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": accounts})
}

// SetUserStatus suspends or reactivates an account.
// PUT /api/v1/admin/users/:id/status
func (h *LedgerHandler) SetUserStatus(c *gin.Context) {
	var req SetAccountStatusReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	err := h.authSvc.SetAccountStatus(c.Request.Context(), auth.UserID(c), c.Param("id"), domain.AccountStatus(req.Status))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "status updated"})
}

// UpdatePlan edits a catalog plan.
// PUT /api/v1/admin/plans/:id
func (h *LedgerHandler) UpdatePlan(c *gin.Context) {
	var req UpdatePlanReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	minAmount, err := decimal.NewFromString(req.MinAmount)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid min_amount: " + req.MinAmount})
		return
	}
	roi, err := decimal.NewFromString(req.ROI)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid roi: " + req.ROI})
		return
	}

	plan := &domain.Plan{
		ID:           c.Param("id"),
		Name:         req.Name,
		Description:  req.Description,
		MinAmount:    minAmount,
		ROI:          roi,
		DurationDays: req.DurationDays,
		Recommended:  req.Recommended,
	}
	if err := h.invSvc.UpdatePlan(c.Request.Context(), auth.UserID(c), plan); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, plan)
}

// GetPlatformStats returns the weekly dashboard numbers, served from the
// cache when a fresh entry exists.
// GET /api/v1/admin/stats
func (h *LedgerHandler) GetPlatformStats(c *gin.Context) {
	var cached aggregate.PlatformStats
	if h.stats.Get(c.Request.Context(), platformStatsCacheKey, &cached) {
		c.JSON(http.StatusOK, &cached)
		return
	}

	stats := h.agg.Stats(h.now())
	h.stats.Set(c.Request.Context(), platformStatsCacheKey, stats)
	c.JSON(http.StatusOK, stats)
}

// GetPlatformValue returns total deposits minus total withdrawals.
// GET /api/v1/admin/stats/value
func (h *LedgerHandler) GetPlatformValue(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"totalPlatformValue": h.agg.TotalPlatformValue()})
}

// refreshStats rewrites the cached dashboard entry after a balance-moving
// admin action so the next poll sees current numbers.
func (h *LedgerHandler) refreshStats(c *gin.Context) {
	h.stats.Set(c.Request.Context(), platformStatsCacheKey, h.agg.Stats(h.now()))
}

// respondError maps domain sentinels onto HTTP statuses. Anything
// unrecognized is a 500 with the detail kept out of the response body.
func (h *LedgerHandler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrInvalidAmount), errors.Is(err, domain.ErrEmptyReason):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrInsufficientBalance):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrAlreadyProcessed),
		errors.Is(err, domain.ErrAlreadyPaidOut),
		errors.Is(err, domain.ErrPlanAlreadyActive),
		errors.Is(err, domain.ErrDuplicate):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrUnauthorized), errors.Is(err, domain.ErrAccountSuspended):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	default:
		h.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func intQuery(c *gin.Context, name string, def int) int {
	raw := c.Query(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
