package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/zuloanga/Coinorbit/internal/auth"
	"github.com/zuloanga/Coinorbit/internal/ledger/adapter/repo/memory"
	"github.com/zuloanga/Coinorbit/internal/ledger/aggregate"
	"github.com/zuloanga/Coinorbit/internal/ledger/domain"
	"github.com/zuloanga/Coinorbit/internal/ledger/service"
	"github.com/zuloanga/Coinorbit/internal/platform/cache"
)

type apiFixture struct {
	engine     *gin.Engine
	authSvc    *auth.Service
	userToken  string
	adminToken string
	userID     string
}

// newAPIFixture wires the full authenticated surface over in-memory
// storage, mirroring the production route layout.
func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()
	logger := zap.NewNop()

	accounts := memory.NewAccountRepository()
	txs := memory.NewTransactionRepository()
	invs := memory.NewInvestmentRepository()
	plans := memory.NewPlanRepository()
	if err := plans.Seed(ctx, domain.DefaultPlans()); err != nil {
		t.Fatalf("seed plans: %v", err)
	}

	pm := auth.NewPasswordManager(bcrypt.MinCost, auth.MinPasswordLength)
	jm := auth.NewJWTManager("test-secret", time.Hour)
	agg := aggregate.New(accounts, txs, invs, nil, logger)
	authSvc := auth.NewService(accounts, pm, jm, agg, logger, nil)

	locks := service.NewKeyedMutex()
	txSvc := service.NewTransactionService(accounts, txs, authSvc, locks, agg, logger, nil)
	invSvc := service.NewInvestmentService(accounts, txs, invs, plans, authSvc, locks, agg, logger, nil)

	statsCache := cache.NewStatsCache(nil, time.Minute, logger)
	handler := NewLedgerHandler(txSvc, invSvc, authSvc, agg, statsCache, logger)
	authHandlers := auth.NewHandlers(authSvc)

	engine := gin.New()
	v1 := engine.Group("/api/v1")
	authHandlers.RegisterRoutes(v1)
	authed := v1.Group("")
	authed.Use(auth.Middleware(jm))
	handler.RegisterRoutes(authed)
	admin := authed.Group("/admin")
	admin.Use(auth.RequireAdmin())
	handler.RegisterAdminRoutes(admin)

	if err := authSvc.SeedAdmin(ctx, "admin@example.com", "adm1npass", "Admin"); err != nil {
		t.Fatalf("seed admin: %v", err)
	}
	user, err := authSvc.SignUp(ctx, "alice@example.com", "sup3rsecret", "Alice", "")
	if err != nil {
		t.Fatalf("signup: %v", err)
	}

	userToken, _, err := authSvc.SignIn(ctx, "alice@example.com", "sup3rsecret")
	if err != nil {
		t.Fatalf("user signin: %v", err)
	}
	adminToken, _, err := authSvc.SignIn(ctx, "admin@example.com", "adm1npass")
	if err != nil {
		t.Fatalf("admin signin: %v", err)
	}

	return &apiFixture{
		engine:     engine,
		authSvc:    authSvc,
		userToken:  userToken,
		adminToken: adminToken,
		userID:     user.ID,
	}
}

func (f *apiFixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	return w
}

func TestRoutesRequireAuth(t *testing.T) {
	f := newAPIFixture(t)

	if w := f.do(t, http.MethodGet, "/api/v1/me", "", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("unauthenticated /me = %d, want 401", w.Code)
	}
	if w := f.do(t, http.MethodGet, "/api/v1/me", "garbage", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("garbage token = %d, want 401", w.Code)
	}
	if w := f.do(t, http.MethodGet, "/api/v1/admin/users", f.userToken, nil); w.Code != http.StatusForbidden {
		t.Errorf("non-admin on admin route = %d, want 403", w.Code)
	}
}

func TestDepositApprovalFlow(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, http.MethodPost, "/api/v1/transactions", f.userToken,
		RequestTransactionReq{Kind: "deposit", Amount: "1000"})
	if w.Code != http.StatusCreated {
		t.Fatalf("request deposit = %d: %s", w.Code, w.Body)
	}
	var tx domain.Transaction
	if err := json.Unmarshal(w.Body.Bytes(), &tx); err != nil {
		t.Fatalf("decode transaction: %v", err)
	}

	w = f.do(t, http.MethodGet, "/api/v1/admin/transactions/pending", f.adminToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("pending queue = %d: %s", w.Code, w.Body)
	}

	path := fmt.Sprintf("/api/v1/admin/transactions/%s/approve", tx.ID)
	if w = f.do(t, http.MethodPost, path, f.adminToken, nil); w.Code != http.StatusOK {
		t.Fatalf("approve = %d: %s", w.Code, w.Body)
	}
	// A second approval conflicts.
	if w = f.do(t, http.MethodPost, path, f.adminToken, nil); w.Code != http.StatusConflict {
		t.Errorf("second approve = %d, want 409", w.Code)
	}

	w = f.do(t, http.MethodGet, "/api/v1/me", f.userToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("/me = %d", w.Code)
	}
	var acc domain.Account
	if err := json.Unmarshal(w.Body.Bytes(), &acc); err != nil {
		t.Fatalf("decode account: %v", err)
	}
	if acc.Balance.String() != "1000" {
		t.Errorf("balance = %s, want 1000", acc.Balance)
	}
}

func TestRejectRequiresReason(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, http.MethodPost, "/api/v1/transactions", f.userToken,
		RequestTransactionReq{Kind: "withdraw", Amount: "100"})
	if w.Code != http.StatusCreated {
		t.Fatalf("request withdraw = %d: %s", w.Code, w.Body)
	}
	var tx domain.Transaction
	if err := json.Unmarshal(w.Body.Bytes(), &tx); err != nil {
		t.Fatalf("decode transaction: %v", err)
	}

	path := fmt.Sprintf("/api/v1/admin/transactions/%s/reject", tx.ID)
	// Binding rejects a missing reason before the service sees it.
	if w = f.do(t, http.MethodPost, path, f.adminToken, map[string]string{}); w.Code != http.StatusBadRequest {
		t.Errorf("empty reason = %d, want 400", w.Code)
	}
	if w = f.do(t, http.MethodPost, path, f.adminToken, RejectTransactionReq{Reason: "blocked"}); w.Code != http.StatusOK {
		t.Errorf("reject = %d: %s", w.Code, w.Body)
	}
}

func TestInvestmentEndpoints(t *testing.T) {
	f := newAPIFixture(t)
	ctx := context.Background()

	// Fund the account through the normal flow.
	w := f.do(t, http.MethodPost, "/api/v1/transactions", f.userToken,
		RequestTransactionReq{Kind: "deposit", Amount: "5000"})
	var tx domain.Transaction
	if err := json.Unmarshal(w.Body.Bytes(), &tx); err != nil {
		t.Fatalf("decode transaction: %v", err)
	}
	f.do(t, http.MethodPost, fmt.Sprintf("/api/v1/admin/transactions/%s/approve", tx.ID), f.adminToken, nil)

	w = f.do(t, http.MethodGet, "/api/v1/plans", f.userToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("plans = %d", w.Code)
	}

	// Below the plan minimum.
	w = f.do(t, http.MethodPost, "/api/v1/investments", f.userToken,
		OpenInvestmentReq{PlanID: "growth_plan", Amount: "100"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("below minimum = %d, want 400", w.Code)
	}

	// More than the balance.
	w = f.do(t, http.MethodPost, "/api/v1/investments", f.userToken,
		OpenInvestmentReq{PlanID: "premium_plan", Amount: "10000"})
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("insufficient balance = %d, want 422", w.Code)
	}

	w = f.do(t, http.MethodPost, "/api/v1/investments", f.userToken,
		OpenInvestmentReq{PlanID: "growth_plan", Amount: "2500"})
	if w.Code != http.StatusCreated {
		t.Fatalf("open investment = %d: %s", w.Code, w.Body)
	}
	var inv domain.Investment
	if err := json.Unmarshal(w.Body.Bytes(), &inv); err != nil {
		t.Fatalf("decode investment: %v", err)
	}

	w = f.do(t, http.MethodGet, "/api/v1/investments/stats", f.userToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("stats = %d", w.Code)
	}

	// Admin settles the position early, the payout lands on the balance.
	w = f.do(t, http.MethodPost, fmt.Sprintf("/api/v1/admin/investments/%s/payout", inv.ID), f.adminToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("payout = %d: %s", w.Code, w.Body)
	}
	account, err := f.authSvc.GetAccount(ctx, f.userID)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	// 5000 - 2500 + 2875
	if account.Balance.String() != "5375" {
		t.Errorf("balance = %s, want 5375", account.Balance)
	}
}

func TestPlatformStatsEndpoint(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, http.MethodGet, "/api/v1/admin/stats", f.adminToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("stats = %d: %s", w.Code, w.Body)
	}
	var stats aggregate.PlatformStats
	if err := json.Unmarshal(w.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	// The admin seed bypasses signup; only Alice registered.
	if stats.Users.Total.String() != "1" {
		t.Errorf("users total = %s, want 1", stats.Users.Total)
	}

	w = f.do(t, http.MethodGet, "/api/v1/admin/stats/value", f.adminToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("stats/value = %d", w.Code)
	}
}
