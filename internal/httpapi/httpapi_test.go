package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mfigueroa/hucha/internal/savings"
	"github.com/mfigueroa/hucha/internal/storage/memory"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func setup(t *testing.T) (*memory.Store, http.Handler) {
	t.Helper()
	store := memory.New()
	h := New(store, store, testLogger(), Options{
		Currency:           "EUR",
		DefaultEnvironment: "prod",
	}).Handler()
	return store, h
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode response: %v: %s", err, rec.Body.String())
	}
	return v
}

type errResp struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func createGoal(t *testing.T, h http.Handler, target int64) goalResponse {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/v1/goals", map[string]any{
		"name":         "Holiday",
		"target_minor": target,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	return decode[goalResponse](t, rec)
}

func contribute(t *testing.T, h http.Handler, goalID string, amount int64, bank string) entryTotalResponse {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/v1/goals/"+goalID+"/contributions", map[string]any{
		"amount_minor": amount,
		"bank":         bank,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	return decode[entryTotalResponse](t, rec)
}

func TestPostGoalDefaultsAndValidation(t *testing.T) {
	_, h := setup(t)

	g := createGoal(t, h, 100000)
	if g.Currency != "EUR" {
		t.Fatalf("expected default currency EUR, got %q", g.Currency)
	}
	if g.Environment != "prod" {
		t.Fatalf("expected default environment, got %q", g.Environment)
	}
	if g.Percent != 0 {
		t.Fatalf("expected 0%%, got %v", g.Percent)
	}

	rec := do(t, h, http.MethodPost, "/v1/goals", map[string]any{"name": "", "target_minor": 100})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	rec = do(t, h, http.MethodPost, "/v1/goals", map[string]any{"name": "x", "target_minor": 100, "bogus": true})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", rec.Code)
	}
}

func TestContributeAndFetch(t *testing.T) {
	_, h := setup(t)
	g := createGoal(t, h, 100000)

	resp := contribute(t, h, g.ID.String(), 25000, "bbva")
	if resp.NewTotalMinor != 25000 {
		t.Fatalf("expected total 25000, got %d", resp.NewTotalMinor)
	}
	if resp.Entry.Amount == "" {
		t.Fatalf("expected formatted amount in response")
	}

	rec := do(t, h, http.MethodGet, "/v1/goals/"+g.ID.String(), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	got := decode[goalResponse](t, rec)
	if got.CurrentMinor != 25000 || got.Percent != 25 {
		t.Fatalf("unexpected goal state: %+v", got)
	}
}

func TestWithdrawRepayFlow(t *testing.T) {
	_, h := setup(t)
	g := createGoal(t, h, 100000)
	contribute(t, h, g.ID.String(), 30000, "bbva")

	repayBy := time.Now().AddDate(0, 1, 0).Format(time.DateOnly)

	// overdraw is rejected with a typed code
	rec := do(t, h, http.MethodPost, "/v1/goals/"+g.ID.String()+"/withdrawals", map[string]any{
		"amount_minor": 50000, "bank": "bbva", "repay_by": repayBy,
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", rec.Code, rec.Body.String())
	}
	if er := decode[errResp](t, rec); er.Code != "insufficient_funds" {
		t.Fatalf("expected insufficient_funds, got %q", er.Code)
	}

	rec = do(t, h, http.MethodPost, "/v1/goals/"+g.ID.String()+"/withdrawals", map[string]any{
		"amount_minor": 10000, "bank": "bbva", "repay_by": repayBy, "reason": "car repair",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	wd := decode[withdrawalTotalResponse](t, rec)
	if wd.NewTotalMinor != 20000 {
		t.Fatalf("expected total 20000, got %d", wd.NewTotalMinor)
	}
	if wd.Withdrawal.State != "pending" {
		t.Fatalf("expected pending, got %q", wd.Withdrawal.State)
	}

	// pending listing shows it with the goal name
	rec = do(t, h, http.MethodGet, "/v1/withdrawals/pending", nil)
	pending := decode[[]pendingWithdrawalResponse](t, rec)
	if len(pending) != 1 || pending[0].GoalName != "Holiday" {
		t.Fatalf("unexpected pending: %+v", pending)
	}

	// repay restores the total
	rec = do(t, h, http.MethodPost, "/v1/withdrawals/"+wd.Withdrawal.ID.String()+"/repay", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	repaid := decode[withdrawalTotalResponse](t, rec)
	if repaid.NewTotalMinor != 30000 || repaid.Withdrawal.State != "repaid" {
		t.Fatalf("unexpected repay response: %+v", repaid)
	}

	// second repay is rejected
	rec = do(t, h, http.MethodPost, "/v1/withdrawals/"+wd.Withdrawal.ID.String()+"/repay", nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	if er := decode[errResp](t, rec); er.Code != "already_repaid" {
		t.Fatalf("expected already_repaid, got %q", er.Code)
	}
}

func TestPendingUsesGoalCurrency(t *testing.T) {
	_, h := setup(t)

	// goal in a currency other than the server default (EUR)
	rec := do(t, h, http.MethodPost, "/v1/goals", map[string]any{
		"name": "NY trip", "currency": "USD", "target_minor": 100000,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: %d: %s", rec.Code, rec.Body.String())
	}
	g := decode[goalResponse](t, rec)
	contribute(t, h, g.ID.String(), 30000, "bbva")
	repayBy := time.Now().AddDate(0, 1, 0).Format(time.DateOnly)
	rec = do(t, h, http.MethodPost, "/v1/goals/"+g.ID.String()+"/withdrawals", map[string]any{
		"amount_minor": 10000, "bank": "bbva", "repay_by": repayBy,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("withdraw: %d: %s", rec.Code, rec.Body.String())
	}

	rec = do(t, h, http.MethodGet, "/v1/withdrawals/pending", nil)
	pending := decode[[]pendingWithdrawalResponse](t, rec)
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending, got %d", len(pending))
	}
	if !strings.HasPrefix(pending[0].Amount, "USD") {
		t.Fatalf("expected amount in the goal's currency, got %q", pending[0].Amount)
	}
}

func TestHistoryHidesOffsets(t *testing.T) {
	_, h := setup(t)
	g := createGoal(t, h, 100000)
	contribute(t, h, g.ID.String(), 30000, "bbva")
	repayBy := time.Now().AddDate(0, 1, 0).Format(time.DateOnly)
	rec := do(t, h, http.MethodPost, "/v1/goals/"+g.ID.String()+"/withdrawals", map[string]any{
		"amount_minor": 10000, "bank": "bbva", "repay_by": repayBy,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("withdraw: %d", rec.Code)
	}

	rec = do(t, h, http.MethodGet, "/v1/goals/"+g.ID.String()+"/history", nil)
	items := decode[[]historyItemResponse](t, rec)
	if len(items) != 2 {
		t.Fatalf("expected 2 history lines, got %d: %+v", len(items), items)
	}
}

func TestDeleteWithdrawalWarning(t *testing.T) {
	store, h := setup(t)
	g := createGoal(t, h, 100000)
	contribute(t, h, g.ID.String(), 30000, "bbva")

	// legacy record with no entry link and no matching offset entry
	w := savings.Withdrawal{
		ID: uuid.New(), GoalID: g.ID, AmountMinor: 7000, Bank: "bbva",
		Date: savings.Day(time.Now()), RepayBy: savings.Day(time.Now()).AddDate(0, 1, 0),
		State: savings.WithdrawalPending,
	}
	store.SeedWithdrawal(w)

	rec := do(t, h, http.MethodDelete, "/v1/withdrawals/"+w.ID.String(), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decode[deleteWithdrawalResponse](t, rec)
	if resp.EntryRemoved {
		t.Fatalf("no entry should match")
	}
	if resp.Warning == "" {
		t.Fatalf("expected warning when no entry was removed")
	}
	if resp.NewTotalMinor != 30000 {
		t.Fatalf("expected recomputed total 30000, got %d", resp.NewTotalMinor)
	}
}

func TestPatchAndCompleteGoal(t *testing.T) {
	_, h := setup(t)
	g := createGoal(t, h, 100000)

	rec := do(t, h, http.MethodPatch, "/v1/goals/"+g.ID.String(), map[string]any{
		"name":  "Holiday 2027",
		"notes": "flights first",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	patched := decode[goalResponse](t, rec)
	if patched.Name != "Holiday 2027" || patched.Notes != "flights first" {
		t.Fatalf("patch not applied: %+v", patched)
	}

	rec = do(t, h, http.MethodPost, "/v1/goals/"+g.ID.String()+"/complete", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	rec = do(t, h, http.MethodGet, "/v1/goals/"+g.ID.String(), nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after completion, got %d", rec.Code)
	}
}

func TestTransferAndAggregates(t *testing.T) {
	_, h := setup(t)
	g := createGoal(t, h, 100000)
	contribute(t, h, g.ID.String(), 20000, "bbva")
	contribute(t, h, g.ID.String(), 5000, "revolut")

	rec := do(t, h, http.MethodPost, "/v1/savings/transfer", map[string]any{
		"source_bank": "bbva",
		"dest_bank":   "n26",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	tr := decode[transferResponse](t, rec)
	if tr.EntriesMoved != 1 {
		t.Fatalf("expected 1 entry moved, got %d", tr.EntriesMoved)
	}

	rec = do(t, h, http.MethodGet, "/v1/savings/by-bank", nil)
	totals := decode[[]bankTotalResponse](t, rec)
	if len(totals) != 2 || totals[0].Bank != "n26" || totals[0].TotalMinor != 20000 {
		t.Fatalf("unexpected totals: %+v", totals)
	}

	rec = do(t, h, http.MethodGet, "/v1/savings/summary", nil)
	sum := decode[summaryResponse](t, rec)
	if sum.GoalCount != 1 || sum.TotalSavedMinor != 25000 {
		t.Fatalf("unexpected summary: %+v", sum)
	}
}

func TestNotFoundAndBadIDs(t *testing.T) {
	_, h := setup(t)

	rec := do(t, h, http.MethodGet, "/v1/goals/"+uuid.New().String(), nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	rec = do(t, h, http.MethodGet, "/v1/goals/not-a-uuid", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	rec = do(t, h, http.MethodDelete, "/v1/contributions/"+uuid.New().String(), nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestHealthEndpoints(t *testing.T) {
	_, h := setup(t)
	for _, path := range []string{"/healthz", "/readyz"} {
		rec := do(t, h, http.MethodGet, path, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, rec.Code)
		}
	}
}
