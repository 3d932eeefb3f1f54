package query_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mfigueroa/hucha/internal/errs"
	"github.com/mfigueroa/hucha/internal/savings"
	"github.com/mfigueroa/hucha/internal/service/goal"
	"github.com/mfigueroa/hucha/internal/service/query"
	"github.com/mfigueroa/hucha/internal/storage/memory"
)

func setup(t *testing.T) (query.Service, goal.Service, *memory.Store) {
	t.Helper()
	store := memory.New()
	return query.New(store), goal.New(store), store
}

func seedGoal(t *testing.T, svc goal.Service, name string) savings.Goal {
	t.Helper()
	g, err := svc.Create(context.Background(), goal.CreateInput{
		Name: name, Currency: "EUR", TargetMinor: 100000, Environment: "prod",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return g
}

func TestGoalsFilterByEnvironment(t *testing.T) {
	q, svc, _ := setup(t)
	ctx := context.Background()
	seedGoal(t, svc, "A")
	if _, err := svc.Create(ctx, goal.CreateInput{Name: "B", TargetMinor: 1000, Environment: "test"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	goals, err := q.Goals(ctx, "prod")
	if err != nil {
		t.Fatalf("goals: %v", err)
	}
	if len(goals) != 1 || goals[0].Name != "A" {
		t.Fatalf("unexpected goals: %+v", goals)
	}
	// raw environment values are normalized before the lookup
	goals, err = q.Goals(ctx, "Test")
	if err != nil {
		t.Fatalf("goals: %v", err)
	}
	if len(goals) != 1 || goals[0].Name != "B" {
		t.Fatalf("unexpected goals for normalized env: %+v", goals)
	}
}

func TestHistorySuppressesWithdrawalOffsets(t *testing.T) {
	q, svc, _ := setup(t)
	ctx := context.Background()
	g := seedGoal(t, svc, "A")
	if _, _, err := svc.Contribute(ctx, g.ID, goal.ContributeInput{AmountMinor: 30000, Bank: "bbva"}); err != nil {
		t.Fatalf("contribute: %v", err)
	}
	w, _, err := svc.Withdraw(ctx, g.ID, goal.WithdrawInput{AmountMinor: 10000, Bank: "bbva", RepayBy: time.Now().AddDate(0, 1, 0), Reason: "car repair"})
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}

	items, err := q.History(ctx, g.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	// one contribution plus one withdrawal line; the offset entry is hidden
	if len(items) != 2 {
		t.Fatalf("expected 2 history items, got %d: %+v", len(items), items)
	}
	var sawWithdrawal bool
	for _, it := range items {
		if it.ID == w.EntryID {
			t.Fatalf("offset entry leaked into history")
		}
		if it.Kind == "withdrawal" {
			sawWithdrawal = true
			if it.AmountMinor != -10000 {
				t.Fatalf("withdrawal should be negative, got %d", it.AmountMinor)
			}
			if it.Detail != "car repair" {
				t.Fatalf("expected reason as detail, got %q", it.Detail)
			}
		}
	}
	if !sawWithdrawal {
		t.Fatalf("withdrawal missing from history")
	}
}

func TestHistoryLegacyOffsetsVisible(t *testing.T) {
	q, svc, store := setup(t)
	ctx := context.Background()
	g := seedGoal(t, svc, "A")

	// a pre-link withdrawal: its offset entry has no referencing record
	day := savings.Day(time.Now())
	store.SeedEntry(savings.Entry{ID: uuid.New(), GoalID: g.ID, AmountMinor: -5000, Date: day, Bank: "bbva"})
	store.SeedWithdrawal(savings.Withdrawal{
		ID: uuid.New(), GoalID: g.ID, AmountMinor: 5000, Bank: "bbva",
		Date: day, RepayBy: day.AddDate(0, 1, 0), State: savings.WithdrawalPending,
	})

	items, err := q.History(ctx, g.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	// without a link nothing can be suppressed; both lines show
	if len(items) != 2 {
		t.Fatalf("expected 2 history items, got %d", len(items))
	}
}

func TestGoalBanksPositiveOnly(t *testing.T) {
	q, svc, _ := setup(t)
	ctx := context.Background()
	g := seedGoal(t, svc, "A")
	if _, _, err := svc.Contribute(ctx, g.ID, goal.ContributeInput{AmountMinor: 20000, Bank: "bbva"}); err != nil {
		t.Fatalf("contribute: %v", err)
	}
	if _, _, err := svc.Contribute(ctx, g.ID, goal.ContributeInput{AmountMinor: 5000, Bank: "revolut"}); err != nil {
		t.Fatalf("contribute: %v", err)
	}
	if _, _, err := svc.Withdraw(ctx, g.ID, goal.WithdrawInput{AmountMinor: 5000, Bank: "revolut", RepayBy: time.Now().AddDate(0, 1, 0)}); err != nil {
		t.Fatalf("withdraw: %v", err)
	}

	banks, err := q.GoalBanks(ctx, g.ID)
	if err != nil {
		t.Fatalf("goal banks: %v", err)
	}
	if len(banks) != 1 || banks[0].Bank != "bbva" || banks[0].TotalMinor != 20000 {
		t.Fatalf("unexpected banks: %+v", banks)
	}
}

func TestByBankSortedDescending(t *testing.T) {
	q, svc, _ := setup(t)
	ctx := context.Background()
	g := seedGoal(t, svc, "A")
	for _, c := range []struct {
		amount int64
		bank   string
	}{{5000, "revolut"}, {20000, "bbva"}, {10000, "n26"}} {
		if _, _, err := svc.Contribute(ctx, g.ID, goal.ContributeInput{AmountMinor: c.amount, Bank: c.bank}); err != nil {
			t.Fatalf("contribute: %v", err)
		}
	}
	totals, err := q.ByBank(ctx, "prod")
	if err != nil {
		t.Fatalf("by bank: %v", err)
	}
	want := []string{"bbva", "n26", "revolut"}
	if len(totals) != len(want) {
		t.Fatalf("expected %d banks, got %d", len(want), len(totals))
	}
	for i, b := range want {
		if totals[i].Bank != b {
			t.Fatalf("position %d: expected %s, got %s", i, b, totals[i].Bank)
		}
	}
}

func TestSummarize(t *testing.T) {
	q, svc, _ := setup(t)
	ctx := context.Background()
	g1 := seedGoal(t, svc, "A")
	g2 := seedGoal(t, svc, "B")
	if _, _, err := svc.Contribute(ctx, g1.ID, goal.ContributeInput{AmountMinor: 20000}); err != nil {
		t.Fatalf("contribute: %v", err)
	}
	if _, _, err := svc.Contribute(ctx, g2.ID, goal.ContributeInput{AmountMinor: 5000}); err != nil {
		t.Fatalf("contribute: %v", err)
	}

	sum, err := q.Summarize(ctx, "prod")
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if sum.GoalCount != 2 || sum.TotalSavedMinor != 25000 {
		t.Fatalf("unexpected summary: %+v", sum)
	}
}

func TestPendingJoinsGoalName(t *testing.T) {
	q, svc, _ := setup(t)
	ctx := context.Background()
	g := seedGoal(t, svc, "Holiday")
	if _, _, err := svc.Contribute(ctx, g.ID, goal.ContributeInput{AmountMinor: 30000, Bank: "bbva"}); err != nil {
		t.Fatalf("contribute: %v", err)
	}
	w, _, err := svc.Withdraw(ctx, g.ID, goal.WithdrawInput{AmountMinor: 10000, Bank: "bbva", RepayBy: time.Now().AddDate(0, 1, 0)})
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}

	pending, err := q.Pending(ctx, "prod")
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 1 || pending[0].GoalName != "Holiday" {
		t.Fatalf("unexpected pending list: %+v", pending)
	}
	if pending[0].Currency != "EUR" {
		t.Fatalf("expected goal currency carried through, got %q", pending[0].Currency)
	}

	if _, _, err := svc.Repay(ctx, w.ID); err != nil {
		t.Fatalf("repay: %v", err)
	}
	pending, err = q.Pending(ctx, "prod")
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("repaid withdrawal still pending: %+v", pending)
	}
}

func TestLookupsRejectNilAndMissing(t *testing.T) {
	q, _, _ := setup(t)
	ctx := context.Background()
	if _, err := q.Goal(ctx, uuid.Nil); !errors.Is(err, errs.ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
	if _, err := q.Goal(ctx, uuid.New()); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := q.Contributions(ctx, uuid.New()); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
