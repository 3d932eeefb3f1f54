package memory_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mfigueroa/hucha/internal/savings"
	"github.com/mfigueroa/hucha/internal/service/goal"
	"github.com/mfigueroa/hucha/internal/storage/memory"
)

func TestRollbackRestoresState(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	g := savings.Goal{ID: uuid.New(), Name: "A", Currency: "EUR", TargetMinor: 1000, Environment: "prod", CreatedAt: time.Now().UTC()}
	store.SeedGoal(g)

	tx, err := store.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := tx.CreateEntry(ctx, savings.Entry{ID: uuid.New(), GoalID: g.ID, AmountMinor: 500, Date: savings.Day(time.Now())}); err != nil {
		t.Fatalf("create entry: %v", err)
	}
	g.CurrentMinor = 500
	if err := tx.SaveGoal(ctx, g); err != nil {
		t.Fatalf("save goal: %v", err)
	}
	if err := tx.Rollback(ctx); err != nil {
		t.Fatalf("rollback: %v", err)
	}

	got, err := store.GoalByID(ctx, g.ID)
	if err != nil {
		t.Fatalf("goal: %v", err)
	}
	if got.CurrentMinor != 0 {
		t.Fatalf("goal mutation survived rollback: %d", got.CurrentMinor)
	}
	entries, err := store.EntriesByGoal(ctx, g.ID)
	if err != nil {
		t.Fatalf("entries: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("entry survived rollback")
	}
}

func TestRollbackAfterCommitIsNoop(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	g := savings.Goal{ID: uuid.New(), Name: "A", Currency: "EUR", TargetMinor: 1000, Environment: "prod", CreatedAt: time.Now().UTC()}

	tx, err := store.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := tx.CreateGoal(ctx, g); err != nil {
		t.Fatalf("create goal: %v", err)
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := tx.Rollback(ctx); err != nil {
		t.Fatalf("rollback after commit: %v", err)
	}
	if _, err := store.GoalByID(ctx, g.ID); err != nil {
		t.Fatalf("committed goal lost: %v", err)
	}
}

// Concurrent withdrawals against the same goal must never overdraw it. Each
// transaction holds the store lock, so the balance check and the debit are
// atomic together.
func TestConcurrentWithdrawalsNeverOverdraw(t *testing.T) {
	store := memory.New()
	svc := goal.New(store)
	ctx := context.Background()

	g, err := svc.Create(ctx, goal.CreateInput{Name: "A", Currency: "EUR", TargetMinor: 100000, Environment: "prod"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, _, err := svc.Contribute(ctx, g.ID, goal.ContributeInput{AmountMinor: 50000, Bank: "bbva"}); err != nil {
		t.Fatalf("contribute: %v", err)
	}

	const workers = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	var succeeded int
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := svc.Withdraw(ctx, g.ID, goal.WithdrawInput{
				AmountMinor: 10000, Bank: "bbva", RepayBy: time.Now().AddDate(0, 1, 0),
			})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if succeeded != 5 {
		t.Fatalf("expected exactly 5 withdrawals to succeed, got %d", succeeded)
	}
	got, err := store.GoalByID(ctx, g.ID)
	if err != nil {
		t.Fatalf("goal: %v", err)
	}
	if got.CurrentMinor != 0 {
		t.Fatalf("expected balance 0, got %d", got.CurrentMinor)
	}
	entries, err := store.EntriesByGoal(ctx, g.ID)
	if err != nil {
		t.Fatalf("entries: %v", err)
	}
	var sum int64
	for _, e := range entries {
		sum += e.AmountMinor
	}
	if sum != 0 {
		t.Fatalf("ledger does not balance: %d", sum)
	}
}
