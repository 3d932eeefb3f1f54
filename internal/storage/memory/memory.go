// Package memory provides an in-memory store used for development and tests.
// Transactions hold the store mutex for their whole lifetime, which makes
// every engine operation trivially serializable; Rollback restores a snapshot
// taken at Begin.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mfigueroa/hucha/internal/errs"
	"github.com/mfigueroa/hucha/internal/savings"
	"github.com/mfigueroa/hucha/internal/service/goal"
	"github.com/mfigueroa/hucha/internal/service/query"
)

// Store keeps all records in maps guarded by an RWMutex.
type Store struct {
	mu          sync.RWMutex
	goals       map[uuid.UUID]savings.Goal
	entries     map[uuid.UUID]savings.Entry
	withdrawals map[uuid.UUID]savings.Withdrawal
}

// New constructs an empty in-memory store.
func New() *Store {
	return &Store{
		goals:       make(map[uuid.UUID]savings.Goal),
		entries:     make(map[uuid.UUID]savings.Entry),
		withdrawals: make(map[uuid.UUID]savings.Withdrawal),
	}
}

// Seed helpers for local dev/tests.
func (s *Store) SeedGoal(g savings.Goal) { s.mu.Lock(); s.goals[g.ID] = g; s.mu.Unlock() }
func (s *Store) SeedEntry(e savings.Entry) {
	s.mu.Lock()
	s.entries[e.ID] = e
	s.mu.Unlock()
}
func (s *Store) SeedWithdrawal(w savings.Withdrawal) {
	s.mu.Lock()
	s.withdrawals[w.ID] = w
	s.mu.Unlock()
}

// Reset drops everything; used between tests.
func (s *Store) Reset() {
	s.mu.Lock()
	s.goals = map[uuid.UUID]savings.Goal{}
	s.entries = map[uuid.UUID]savings.Entry{}
	s.withdrawals = map[uuid.UUID]savings.Withdrawal{}
	s.mu.Unlock()
}

// Ready implements the readiness probe; the memory store is always ready.
func (s *Store) Ready(_ context.Context) error { return nil }

// Begin implements goal.Store. The returned transaction owns the write lock
// until Commit or Rollback.
func (s *Store) Begin(_ context.Context) (goal.Tx, error) {
	s.mu.Lock()
	return &Tx{
		s:               s,
		snapGoals:       cloneMap(s.goals),
		snapEntries:     cloneMap(s.entries),
		snapWithdrawals: cloneMap(s.withdrawals),
	}, nil
}

// --- query.Repo ---

// GoalByID implements query.Repo.
func (s *Store) GoalByID(_ context.Context, goalID uuid.UUID) (savings.Goal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.goals[goalID]
	if !ok {
		return savings.Goal{}, errs.ErrNotFound
	}
	return g, nil
}

// GoalsByEnvironment implements query.Repo; newest first.
func (s *Store) GoalsByEnvironment(_ context.Context, environment string) ([]savings.Goal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]savings.Goal, 0)
	for _, g := range s.goals {
		if g.Environment == environment {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

// EntriesByGoal implements query.Repo; date descending.
func (s *Store) EntriesByGoal(_ context.Context, goalID uuid.UUID) ([]savings.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]savings.Entry, 0)
	for _, e := range s.entries {
		if e.GoalID == goalID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

// WithdrawalsByGoal implements query.Repo; date descending.
func (s *Store) WithdrawalsByGoal(_ context.Context, goalID uuid.UUID) ([]savings.Withdrawal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]savings.Withdrawal, 0)
	for _, w := range s.withdrawals {
		if w.GoalID == goalID {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

// PendingWithdrawals implements query.Repo; repayment deadline ascending.
func (s *Store) PendingWithdrawals(_ context.Context, environment string) ([]query.PendingWithdrawal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]query.PendingWithdrawal, 0)
	for _, w := range s.withdrawals {
		if w.Repaid() {
			continue
		}
		g, ok := s.goals[w.GoalID]
		if !ok || g.Environment != environment {
			continue
		}
		out = append(out, query.PendingWithdrawal{Withdrawal: w, GoalName: g.Name, Currency: g.Currency})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].RepayBy.Equal(out[j].RepayBy) {
			return out[i].RepayBy.Before(out[j].RepayBy)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

// BankTotals implements query.Repo; empty bank labels are excluded.
func (s *Store) BankTotals(_ context.Context, environment string) (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]int64)
	for _, e := range s.entries {
		if e.Bank == "" {
			continue
		}
		g, ok := s.goals[e.GoalID]
		if !ok || g.Environment != environment {
			continue
		}
		out[e.Bank] += e.AmountMinor
	}
	return out, nil
}

// BankTotalsByGoal implements query.Repo.
func (s *Store) BankTotalsByGoal(_ context.Context, goalID uuid.UUID) (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]int64)
	for _, e := range s.entries {
		if e.GoalID == goalID && e.Bank != "" {
			out[e.Bank] += e.AmountMinor
		}
	}
	return out, nil
}

// Tx implements goal.Tx over the locked store. done guards double release.
type Tx struct {
	s               *Store
	done            bool
	snapGoals       map[uuid.UUID]savings.Goal
	snapEntries     map[uuid.UUID]savings.Entry
	snapWithdrawals map[uuid.UUID]savings.Withdrawal
}

// Commit implements goal.Tx.
func (t *Tx) Commit(_ context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	t.snapGoals, t.snapEntries, t.snapWithdrawals = nil, nil, nil
	t.s.mu.Unlock()
	return nil
}

// Rollback restores the snapshot taken at Begin. Safe after Commit.
func (t *Tx) Rollback(_ context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	t.s.goals = t.snapGoals
	t.s.entries = t.snapEntries
	t.s.withdrawals = t.snapWithdrawals
	t.s.mu.Unlock()
	return nil
}

func (t *Tx) CreateGoal(_ context.Context, g savings.Goal) error {
	t.s.goals[g.ID] = g
	return nil
}

// GoalForUpdate returns the goal; the transaction already excludes all other
// writers, so there is no per-row lock to take.
func (t *Tx) GoalForUpdate(_ context.Context, goalID uuid.UUID) (savings.Goal, error) {
	g, ok := t.s.goals[goalID]
	if !ok {
		return savings.Goal{}, errs.ErrNotFound
	}
	return g, nil
}

func (t *Tx) SaveGoal(_ context.Context, g savings.Goal) error {
	if _, ok := t.s.goals[g.ID]; !ok {
		return errs.ErrNotFound
	}
	t.s.goals[g.ID] = g
	return nil
}

func (t *Tx) DeleteGoal(_ context.Context, goalID uuid.UUID) error {
	if _, ok := t.s.goals[goalID]; !ok {
		return errs.ErrNotFound
	}
	delete(t.s.goals, goalID)
	return nil
}

func (t *Tx) CreateEntry(_ context.Context, e savings.Entry) error {
	t.s.entries[e.ID] = e
	return nil
}

func (t *Tx) EntryByID(_ context.Context, entryID uuid.UUID) (savings.Entry, error) {
	e, ok := t.s.entries[entryID]
	if !ok {
		return savings.Entry{}, errs.ErrNotFound
	}
	return e, nil
}

func (t *Tx) SaveEntry(_ context.Context, e savings.Entry) error {
	if _, ok := t.s.entries[e.ID]; !ok {
		return errs.ErrNotFound
	}
	t.s.entries[e.ID] = e
	return nil
}

func (t *Tx) DeleteEntry(_ context.Context, entryID uuid.UUID) error {
	if _, ok := t.s.entries[entryID]; !ok {
		return errs.ErrNotFound
	}
	delete(t.s.entries, entryID)
	return nil
}

func (t *Tx) DeleteEntriesByGoal(_ context.Context, goalID uuid.UUID) error {
	for id, e := range t.s.entries {
		if e.GoalID == goalID {
			delete(t.s.entries, id)
		}
	}
	return nil
}

func (t *Tx) MatchEntries(_ context.Context, goalID uuid.UUID, amountMinor int64, date time.Time, bank string) ([]savings.Entry, error) {
	day := savings.Day(date)
	out := make([]savings.Entry, 0, 1)
	for _, e := range t.s.entries {
		if e.GoalID == goalID && e.AmountMinor == amountMinor && e.Bank == bank && savings.Day(e.Date).Equal(day) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (t *Tx) SumEntries(_ context.Context, goalID uuid.UUID) (int64, error) {
	var sum int64
	for _, e := range t.s.entries {
		if e.GoalID == goalID {
			sum += e.AmountMinor
		}
	}
	return sum, nil
}

func (t *Tx) SumEntriesByBank(_ context.Context, goalID uuid.UUID, bank string) (int64, error) {
	var sum int64
	for _, e := range t.s.entries {
		if e.GoalID == goalID && e.Bank == bank {
			sum += e.AmountMinor
		}
	}
	return sum, nil
}

func (t *Tx) RelabelEntries(_ context.Context, environment, sourceBank, destBank string, goalIDs []uuid.UUID) (int64, error) {
	wanted := make(map[uuid.UUID]struct{}, len(goalIDs))
	for _, id := range goalIDs {
		wanted[id] = struct{}{}
	}
	var moved int64
	for id, e := range t.s.entries {
		if e.Bank != sourceBank {
			continue
		}
		if len(wanted) > 0 {
			if _, ok := wanted[e.GoalID]; !ok {
				continue
			}
		}
		g, ok := t.s.goals[e.GoalID]
		if !ok || g.Environment != environment {
			continue
		}
		e.Bank = destBank
		t.s.entries[id] = e
		moved++
	}
	return moved, nil
}

func (t *Tx) CreateWithdrawal(_ context.Context, w savings.Withdrawal) error {
	t.s.withdrawals[w.ID] = w
	return nil
}

func (t *Tx) WithdrawalForUpdate(_ context.Context, withdrawalID uuid.UUID) (savings.Withdrawal, error) {
	w, ok := t.s.withdrawals[withdrawalID]
	if !ok {
		return savings.Withdrawal{}, errs.ErrNotFound
	}
	return w, nil
}

func (t *Tx) SaveWithdrawal(_ context.Context, w savings.Withdrawal) error {
	if _, ok := t.s.withdrawals[w.ID]; !ok {
		return errs.ErrNotFound
	}
	t.s.withdrawals[w.ID] = w
	return nil
}

func (t *Tx) DeleteWithdrawal(_ context.Context, withdrawalID uuid.UUID) error {
	if _, ok := t.s.withdrawals[withdrawalID]; !ok {
		return errs.ErrNotFound
	}
	delete(t.s.withdrawals, withdrawalID)
	return nil
}

func (t *Tx) DeleteWithdrawalsByGoal(_ context.Context, goalID uuid.UUID) error {
	for id, w := range t.s.withdrawals {
		if w.GoalID == goalID {
			delete(t.s.withdrawals, id)
		}
	}
	return nil
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
