// Package query is the read side of the savings ledger: aggregation and
// listing only, no invariant checks and no writes.
package query

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/mfigueroa/hucha/internal/errs"
	"github.com/mfigueroa/hucha/internal/savings"
	"github.com/mfigueroa/hucha/internal/slug"
)

// Repo defines the read operations needed by the query layer.
type Repo interface {
	GoalByID(ctx context.Context, goalID uuid.UUID) (savings.Goal, error)
	// GoalsByEnvironment returns goals in one partition, newest first.
	GoalsByEnvironment(ctx context.Context, environment string) ([]savings.Goal, error)
	// EntriesByGoal returns a goal's entries, date descending.
	EntriesByGoal(ctx context.Context, goalID uuid.UUID) ([]savings.Entry, error)
	// WithdrawalsByGoal returns a goal's withdrawals, date descending.
	WithdrawalsByGoal(ctx context.Context, goalID uuid.UUID) ([]savings.Withdrawal, error)
	// PendingWithdrawals returns unrepaid withdrawals across one environment,
	// repayment deadline ascending, with the owning goal's name attached.
	PendingWithdrawals(ctx context.Context, environment string) ([]PendingWithdrawal, error)
	// BankTotals sums entries per non-empty bank label across one environment.
	BankTotals(ctx context.Context, environment string) (map[string]int64, error)
	// BankTotalsByGoal sums one goal's entries per non-empty bank label.
	BankTotalsByGoal(ctx context.Context, goalID uuid.UUID) (map[string]int64, error)
}

// HistoryItem is one line of a goal's unified history. Withdrawals appear with
// a negative amount; their offset entries are suppressed so each movement shows
// exactly once.
type HistoryItem struct {
	Kind        string // "contribution" or "withdrawal"
	ID          uuid.UUID
	Date        time.Time
	AmountMinor int64
	Bank        string
	Detail      string
}

// BankTotal is a per-bank committed amount.
type BankTotal struct {
	Bank       string
	TotalMinor int64
}

// Summary aggregates one environment's goals.
type Summary struct {
	TotalSavedMinor int64
	GoalCount       int
}

// PendingWithdrawal is a withdrawal joined with its goal's name and currency
// for listing.
type PendingWithdrawal struct {
	savings.Withdrawal
	GoalName string
	Currency string
}

// Service exposes the read-only savings queries.
type Service interface {
	Goal(ctx context.Context, goalID uuid.UUID) (savings.Goal, error)
	Goals(ctx context.Context, environment string) ([]savings.Goal, error)
	Contributions(ctx context.Context, goalID uuid.UUID) ([]savings.Entry, error)
	History(ctx context.Context, goalID uuid.UUID) ([]HistoryItem, error)
	ByBank(ctx context.Context, environment string) ([]BankTotal, error)
	GoalBanks(ctx context.Context, goalID uuid.UUID) ([]BankTotal, error)
	Summarize(ctx context.Context, environment string) (Summary, error)
	Withdrawals(ctx context.Context, goalID uuid.UUID) ([]savings.Withdrawal, error)
	Pending(ctx context.Context, environment string) ([]PendingWithdrawal, error)
}

type service struct {
	repo Repo
}

// New constructs the query layer over a read repository.
func New(repo Repo) Service { return &service{repo: repo} }

func (s *service) Goal(ctx context.Context, goalID uuid.UUID) (savings.Goal, error) {
	if goalID == uuid.Nil {
		return savings.Goal{}, errs.ErrInvalid
	}
	return s.repo.GoalByID(ctx, goalID)
}

func (s *service) Goals(ctx context.Context, environment string) ([]savings.Goal, error) {
	env := slug.Slugify(environment)
	if env == "" {
		return nil, errs.ErrInvalid
	}
	return s.repo.GoalsByEnvironment(ctx, env)
}

func (s *service) Contributions(ctx context.Context, goalID uuid.UUID) ([]savings.Entry, error) {
	if goalID == uuid.Nil {
		return nil, errs.ErrInvalid
	}
	if _, err := s.repo.GoalByID(ctx, goalID); err != nil {
		return nil, err
	}
	return s.repo.EntriesByGoal(ctx, goalID)
}

// History merges a goal's contributions and withdrawal records into one
// newest-first list. Entries created as withdrawal offsets are skipped in
// favor of the withdrawal record itself.
func (s *service) History(ctx context.Context, goalID uuid.UUID) ([]HistoryItem, error) {
	if goalID == uuid.Nil {
		return nil, errs.ErrInvalid
	}
	if _, err := s.repo.GoalByID(ctx, goalID); err != nil {
		return nil, err
	}
	entries, err := s.repo.EntriesByGoal(ctx, goalID)
	if err != nil {
		return nil, err
	}
	withdrawals, err := s.repo.WithdrawalsByGoal(ctx, goalID)
	if err != nil {
		return nil, err
	}
	offsets := make(map[uuid.UUID]struct{}, len(withdrawals))
	for _, w := range withdrawals {
		if w.EntryID != uuid.Nil {
			offsets[w.EntryID] = struct{}{}
		}
	}
	items := make([]HistoryItem, 0, len(entries)+len(withdrawals))
	for _, e := range entries {
		if _, ok := offsets[e.ID]; ok {
			continue
		}
		items = append(items, HistoryItem{
			Kind:        "contribution",
			ID:          e.ID,
			Date:        e.Date,
			AmountMinor: e.AmountMinor,
			Bank:        e.Bank,
			Detail:      "contribution",
		})
	}
	for _, w := range withdrawals {
		detail := w.Reason
		if detail == "" {
			detail = "withdrawal"
		}
		items = append(items, HistoryItem{
			Kind:        "withdrawal",
			ID:          w.ID,
			Date:        w.Date,
			AmountMinor: -w.AmountMinor,
			Bank:        w.Bank,
			Detail:      detail,
		})
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].Date.After(items[j].Date) })
	return items, nil
}

func (s *service) ByBank(ctx context.Context, environment string) ([]BankTotal, error) {
	env := slug.Slugify(environment)
	if env == "" {
		return nil, errs.ErrInvalid
	}
	totals, err := s.repo.BankTotals(ctx, env)
	if err != nil {
		return nil, err
	}
	return sortTotals(totals), nil
}

// GoalBanks lists the banks holding a positive committed amount for the goal,
// largest first. It feeds the withdrawal source menu.
func (s *service) GoalBanks(ctx context.Context, goalID uuid.UUID) ([]BankTotal, error) {
	if goalID == uuid.Nil {
		return nil, errs.ErrInvalid
	}
	if _, err := s.repo.GoalByID(ctx, goalID); err != nil {
		return nil, err
	}
	totals, err := s.repo.BankTotalsByGoal(ctx, goalID)
	if err != nil {
		return nil, err
	}
	for bank, sum := range totals {
		if sum <= 0 {
			delete(totals, bank)
		}
	}
	return sortTotals(totals), nil
}

func (s *service) Summarize(ctx context.Context, environment string) (Summary, error) {
	env := slug.Slugify(environment)
	if env == "" {
		return Summary{}, errs.ErrInvalid
	}
	goals, err := s.repo.GoalsByEnvironment(ctx, env)
	if err != nil {
		return Summary{}, err
	}
	var sum Summary
	sum.GoalCount = len(goals)
	for _, g := range goals {
		sum.TotalSavedMinor += g.CurrentMinor
	}
	return sum, nil
}

func (s *service) Withdrawals(ctx context.Context, goalID uuid.UUID) ([]savings.Withdrawal, error) {
	if goalID == uuid.Nil {
		return nil, errs.ErrInvalid
	}
	if _, err := s.repo.GoalByID(ctx, goalID); err != nil {
		return nil, err
	}
	return s.repo.WithdrawalsByGoal(ctx, goalID)
}

func (s *service) Pending(ctx context.Context, environment string) ([]PendingWithdrawal, error) {
	env := slug.Slugify(environment)
	if env == "" {
		return nil, errs.ErrInvalid
	}
	return s.repo.PendingWithdrawals(ctx, env)
}

// sortTotals orders bank totals descending by amount, name as tiebreak.
func sortTotals(m map[string]int64) []BankTotal {
	out := make([]BankTotal, 0, len(m))
	for bank, sum := range m {
		out = append(out, BankTotal{Bank: bank, TotalMinor: sum})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalMinor != out[j].TotalMinor {
			return out[i].TotalMinor > out[j].TotalMinor
		}
		return out[i].Bank < out[j].Bank
	})
	return out
}
