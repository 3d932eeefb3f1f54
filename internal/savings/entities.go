package savings

import (
	"time"

	"github.com/google/uuid"
)

// WithdrawalState tracks the repayment lifecycle of a withdrawal.
type WithdrawalState string

const (
	// WithdrawalPending means the money is still out and owed back by RepayBy.
	WithdrawalPending WithdrawalState = "pending"
	// WithdrawalRepaid is terminal; the offsetting entry has been posted.
	WithdrawalRepaid WithdrawalState = "repaid"
)

// Cadence is an advisory contribution rhythm for a goal. The engine never
// enforces it; it only informs reminders in the client.
type Cadence string

const (
	CadenceWeekly   Cadence = "weekly"
	CadenceBiweekly Cadence = "biweekly"
	CadenceMonthly  Cadence = "monthly"
)

// Goal is a named savings target. CurrentMinor is a cached aggregate and must
// equal the sum of the goal's entries after every committed operation; it is
// owned by the ledger engine and never written directly by callers.
type Goal struct {
	ID           uuid.UUID
	Name         string
	Currency     string
	TargetMinor  int64
	CurrentMinor int64
	DueDate      *time.Time
	Cadence      Cadence
	// CadenceDay is the day-of-month (or weekday for weekly cadences) hint; 0 when unset.
	CadenceDay int
	Icon       string
	Color      string
	Notes      string
	// Environment partitions goals (e.g. "prod" vs "sandbox"); aggregates never
	// cross partitions.
	Environment string
	CreatedAt   time.Time
}

// Percent reports progress toward the target as 0..100 (may exceed 100).
func (g Goal) Percent() float64 {
	if g.TargetMinor <= 0 {
		return 0
	}
	return float64(g.CurrentMinor) / float64(g.TargetMinor) * 100
}

// Entry is a signed ledger line for a goal. Positive amounts are deposits,
// negative amounts are withdrawal offsets. Bank is an optional label; per-bank
// committed totals are always derived by live aggregation over entries.
type Entry struct {
	ID          uuid.UUID
	GoalID      uuid.UUID
	AmountMinor int64
	Date        time.Time
	Bank        string
}

// Withdrawal records a temporary removal of committed funds. EntryID points at
// the negative entry posted alongside it; rows imported from older data may
// carry uuid.Nil there, in which case reversal falls back to value matching.
type Withdrawal struct {
	ID          uuid.UUID
	GoalID      uuid.UUID
	EntryID     uuid.UUID
	AmountMinor int64
	Reason      string
	Category    string
	Bank        string
	Date        time.Time
	RepayBy     time.Time
	State       WithdrawalState
	RepaidAt    *time.Time
}

// Repaid reports whether the withdrawal reached its terminal state.
func (w Withdrawal) Repaid() bool { return w.State == WithdrawalRepaid }

// Day truncates t to midnight UTC. Entries and withdrawals carry day
// granularity dates; reversal matching depends on this normalization.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
