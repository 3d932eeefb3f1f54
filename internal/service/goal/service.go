// Package goal implements the savings ledger engine: every mutation of goals,
// contribution entries and withdrawals runs as one store transaction, and the
// cached goal total is kept consistent with the entry ledger throughout.
package goal

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/mfigueroa/hucha/internal/errs"
	"github.com/mfigueroa/hucha/internal/savings"
	"github.com/mfigueroa/hucha/internal/slug"
)

// Store opens transactions against the backing record store.
type Store interface {
	Begin(ctx context.Context) (Tx, error)
}

// Tx is one atomic unit of work. Implementations must make the read-then-write
// sequences below serializable per goal: the postgres store locks the goal row
// in GoalForUpdate, the memory store holds its mutex for the transaction
// lifetime. Rollback after Commit must be a no-op.
type Tx interface {
	CreateGoal(ctx context.Context, g savings.Goal) error
	// GoalForUpdate loads the goal and locks it until the transaction ends.
	GoalForUpdate(ctx context.Context, goalID uuid.UUID) (savings.Goal, error)
	SaveGoal(ctx context.Context, g savings.Goal) error
	DeleteGoal(ctx context.Context, goalID uuid.UUID) error

	CreateEntry(ctx context.Context, e savings.Entry) error
	EntryByID(ctx context.Context, entryID uuid.UUID) (savings.Entry, error)
	SaveEntry(ctx context.Context, e savings.Entry) error
	DeleteEntry(ctx context.Context, entryID uuid.UUID) error
	DeleteEntriesByGoal(ctx context.Context, goalID uuid.UUID) error
	// MatchEntries returns entries equal on (goal, amount, date, bank). Only the
	// legacy reversal path uses it, for withdrawals without an entry link.
	MatchEntries(ctx context.Context, goalID uuid.UUID, amountMinor int64, date time.Time, bank string) ([]savings.Entry, error)
	SumEntries(ctx context.Context, goalID uuid.UUID) (int64, error)
	SumEntriesByBank(ctx context.Context, goalID uuid.UUID, bank string) (int64, error)
	// RelabelEntries rewrites the bank label on entries within one environment,
	// optionally restricted to a set of goals, and reports how many rows changed.
	RelabelEntries(ctx context.Context, environment, sourceBank, destBank string, goalIDs []uuid.UUID) (int64, error)

	CreateWithdrawal(ctx context.Context, w savings.Withdrawal) error
	WithdrawalForUpdate(ctx context.Context, withdrawalID uuid.UUID) (savings.Withdrawal, error)
	SaveWithdrawal(ctx context.Context, w savings.Withdrawal) error
	DeleteWithdrawal(ctx context.Context, withdrawalID uuid.UUID) error
	DeleteWithdrawalsByGoal(ctx context.Context, goalID uuid.UUID) error

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// CreateInput carries the fields for a new goal.
type CreateInput struct {
	Name        string
	Currency    string
	TargetMinor int64
	DueDate     *time.Time
	Cadence     savings.Cadence
	CadenceDay  int
	Icon        string
	Color       string
	Environment string
}

// Patch updates cosmetic goal fields. Nil pointers leave the field untouched;
// ClearDueDate removes an existing due date. CurrentMinor is never touched here.
type Patch struct {
	Name         *string
	TargetMinor  *int64
	DueDate      *time.Time
	ClearDueDate bool
	Cadence      *savings.Cadence
	CadenceDay   *int
	Icon         *string
	Color        *string
	Notes        *string
}

// ContributeInput appends a deposit to a goal. Date defaults to today.
type ContributeInput struct {
	AmountMinor int64
	Date        *time.Time
	Bank        string
}

// WithdrawInput removes committed funds from one bank against a repayment deadline.
type WithdrawInput struct {
	AmountMinor int64
	Bank        string
	RepayBy     time.Time
	Reason      string
	Category    string
}

// EntryPatch edits a historical ledger entry. Amounts stay signed.
type EntryPatch struct {
	AmountMinor *int64
	Date        *time.Time
	Bank        *string
}

// TransferInput relabels the bank on matching entries within one environment.
type TransferInput struct {
	Environment string
	SourceBank  string
	DestBank    string
	// GoalIDs restricts the transfer; empty means all goals in the environment.
	GoalIDs []uuid.UUID
}

// DeleteWithdrawalResult reports the outcome of reversing a withdrawal.
// EntryRemoved is false when the paired ledger entry could not be identified
// unambiguously; the record is gone either way and the total recomputed.
type DeleteWithdrawalResult struct {
	GoalID        uuid.UUID
	NewTotalMinor int64
	EntryRemoved  bool
}

// Service is the savings ledger engine.
type Service interface {
	Create(ctx context.Context, in CreateInput) (savings.Goal, error)
	Update(ctx context.Context, goalID uuid.UUID, p Patch) (savings.Goal, error)
	Contribute(ctx context.Context, goalID uuid.UUID, in ContributeInput) (savings.Entry, int64, error)
	Withdraw(ctx context.Context, goalID uuid.UUID, in WithdrawInput) (savings.Withdrawal, int64, error)
	Repay(ctx context.Context, withdrawalID uuid.UUID) (savings.Withdrawal, int64, error)
	UpdateContribution(ctx context.Context, entryID uuid.UUID, p EntryPatch) (savings.Entry, int64, error)
	DeleteContribution(ctx context.Context, entryID uuid.UUID) (int64, error)
	DeleteWithdrawal(ctx context.Context, withdrawalID uuid.UUID) (DeleteWithdrawalResult, error)
	Transfer(ctx context.Context, in TransferInput) (int64, error)
	Complete(ctx context.Context, goalID uuid.UUID) error
	Delete(ctx context.Context, goalID uuid.UUID) error
	Recalculate(ctx context.Context, goalID uuid.UUID) (int64, error)
}

type service struct {
	store Store
}

// New constructs the engine over a transactional store.
func New(store Store) Service { return &service{store: store} }

// withTx runs fn inside a transaction, committing on success.
func (s *service) withTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

func (s *service) Create(ctx context.Context, in CreateInput) (savings.Goal, error) {
	if in.Name == "" || in.TargetMinor <= 0 {
		return savings.Goal{}, errs.ErrInvalid
	}
	env := slug.Slugify(in.Environment)
	if env == "" {
		return savings.Goal{}, errs.ErrInvalid
	}
	switch in.Cadence {
	case "", savings.CadenceWeekly, savings.CadenceBiweekly, savings.CadenceMonthly:
	default:
		return savings.Goal{}, errs.ErrInvalid
	}
	g := savings.Goal{
		ID:          uuid.New(),
		Name:        in.Name,
		Currency:    in.Currency,
		TargetMinor: in.TargetMinor,
		Cadence:     in.Cadence,
		CadenceDay:  in.CadenceDay,
		Icon:        in.Icon,
		Color:       in.Color,
		Environment: env,
		CreatedAt:   time.Now().UTC(),
	}
	if in.DueDate != nil {
		d := savings.Day(*in.DueDate)
		g.DueDate = &d
	}
	err := s.withTx(ctx, func(tx Tx) error {
		return tx.CreateGoal(ctx, g)
	})
	if err != nil {
		return savings.Goal{}, err
	}
	return g, nil
}

func (s *service) Update(ctx context.Context, goalID uuid.UUID, p Patch) (savings.Goal, error) {
	if goalID == uuid.Nil {
		return savings.Goal{}, errs.ErrInvalid
	}
	if p.Name != nil && *p.Name == "" {
		return savings.Goal{}, errs.ErrInvalid
	}
	if p.TargetMinor != nil && *p.TargetMinor <= 0 {
		return savings.Goal{}, errs.ErrInvalid
	}
	var out savings.Goal
	err := s.withTx(ctx, func(tx Tx) error {
		g, err := tx.GoalForUpdate(ctx, goalID)
		if err != nil {
			return err
		}
		if p.Name != nil {
			g.Name = *p.Name
		}
		if p.TargetMinor != nil {
			g.TargetMinor = *p.TargetMinor
		}
		if p.ClearDueDate {
			g.DueDate = nil
		} else if p.DueDate != nil {
			d := savings.Day(*p.DueDate)
			g.DueDate = &d
		}
		if p.Cadence != nil {
			switch *p.Cadence {
			case "", savings.CadenceWeekly, savings.CadenceBiweekly, savings.CadenceMonthly:
				g.Cadence = *p.Cadence
			default:
				return errs.ErrInvalid
			}
		}
		if p.CadenceDay != nil {
			g.CadenceDay = *p.CadenceDay
		}
		if p.Icon != nil {
			g.Icon = *p.Icon
		}
		if p.Color != nil {
			g.Color = *p.Color
		}
		if p.Notes != nil {
			g.Notes = *p.Notes
		}
		out = g
		return tx.SaveGoal(ctx, g)
	})
	if err != nil {
		return savings.Goal{}, err
	}
	return out, nil
}

func (s *service) Contribute(ctx context.Context, goalID uuid.UUID, in ContributeInput) (savings.Entry, int64, error) {
	if goalID == uuid.Nil || in.AmountMinor <= 0 {
		return savings.Entry{}, 0, errs.ErrInvalid
	}
	date := savings.Day(time.Now())
	if in.Date != nil {
		date = savings.Day(*in.Date)
	}
	e := savings.Entry{ID: uuid.New(), GoalID: goalID, AmountMinor: in.AmountMinor, Date: date, Bank: in.Bank}
	var total int64
	err := s.withTx(ctx, func(tx Tx) error {
		g, err := tx.GoalForUpdate(ctx, goalID)
		if err != nil {
			return err
		}
		if err := tx.CreateEntry(ctx, e); err != nil {
			return err
		}
		g.CurrentMinor += in.AmountMinor
		total = g.CurrentMinor
		return tx.SaveGoal(ctx, g)
	})
	if err != nil {
		return savings.Entry{}, 0, err
	}
	return e, total, nil
}

func (s *service) Withdraw(ctx context.Context, goalID uuid.UUID, in WithdrawInput) (savings.Withdrawal, int64, error) {
	if goalID == uuid.Nil || in.AmountMinor <= 0 || in.Bank == "" || in.RepayBy.IsZero() {
		return savings.Withdrawal{}, 0, errs.ErrInvalid
	}
	var (
		w     savings.Withdrawal
		total int64
	)
	err := s.withTx(ctx, func(tx Tx) error {
		g, err := tx.GoalForUpdate(ctx, goalID)
		if err != nil {
			return err
		}
		if in.AmountMinor > g.CurrentMinor {
			return errs.ErrInsufficientFunds
		}
		bankTotal, err := tx.SumEntriesByBank(ctx, goalID, in.Bank)
		if err != nil {
			return err
		}
		if in.AmountMinor > bankTotal {
			return errs.ErrInsufficientFunds
		}
		today := savings.Day(time.Now())
		e := savings.Entry{ID: uuid.New(), GoalID: goalID, AmountMinor: -in.AmountMinor, Date: today, Bank: in.Bank}
		if err := tx.CreateEntry(ctx, e); err != nil {
			return err
		}
		w = savings.Withdrawal{
			ID:          uuid.New(),
			GoalID:      goalID,
			EntryID:     e.ID,
			AmountMinor: in.AmountMinor,
			Reason:      in.Reason,
			Category:    in.Category,
			Bank:        in.Bank,
			Date:        today,
			RepayBy:     savings.Day(in.RepayBy),
			State:       savings.WithdrawalPending,
		}
		if err := tx.CreateWithdrawal(ctx, w); err != nil {
			return err
		}
		g.CurrentMinor -= in.AmountMinor
		total = g.CurrentMinor
		return tx.SaveGoal(ctx, g)
	})
	if err != nil {
		return savings.Withdrawal{}, 0, err
	}
	return w, total, nil
}

func (s *service) Repay(ctx context.Context, withdrawalID uuid.UUID) (savings.Withdrawal, int64, error) {
	if withdrawalID == uuid.Nil {
		return savings.Withdrawal{}, 0, errs.ErrInvalid
	}
	var (
		out   savings.Withdrawal
		total int64
	)
	err := s.withTx(ctx, func(tx Tx) error {
		w, err := tx.WithdrawalForUpdate(ctx, withdrawalID)
		if err != nil {
			return err
		}
		if w.Repaid() {
			return errs.ErrAlreadyRepaid
		}
		g, err := tx.GoalForUpdate(ctx, w.GoalID)
		if err != nil {
			return err
		}
		today := savings.Day(time.Now())
		e := savings.Entry{ID: uuid.New(), GoalID: w.GoalID, AmountMinor: w.AmountMinor, Date: today, Bank: w.Bank}
		if err := tx.CreateEntry(ctx, e); err != nil {
			return err
		}
		w.State = savings.WithdrawalRepaid
		w.RepaidAt = &today
		if err := tx.SaveWithdrawal(ctx, w); err != nil {
			return err
		}
		g.CurrentMinor += w.AmountMinor
		total = g.CurrentMinor
		out = w
		return tx.SaveGoal(ctx, g)
	})
	if err != nil {
		return savings.Withdrawal{}, 0, err
	}
	return out, total, nil
}

// UpdateContribution edits a historical entry and recomputes the owning goal's
// total from scratch. Incremental deltas drift once entries are edited out of
// band, so the full sum is always re-derived here.
func (s *service) UpdateContribution(ctx context.Context, entryID uuid.UUID, p EntryPatch) (savings.Entry, int64, error) {
	if entryID == uuid.Nil {
		return savings.Entry{}, 0, errs.ErrInvalid
	}
	var (
		out   savings.Entry
		total int64
	)
	err := s.withTx(ctx, func(tx Tx) error {
		e, err := tx.EntryByID(ctx, entryID)
		if err != nil {
			return err
		}
		g, err := tx.GoalForUpdate(ctx, e.GoalID)
		if err != nil {
			return err
		}
		oldBank := e.Bank
		if p.AmountMinor != nil {
			e.AmountMinor = *p.AmountMinor
		}
		if p.Date != nil {
			e.Date = savings.Day(*p.Date)
		}
		if p.Bank != nil {
			e.Bank = *p.Bank
		}
		if err := tx.SaveEntry(ctx, e); err != nil {
			return err
		}
		total, err = s.recompute(ctx, tx, &g)
		if err != nil {
			return err
		}
		if total < 0 {
			return errs.ErrConflict
		}
		if err := s.checkBanks(ctx, tx, g.ID, oldBank, e.Bank); err != nil {
			return err
		}
		out = e
		return nil
	})
	if err != nil {
		return savings.Entry{}, 0, err
	}
	return out, total, nil
}

func (s *service) DeleteContribution(ctx context.Context, entryID uuid.UUID) (int64, error) {
	if entryID == uuid.Nil {
		return 0, errs.ErrInvalid
	}
	var total int64
	err := s.withTx(ctx, func(tx Tx) error {
		e, err := tx.EntryByID(ctx, entryID)
		if err != nil {
			return err
		}
		g, err := tx.GoalForUpdate(ctx, e.GoalID)
		if err != nil {
			return err
		}
		if err := tx.DeleteEntry(ctx, entryID); err != nil {
			return err
		}
		total, err = s.recompute(ctx, tx, &g)
		if err != nil {
			return err
		}
		if total < 0 {
			return errs.ErrConflict
		}
		return s.checkBanks(ctx, tx, g.ID, e.Bank)
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}

func (s *service) DeleteWithdrawal(ctx context.Context, withdrawalID uuid.UUID) (DeleteWithdrawalResult, error) {
	if withdrawalID == uuid.Nil {
		return DeleteWithdrawalResult{}, errs.ErrInvalid
	}
	var res DeleteWithdrawalResult
	err := s.withTx(ctx, func(tx Tx) error {
		w, err := tx.WithdrawalForUpdate(ctx, withdrawalID)
		if err != nil {
			return err
		}
		g, err := tx.GoalForUpdate(ctx, w.GoalID)
		if err != nil {
			return err
		}
		res.GoalID = w.GoalID
		if w.EntryID != uuid.Nil {
			switch err := tx.DeleteEntry(ctx, w.EntryID); {
			case err == nil:
				res.EntryRemoved = true
			case errors.Is(err, errs.ErrNotFound):
				// linked entry already edited away; fall through with a warning
			default:
				return err
			}
		} else {
			// Legacy rows carry no entry link; reverse only an unambiguous match.
			matches, err := tx.MatchEntries(ctx, w.GoalID, -w.AmountMinor, w.Date, w.Bank)
			if err != nil {
				return err
			}
			if len(matches) == 1 {
				if err := tx.DeleteEntry(ctx, matches[0].ID); err != nil {
					return err
				}
				res.EntryRemoved = true
			}
		}
		if err := tx.DeleteWithdrawal(ctx, withdrawalID); err != nil {
			return err
		}
		res.NewTotalMinor, err = s.recompute(ctx, tx, &g)
		return err
	})
	if err != nil {
		return DeleteWithdrawalResult{}, err
	}
	return res, nil
}

// Transfer relabels the bank on matching entries. Totals never change: the
// entries move wholesale, so the per-goal sums at the source simply reappear
// intact at the destination.
func (s *service) Transfer(ctx context.Context, in TransferInput) (int64, error) {
	env := slug.Slugify(in.Environment)
	if env == "" || in.SourceBank == "" || in.DestBank == "" {
		return 0, errs.ErrInvalid
	}
	if in.SourceBank == in.DestBank {
		return 0, errs.ErrInvalid
	}
	var moved int64
	err := s.withTx(ctx, func(tx Tx) error {
		var err error
		moved, err = tx.RelabelEntries(ctx, env, in.SourceBank, in.DestBank, in.GoalIDs)
		return err
	})
	if err != nil {
		return 0, err
	}
	return moved, nil
}

// Complete is terminal: the goal, its entries and its withdrawal records go in
// one transaction, freeing every per-bank commitment tied to the goal.
func (s *service) Complete(ctx context.Context, goalID uuid.UUID) error {
	return s.removeGoal(ctx, goalID)
}

// Delete abandons a goal; same removal path as Complete.
func (s *service) Delete(ctx context.Context, goalID uuid.UUID) error {
	return s.removeGoal(ctx, goalID)
}

func (s *service) removeGoal(ctx context.Context, goalID uuid.UUID) error {
	if goalID == uuid.Nil {
		return errs.ErrInvalid
	}
	return s.withTx(ctx, func(tx Tx) error {
		g, err := tx.GoalForUpdate(ctx, goalID)
		if err != nil {
			return err
		}
		if err := tx.DeleteWithdrawalsByGoal(ctx, g.ID); err != nil {
			return err
		}
		if err := tx.DeleteEntriesByGoal(ctx, g.ID); err != nil {
			return err
		}
		return tx.DeleteGoal(ctx, g.ID)
	})
}

// Recalculate repairs drift after direct edits by re-deriving the cached total.
func (s *service) Recalculate(ctx context.Context, goalID uuid.UUID) (int64, error) {
	if goalID == uuid.Nil {
		return 0, errs.ErrInvalid
	}
	var total int64
	err := s.withTx(ctx, func(tx Tx) error {
		g, err := tx.GoalForUpdate(ctx, goalID)
		if err != nil {
			return err
		}
		total, err = s.recompute(ctx, tx, &g)
		return err
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}

// recompute persists the goal's cached total as the full entry sum.
func (s *service) recompute(ctx context.Context, tx Tx, g *savings.Goal) (int64, error) {
	total, err := tx.SumEntries(ctx, g.ID)
	if err != nil {
		return 0, err
	}
	g.CurrentMinor = total
	if err := tx.SaveGoal(ctx, *g); err != nil {
		return 0, err
	}
	return total, nil
}

// checkBanks rejects edits that would push a per-(goal,bank) sum negative.
// Empty bank labels are not committed anywhere, so they are skipped.
func (s *service) checkBanks(ctx context.Context, tx Tx, goalID uuid.UUID, banks ...string) error {
	seen := make(map[string]struct{}, len(banks))
	for _, b := range banks {
		if b == "" {
			continue
		}
		if _, ok := seen[b]; ok {
			continue
		}
		seen[b] = struct{}{}
		sum, err := tx.SumEntriesByBank(ctx, goalID, b)
		if err != nil {
			return err
		}
		if sum < 0 {
			return errs.ErrConflict
		}
	}
	return nil
}
