// Package postgres provides a pgx-backed store for the savings ledger. The
// schema lives under db/migrations; this package maps domain records to rows
// and runs the statements and transactions the engine needs. GoalForUpdate
// takes a row lock, which serializes concurrent read-modify-write sequences
// per goal.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mfigueroa/hucha/internal/errs"
	"github.com/mfigueroa/hucha/internal/savings"
	"github.com/mfigueroa/hucha/internal/service/goal"
	"github.com/mfigueroa/hucha/internal/service/query"
)

// Store holds a pgx connection pool. All methods are safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// Open establishes a pgx pool using the provided connection string.
func Open(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &Store{pool: pool}, nil
}

// Close releases the underlying pool.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Ready pings the pool to verify connectivity.
func (s *Store) Ready(ctx context.Context) error { return s.pool.Ping(ctx) }

// Begin implements goal.Store.
func (s *Store) Begin(ctx context.Context) (goal.Tx, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &Tx{tx: tx}, nil
}

const goalColumns = `id, name, currency, target_minor, current_minor, due_date,
       cadence, cadence_day, icon, color, notes, environment, created_at`

func scanGoal(row pgx.Row) (savings.Goal, error) {
	var g savings.Goal
	err := row.Scan(&g.ID, &g.Name, &g.Currency, &g.TargetMinor, &g.CurrentMinor,
		&g.DueDate, &g.Cadence, &g.CadenceDay, &g.Icon, &g.Color, &g.Notes,
		&g.Environment, &g.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return savings.Goal{}, errs.ErrNotFound
	}
	if err != nil {
		return savings.Goal{}, err
	}
	return g, nil
}

// --- query.Repo (pool-backed reads) ---

// GoalByID implements query.Repo.
func (s *Store) GoalByID(ctx context.Context, goalID uuid.UUID) (savings.Goal, error) {
	return scanGoal(s.pool.QueryRow(ctx, `select `+goalColumns+` from goals where id = $1`, goalID))
}

// GoalsByEnvironment implements query.Repo.
func (s *Store) GoalsByEnvironment(ctx context.Context, environment string) ([]savings.Goal, error) {
	rows, err := s.pool.Query(ctx, `
        select `+goalColumns+`
        from goals
        where environment = $1
        order by created_at desc, id
    `, environment)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]savings.Goal, 0)
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// EntriesByGoal implements query.Repo.
func (s *Store) EntriesByGoal(ctx context.Context, goalID uuid.UUID) ([]savings.Entry, error) {
	rows, err := s.pool.Query(ctx, `
        select id, goal_id, amount_minor, date, bank
        from goal_entries
        where goal_id = $1
        order by date desc, id
    `, goalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]savings.Entry, 0)
	for rows.Next() {
		var e savings.Entry
		if err := rows.Scan(&e.ID, &e.GoalID, &e.AmountMinor, &e.Date, &e.Bank); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

const withdrawalColumns = `id, goal_id, entry_id, amount_minor, reason, category,
       bank, date, repay_by, state, repaid_at`

func scanWithdrawal(row pgx.Row) (savings.Withdrawal, error) {
	var (
		w       savings.Withdrawal
		entryID *uuid.UUID
	)
	err := row.Scan(&w.ID, &w.GoalID, &entryID, &w.AmountMinor, &w.Reason,
		&w.Category, &w.Bank, &w.Date, &w.RepayBy, &w.State, &w.RepaidAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return savings.Withdrawal{}, errs.ErrNotFound
	}
	if err != nil {
		return savings.Withdrawal{}, err
	}
	if entryID != nil {
		w.EntryID = *entryID
	}
	return w, nil
}

// WithdrawalsByGoal implements query.Repo.
func (s *Store) WithdrawalsByGoal(ctx context.Context, goalID uuid.UUID) ([]savings.Withdrawal, error) {
	rows, err := s.pool.Query(ctx, `
        select `+withdrawalColumns+`
        from goal_withdrawals
        where goal_id = $1
        order by date desc, id
    `, goalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]savings.Withdrawal, 0)
	for rows.Next() {
		w, err := scanWithdrawal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// PendingWithdrawals implements query.Repo.
func (s *Store) PendingWithdrawals(ctx context.Context, environment string) ([]query.PendingWithdrawal, error) {
	rows, err := s.pool.Query(ctx, `
        select w.id, w.goal_id, w.entry_id, w.amount_minor, w.reason, w.category,
               w.bank, w.date, w.repay_by, w.state, w.repaid_at, g.name, g.currency
        from goal_withdrawals w
        join goals g on g.id = w.goal_id
        where g.environment = $1 and w.state = $2
        order by w.repay_by asc, w.id
    `, environment, savings.WithdrawalPending)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]query.PendingWithdrawal, 0)
	for rows.Next() {
		var (
			p       query.PendingWithdrawal
			entryID *uuid.UUID
		)
		if err := rows.Scan(&p.ID, &p.GoalID, &entryID, &p.AmountMinor, &p.Reason,
			&p.Category, &p.Bank, &p.Date, &p.RepayBy, &p.State, &p.RepaidAt, &p.GoalName, &p.Currency); err != nil {
			return nil, err
		}
		if entryID != nil {
			p.EntryID = *entryID
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// BankTotals implements query.Repo.
func (s *Store) BankTotals(ctx context.Context, environment string) (map[string]int64, error) {
	rows, err := s.pool.Query(ctx, `
        select e.bank, coalesce(sum(e.amount_minor), 0)
        from goal_entries e
        join goals g on g.id = e.goal_id
        where g.environment = $1 and e.bank <> ''
        group by e.bank
    `, environment)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]int64)
	for rows.Next() {
		var (
			bank string
			sum  int64
		)
		if err := rows.Scan(&bank, &sum); err != nil {
			return nil, err
		}
		out[bank] = sum
	}
	return out, rows.Err()
}

// BankTotalsByGoal implements query.Repo.
func (s *Store) BankTotalsByGoal(ctx context.Context, goalID uuid.UUID) (map[string]int64, error) {
	rows, err := s.pool.Query(ctx, `
        select bank, coalesce(sum(amount_minor), 0)
        from goal_entries
        where goal_id = $1 and bank <> ''
        group by bank
    `, goalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]int64)
	for rows.Next() {
		var (
			bank string
			sum  int64
		)
		if err := rows.Scan(&bank, &sum); err != nil {
			return nil, err
		}
		out[bank] = sum
	}
	return out, rows.Err()
}

// Tx wraps a pgx.Tx and implements goal.Tx.
type Tx struct{ tx pgx.Tx }

func (t *Tx) Commit(ctx context.Context) error   { return t.tx.Commit(ctx) }
func (t *Tx) Rollback(ctx context.Context) error { return t.tx.Rollback(ctx) }

func (t *Tx) CreateGoal(ctx context.Context, g savings.Goal) error {
	_, err := t.tx.Exec(ctx, `
        insert into goals (id, name, currency, target_minor, current_minor, due_date,
                           cadence, cadence_day, icon, color, notes, environment, created_at)
        values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
    `, g.ID, g.Name, g.Currency, g.TargetMinor, g.CurrentMinor, g.DueDate,
		g.Cadence, g.CadenceDay, g.Icon, g.Color, g.Notes, g.Environment, g.CreatedAt)
	return err
}

// GoalForUpdate locks the goal row for the rest of the transaction.
func (t *Tx) GoalForUpdate(ctx context.Context, goalID uuid.UUID) (savings.Goal, error) {
	return scanGoal(t.tx.QueryRow(ctx, `select `+goalColumns+` from goals where id = $1 for update`, goalID))
}

func (t *Tx) SaveGoal(ctx context.Context, g savings.Goal) error {
	ct, err := t.tx.Exec(ctx, `
        update goals
        set name=$1, currency=$2, target_minor=$3, current_minor=$4, due_date=$5,
            cadence=$6, cadence_day=$7, icon=$8, color=$9, notes=$10
        where id=$11
    `, g.Name, g.Currency, g.TargetMinor, g.CurrentMinor, g.DueDate,
		g.Cadence, g.CadenceDay, g.Icon, g.Color, g.Notes, g.ID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

func (t *Tx) DeleteGoal(ctx context.Context, goalID uuid.UUID) error {
	ct, err := t.tx.Exec(ctx, `delete from goals where id = $1`, goalID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

func (t *Tx) CreateEntry(ctx context.Context, e savings.Entry) error {
	_, err := t.tx.Exec(ctx, `
        insert into goal_entries (id, goal_id, amount_minor, date, bank)
        values ($1,$2,$3,$4,$5)
    `, e.ID, e.GoalID, e.AmountMinor, e.Date, e.Bank)
	return err
}

func (t *Tx) EntryByID(ctx context.Context, entryID uuid.UUID) (savings.Entry, error) {
	var e savings.Entry
	err := t.tx.QueryRow(ctx, `
        select id, goal_id, amount_minor, date, bank from goal_entries where id = $1
    `, entryID).Scan(&e.ID, &e.GoalID, &e.AmountMinor, &e.Date, &e.Bank)
	if errors.Is(err, pgx.ErrNoRows) {
		return savings.Entry{}, errs.ErrNotFound
	}
	if err != nil {
		return savings.Entry{}, err
	}
	return e, nil
}

func (t *Tx) SaveEntry(ctx context.Context, e savings.Entry) error {
	ct, err := t.tx.Exec(ctx, `
        update goal_entries set amount_minor=$1, date=$2, bank=$3 where id=$4
    `, e.AmountMinor, e.Date, e.Bank, e.ID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

func (t *Tx) DeleteEntry(ctx context.Context, entryID uuid.UUID) error {
	ct, err := t.tx.Exec(ctx, `delete from goal_entries where id = $1`, entryID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

func (t *Tx) DeleteEntriesByGoal(ctx context.Context, goalID uuid.UUID) error {
	_, err := t.tx.Exec(ctx, `delete from goal_entries where goal_id = $1`, goalID)
	return err
}

func (t *Tx) MatchEntries(ctx context.Context, goalID uuid.UUID, amountMinor int64, date time.Time, bank string) ([]savings.Entry, error) {
	rows, err := t.tx.Query(ctx, `
        select id, goal_id, amount_minor, date, bank
        from goal_entries
        where goal_id = $1 and amount_minor = $2 and date = $3 and bank = $4
    `, goalID, amountMinor, savings.Day(date), bank)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]savings.Entry, 0, 1)
	for rows.Next() {
		var e savings.Entry
		if err := rows.Scan(&e.ID, &e.GoalID, &e.AmountMinor, &e.Date, &e.Bank); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (t *Tx) SumEntries(ctx context.Context, goalID uuid.UUID) (int64, error) {
	var sum int64
	err := t.tx.QueryRow(ctx, `
        select coalesce(sum(amount_minor), 0) from goal_entries where goal_id = $1
    `, goalID).Scan(&sum)
	return sum, err
}

func (t *Tx) SumEntriesByBank(ctx context.Context, goalID uuid.UUID, bank string) (int64, error) {
	var sum int64
	err := t.tx.QueryRow(ctx, `
        select coalesce(sum(amount_minor), 0) from goal_entries where goal_id = $1 and bank = $2
    `, goalID, bank).Scan(&sum)
	return sum, err
}

func (t *Tx) RelabelEntries(ctx context.Context, environment, sourceBank, destBank string, goalIDs []uuid.UUID) (int64, error) {
	if len(goalIDs) > 0 {
		ct, err := t.tx.Exec(ctx, `
            update goal_entries e
            set bank = $1
            from goals g
            where g.id = e.goal_id and e.bank = $2 and g.environment = $3 and e.goal_id = any($4)
        `, destBank, sourceBank, environment, goalIDs)
		if err != nil {
			return 0, err
		}
		return ct.RowsAffected(), nil
	}
	ct, err := t.tx.Exec(ctx, `
        update goal_entries e
        set bank = $1
        from goals g
        where g.id = e.goal_id and e.bank = $2 and g.environment = $3
    `, destBank, sourceBank, environment)
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}

func (t *Tx) CreateWithdrawal(ctx context.Context, w savings.Withdrawal) error {
	var entryID *uuid.UUID
	if w.EntryID != uuid.Nil {
		entryID = &w.EntryID
	}
	_, err := t.tx.Exec(ctx, `
        insert into goal_withdrawals (id, goal_id, entry_id, amount_minor, reason, category,
                                      bank, date, repay_by, state, repaid_at)
        values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
    `, w.ID, w.GoalID, entryID, w.AmountMinor, w.Reason, w.Category,
		w.Bank, w.Date, w.RepayBy, w.State, w.RepaidAt)
	return err
}

// WithdrawalForUpdate locks the withdrawal row for the rest of the transaction.
func (t *Tx) WithdrawalForUpdate(ctx context.Context, withdrawalID uuid.UUID) (savings.Withdrawal, error) {
	return scanWithdrawal(t.tx.QueryRow(ctx, `
        select `+withdrawalColumns+` from goal_withdrawals where id = $1 for update
    `, withdrawalID))
}

func (t *Tx) SaveWithdrawal(ctx context.Context, w savings.Withdrawal) error {
	ct, err := t.tx.Exec(ctx, `
        update goal_withdrawals
        set reason=$1, category=$2, bank=$3, repay_by=$4, state=$5, repaid_at=$6
        where id=$7
    `, w.Reason, w.Category, w.Bank, w.RepayBy, w.State, w.RepaidAt, w.ID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

func (t *Tx) DeleteWithdrawal(ctx context.Context, withdrawalID uuid.UUID) error {
	ct, err := t.tx.Exec(ctx, `delete from goal_withdrawals where id = $1`, withdrawalID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

func (t *Tx) DeleteWithdrawalsByGoal(ctx context.Context, goalID uuid.UUID) error {
	_, err := t.tx.Exec(ctx, `delete from goal_withdrawals where goal_id = $1`, goalID)
	return err
}
