package httpapi

import (
	"time"

	"github.com/google/uuid"
	"github.com/govalues/money"

	"github.com/mfigueroa/hucha/internal/savings"
	"github.com/mfigueroa/hucha/internal/service/query"
)

// Dates travel as "YYYY-MM-DD" on the wire.

func parseDate(s string) (time.Time, error) {
	return time.Parse(time.DateOnly, s)
}

func fmtDate(t time.Time) string { return t.Format(time.DateOnly) }

func fmtDatePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := fmtDate(*t)
	return &s
}

// amount renders a minor-unit value in the given currency, falling back to the
// server currency. Unknown currency codes yield an empty string rather than an
// error; the minor units are always on the wire regardless.
func (s *Server) amount(currency string, minor int64) string {
	if currency == "" {
		currency = s.currency
	}
	amt, err := money.NewAmountFromMinorUnits(currency, minor)
	if err != nil {
		return ""
	}
	return amt.String()
}

// Goals

type postGoalRequest struct {
	Name        string  `json:"name"`
	Currency    string  `json:"currency"`
	TargetMinor int64   `json:"target_minor"`
	DueDate     *string `json:"due_date"`
	Cadence     string  `json:"cadence"`
	CadenceDay  int     `json:"cadence_day"`
	Icon        string  `json:"icon"`
	Color       string  `json:"color"`
	Environment string  `json:"environment"`
}

type patchGoalRequest struct {
	Name         *string `json:"name"`
	TargetMinor  *int64  `json:"target_minor"`
	DueDate      *string `json:"due_date"`
	ClearDueDate bool    `json:"clear_due_date"`
	Cadence      *string `json:"cadence"`
	CadenceDay   *int    `json:"cadence_day"`
	Icon         *string `json:"icon"`
	Color        *string `json:"color"`
	Notes        *string `json:"notes"`
}

type goalResponse struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Currency     string    `json:"currency"`
	TargetMinor  int64     `json:"target_minor"`
	Target       string    `json:"target"`
	CurrentMinor int64     `json:"current_minor"`
	Current      string    `json:"current"`
	Percent      float64   `json:"percent"`
	DueDate      *string   `json:"due_date,omitempty"`
	Cadence      string    `json:"cadence,omitempty"`
	CadenceDay   int       `json:"cadence_day,omitempty"`
	Icon         string    `json:"icon,omitempty"`
	Color        string    `json:"color,omitempty"`
	Notes        string    `json:"notes,omitempty"`
	Environment  string    `json:"environment"`
	CreatedAt    time.Time `json:"created_at"`
}

func (s *Server) toGoalResponse(g savings.Goal) goalResponse {
	return goalResponse{
		ID:           g.ID,
		Name:         g.Name,
		Currency:     g.Currency,
		TargetMinor:  g.TargetMinor,
		Target:       s.amount(g.Currency, g.TargetMinor),
		CurrentMinor: g.CurrentMinor,
		Current:      s.amount(g.Currency, g.CurrentMinor),
		Percent:      g.Percent(),
		DueDate:      fmtDatePtr(g.DueDate),
		Cadence:      string(g.Cadence),
		CadenceDay:   g.CadenceDay,
		Icon:         g.Icon,
		Color:        g.Color,
		Notes:        g.Notes,
		Environment:  g.Environment,
		CreatedAt:    g.CreatedAt,
	}
}

// Contributions

type postContributionRequest struct {
	AmountMinor int64   `json:"amount_minor"`
	Date        *string `json:"date"`
	Bank        string  `json:"bank"`
}

type patchContributionRequest struct {
	AmountMinor *int64  `json:"amount_minor"`
	Date        *string `json:"date"`
	Bank        *string `json:"bank"`
}

type entryResponse struct {
	ID          uuid.UUID `json:"id"`
	GoalID      uuid.UUID `json:"goal_id"`
	AmountMinor int64     `json:"amount_minor"`
	Amount      string    `json:"amount"`
	Date        string    `json:"date"`
	Bank        string    `json:"bank,omitempty"`
}

func (s *Server) toEntryResponse(e savings.Entry, currency string) entryResponse {
	return entryResponse{
		ID:          e.ID,
		GoalID:      e.GoalID,
		AmountMinor: e.AmountMinor,
		Amount:      s.amount(currency, e.AmountMinor),
		Date:        fmtDate(e.Date),
		Bank:        e.Bank,
	}
}

// entryTotalResponse pairs a mutated entry with the goal's new cached total.
type entryTotalResponse struct {
	Entry         entryResponse `json:"entry"`
	NewTotalMinor int64         `json:"new_total_minor"`
	NewTotal      string        `json:"new_total"`
}

// Withdrawals

type postWithdrawalRequest struct {
	AmountMinor int64  `json:"amount_minor"`
	Bank        string `json:"bank"`
	RepayBy     string `json:"repay_by"`
	Reason      string `json:"reason"`
	Category    string `json:"category"`
}

type withdrawalResponse struct {
	ID          uuid.UUID `json:"id"`
	GoalID      uuid.UUID `json:"goal_id"`
	AmountMinor int64     `json:"amount_minor"`
	Amount      string    `json:"amount"`
	Reason      string    `json:"reason,omitempty"`
	Category    string    `json:"category,omitempty"`
	Bank        string    `json:"bank"`
	Date        string    `json:"date"`
	RepayBy     string    `json:"repay_by"`
	State       string    `json:"state"`
	RepaidAt    *string   `json:"repaid_at,omitempty"`
}

func (s *Server) toWithdrawalResponse(w savings.Withdrawal, currency string) withdrawalResponse {
	return withdrawalResponse{
		ID:          w.ID,
		GoalID:      w.GoalID,
		AmountMinor: w.AmountMinor,
		Amount:      s.amount(currency, w.AmountMinor),
		Reason:      w.Reason,
		Category:    w.Category,
		Bank:        w.Bank,
		Date:        fmtDate(w.Date),
		RepayBy:     fmtDate(w.RepayBy),
		State:       string(w.State),
		RepaidAt:    fmtDatePtr(w.RepaidAt),
	}
}

type withdrawalTotalResponse struct {
	Withdrawal    withdrawalResponse `json:"withdrawal"`
	NewTotalMinor int64              `json:"new_total_minor"`
	NewTotal      string             `json:"new_total"`
}

type deleteWithdrawalResponse struct {
	GoalID        uuid.UUID `json:"goal_id"`
	NewTotalMinor int64     `json:"new_total_minor"`
	EntryRemoved  bool      `json:"entry_removed"`
	Warning       string    `json:"warning,omitempty"`
}

type pendingWithdrawalResponse struct {
	withdrawalResponse
	GoalName string `json:"goal_name"`
}

// Queries

type historyItemResponse struct {
	Kind        string    `json:"kind"`
	ID          uuid.UUID `json:"id"`
	Date        string    `json:"date"`
	AmountMinor int64     `json:"amount_minor"`
	Amount      string    `json:"amount"`
	Bank        string    `json:"bank,omitempty"`
	Detail      string    `json:"detail"`
}

type bankTotalResponse struct {
	Bank       string `json:"bank"`
	TotalMinor int64  `json:"total_minor"`
	Total      string `json:"total"`
}

func (s *Server) toBankTotals(totals []query.BankTotal, currency string) []bankTotalResponse {
	out := make([]bankTotalResponse, 0, len(totals))
	for _, t := range totals {
		out = append(out, bankTotalResponse{
			Bank:       t.Bank,
			TotalMinor: t.TotalMinor,
			Total:      s.amount(currency, t.TotalMinor),
		})
	}
	return out
}

type summaryResponse struct {
	TotalSavedMinor int64  `json:"total_saved_minor"`
	TotalSaved      string `json:"total_saved"`
	GoalCount       int    `json:"goal_count"`
}

// Transfers

type postTransferRequest struct {
	Environment string      `json:"environment"`
	SourceBank  string      `json:"source_bank"`
	DestBank    string      `json:"dest_bank"`
	GoalIDs     []uuid.UUID `json:"goal_ids"`
}

type transferResponse struct {
	EntriesMoved int64 `json:"entries_moved"`
}
