package httpapi

import (
	"net/http"

	"github.com/mfigueroa/hucha/internal/service/goal"
)

func (s *Server) postWithdrawal(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(r)
	if !ok {
		badRequest(w, "invalid id")
		return
	}
	var req postWithdrawalRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid JSON: "+err.Error())
		return
	}
	if req.RepayBy == "" {
		badRequest(w, "repay_by is required")
		return
	}
	repayBy, err := parseDate(req.RepayBy)
	if err != nil {
		badRequest(w, "invalid repay_by")
		return
	}
	wd, total, err := s.svc.Withdraw(r.Context(), id, goal.WithdrawInput{
		AmountMinor: req.AmountMinor,
		Bank:        req.Bank,
		RepayBy:     repayBy,
		Reason:      req.Reason,
		Category:    req.Category,
	})
	if err != nil {
		s.writeServiceErr(w, err)
		return
	}
	cur := s.goalCurrency(r, id)
	toJSON(w, http.StatusCreated, withdrawalTotalResponse{
		Withdrawal:    s.toWithdrawalResponse(wd, cur),
		NewTotalMinor: total,
		NewTotal:      s.amount(cur, total),
	})
}

func (s *Server) listWithdrawals(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(r)
	if !ok {
		badRequest(w, "invalid id")
		return
	}
	g, err := s.q.Goal(r.Context(), id)
	if err != nil {
		s.writeServiceErr(w, err)
		return
	}
	withdrawals, err := s.q.Withdrawals(r.Context(), id)
	if err != nil {
		s.writeServiceErr(w, err)
		return
	}
	out := make([]withdrawalResponse, 0, len(withdrawals))
	for _, wd := range withdrawals {
		out = append(out, s.toWithdrawalResponse(wd, g.Currency))
	}
	toJSON(w, http.StatusOK, out)
}

func (s *Server) repayWithdrawal(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(r)
	if !ok {
		badRequest(w, "invalid id")
		return
	}
	wd, total, err := s.svc.Repay(r.Context(), id)
	if err != nil {
		s.writeServiceErr(w, err)
		return
	}
	cur := s.goalCurrency(r, wd.GoalID)
	toJSON(w, http.StatusOK, withdrawalTotalResponse{
		Withdrawal:    s.toWithdrawalResponse(wd, cur),
		NewTotalMinor: total,
		NewTotal:      s.amount(cur, total),
	})
}

func (s *Server) deleteWithdrawal(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(r)
	if !ok {
		badRequest(w, "invalid id")
		return
	}
	res, err := s.svc.DeleteWithdrawal(r.Context(), id)
	if err != nil {
		s.writeServiceErr(w, err)
		return
	}
	resp := deleteWithdrawalResponse{
		GoalID:        res.GoalID,
		NewTotalMinor: res.NewTotalMinor,
		EntryRemoved:  res.EntryRemoved,
	}
	if !res.EntryRemoved {
		resp.Warning = "no matching ledger entry was removed; total recomputed from remaining entries"
	}
	toJSON(w, http.StatusOK, resp)
}

func (s *Server) pendingWithdrawals(w http.ResponseWriter, r *http.Request) {
	pending, err := s.q.Pending(r.Context(), s.environment(r))
	if err != nil {
		s.writeServiceErr(w, err)
		return
	}
	out := make([]pendingWithdrawalResponse, 0, len(pending))
	for _, p := range pending {
		out = append(out, pendingWithdrawalResponse{
			withdrawalResponse: s.toWithdrawalResponse(p.Withdrawal, p.Currency),
			GoalName:           p.GoalName,
		})
	}
	toJSON(w, http.StatusOK, out)
}
