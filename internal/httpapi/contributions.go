package httpapi

import (
	"net/http"

	"github.com/mfigueroa/hucha/internal/service/goal"
)

func (s *Server) postContribution(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(r)
	if !ok {
		badRequest(w, "invalid id")
		return
	}
	var req postContributionRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid JSON: "+err.Error())
		return
	}
	in := goal.ContributeInput{AmountMinor: req.AmountMinor, Bank: req.Bank}
	if req.Date != nil {
		d, err := parseDate(*req.Date)
		if err != nil {
			badRequest(w, "invalid date")
			return
		}
		in.Date = &d
	}
	e, total, err := s.svc.Contribute(r.Context(), id, in)
	if err != nil {
		s.writeServiceErr(w, err)
		return
	}
	cur := s.goalCurrency(r, id)
	toJSON(w, http.StatusCreated, entryTotalResponse{
		Entry:         s.toEntryResponse(e, cur),
		NewTotalMinor: total,
		NewTotal:      s.amount(cur, total),
	})
}

func (s *Server) listContributions(w http.ResponseWriter, r *http.Request) {
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
	entries, err := s.q.Contributions(r.Context(), id)
	if err != nil {
		s.writeServiceErr(w, err)
		return
	}
	out := make([]entryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, s.toEntryResponse(e, g.Currency))
	}
	toJSON(w, http.StatusOK, out)
}

func (s *Server) patchContribution(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(r)
	if !ok {
		badRequest(w, "invalid id")
		return
	}
	var req patchContributionRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid JSON: "+err.Error())
		return
	}
	p := goal.EntryPatch{AmountMinor: req.AmountMinor, Bank: req.Bank}
	if req.Date != nil {
		d, err := parseDate(*req.Date)
		if err != nil {
			badRequest(w, "invalid date")
			return
		}
		p.Date = &d
	}
	e, total, err := s.svc.UpdateContribution(r.Context(), id, p)
	if err != nil {
		s.writeServiceErr(w, err)
		return
	}
	cur := s.goalCurrency(r, e.GoalID)
	toJSON(w, http.StatusOK, entryTotalResponse{
		Entry:         s.toEntryResponse(e, cur),
		NewTotalMinor: total,
		NewTotal:      s.amount(cur, total),
	})
}

func (s *Server) deleteContribution(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(r)
	if !ok {
		badRequest(w, "invalid id")
		return
	}
	total, err := s.svc.DeleteContribution(r.Context(), id)
	if err != nil {
		s.writeServiceErr(w, err)
		return
	}
	toJSON(w, http.StatusOK, struct {
		NewTotalMinor int64 `json:"new_total_minor"`
	}{total})
}

func (s *Server) goalHistory(w http.ResponseWriter, r *http.Request) {
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
	items, err := s.q.History(r.Context(), id)
	if err != nil {
		s.writeServiceErr(w, err)
		return
	}
	out := make([]historyItemResponse, 0, len(items))
	for _, it := range items {
		out = append(out, historyItemResponse{
			Kind:        it.Kind,
			ID:          it.ID,
			Date:        fmtDate(it.Date),
			AmountMinor: it.AmountMinor,
			Amount:      s.amount(g.Currency, it.AmountMinor),
			Bank:        it.Bank,
			Detail:      it.Detail,
		})
	}
	toJSON(w, http.StatusOK, out)
}

func (s *Server) goalBanks(w http.ResponseWriter, r *http.Request) {
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
	totals, err := s.q.GoalBanks(r.Context(), id)
	if err != nil {
		s.writeServiceErr(w, err)
		return
	}
	toJSON(w, http.StatusOK, s.toBankTotals(totals, g.Currency))
}
