package httpapi

import (
	"net/http"

	"github.com/mfigueroa/hucha/internal/service/goal"
)

func (s *Server) savingsByBank(w http.ResponseWriter, r *http.Request) {
	totals, err := s.q.ByBank(r.Context(), s.environment(r))
	if err != nil {
		s.writeServiceErr(w, err)
		return
	}
	toJSON(w, http.StatusOK, s.toBankTotals(totals, s.currency))
}

func (s *Server) savingsSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := s.q.Summarize(r.Context(), s.environment(r))
	if err != nil {
		s.writeServiceErr(w, err)
		return
	}
	toJSON(w, http.StatusOK, summaryResponse{
		TotalSavedMinor: sum.TotalSavedMinor,
		TotalSaved:      s.amount(s.currency, sum.TotalSavedMinor),
		GoalCount:       sum.GoalCount,
	})
}

func (s *Server) postTransfer(w http.ResponseWriter, r *http.Request) {
	var req postTransferRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid JSON: "+err.Error())
		return
	}
	if req.Environment == "" {
		req.Environment = s.defaultEnv
	}
	moved, err := s.svc.Transfer(r.Context(), goal.TransferInput{
		Environment: req.Environment,
		SourceBank:  req.SourceBank,
		DestBank:    req.DestBank,
		GoalIDs:     req.GoalIDs,
	})
	if err != nil {
		s.writeServiceErr(w, err)
		return
	}
	toJSON(w, http.StatusOK, transferResponse{EntriesMoved: moved})
}
