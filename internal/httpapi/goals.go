package httpapi

import (
	"net/http"

	chi "github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mfigueroa/hucha/internal/savings"
	"github.com/mfigueroa/hucha/internal/service/goal"
)

// urlID parses the {id} route parameter.
func urlID(r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}

func (s *Server) postGoal(w http.ResponseWriter, r *http.Request) {
	var req postGoalRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid JSON: "+err.Error())
		return
	}
	in := goal.CreateInput{
		Name:        req.Name,
		Currency:    req.Currency,
		TargetMinor: req.TargetMinor,
		Cadence:     savings.Cadence(req.Cadence),
		CadenceDay:  req.CadenceDay,
		Icon:        req.Icon,
		Color:       req.Color,
		Environment: req.Environment,
	}
	if in.Currency == "" {
		in.Currency = s.currency
	}
	if in.Environment == "" {
		in.Environment = s.defaultEnv
	}
	if req.DueDate != nil {
		d, err := parseDate(*req.DueDate)
		if err != nil {
			badRequest(w, "invalid due_date")
			return
		}
		in.DueDate = &d
	}
	g, err := s.svc.Create(r.Context(), in)
	if err != nil {
		s.writeServiceErr(w, err)
		return
	}
	toJSON(w, http.StatusCreated, s.toGoalResponse(g))
}

func (s *Server) listGoals(w http.ResponseWriter, r *http.Request) {
	goals, err := s.q.Goals(r.Context(), s.environment(r))
	if err != nil {
		s.writeServiceErr(w, err)
		return
	}
	out := make([]goalResponse, 0, len(goals))
	for _, g := range goals {
		out = append(out, s.toGoalResponse(g))
	}
	toJSON(w, http.StatusOK, out)
}

func (s *Server) getGoal(w http.ResponseWriter, r *http.Request) {
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
	toJSON(w, http.StatusOK, s.toGoalResponse(g))
}

func (s *Server) patchGoal(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(r)
	if !ok {
		badRequest(w, "invalid id")
		return
	}
	var req patchGoalRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid JSON: "+err.Error())
		return
	}
	p := goal.Patch{
		Name:         req.Name,
		TargetMinor:  req.TargetMinor,
		ClearDueDate: req.ClearDueDate,
		CadenceDay:   req.CadenceDay,
		Icon:         req.Icon,
		Color:        req.Color,
		Notes:        req.Notes,
	}
	if req.DueDate != nil {
		d, err := parseDate(*req.DueDate)
		if err != nil {
			badRequest(w, "invalid due_date")
			return
		}
		p.DueDate = &d
	}
	if req.Cadence != nil {
		c := savings.Cadence(*req.Cadence)
		p.Cadence = &c
	}
	g, err := s.svc.Update(r.Context(), id, p)
	if err != nil {
		s.writeServiceErr(w, err)
		return
	}
	toJSON(w, http.StatusOK, s.toGoalResponse(g))
}

func (s *Server) deleteGoal(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(r)
	if !ok {
		badRequest(w, "invalid id")
		return
	}
	if err := s.svc.Delete(r.Context(), id); err != nil {
		s.writeServiceErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) completeGoal(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(r)
	if !ok {
		badRequest(w, "invalid id")
		return
	}
	if err := s.svc.Complete(r.Context(), id); err != nil {
		s.writeServiceErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) recalculateGoal(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(r)
	if !ok {
		badRequest(w, "invalid id")
		return
	}
	total, err := s.svc.Recalculate(r.Context(), id)
	if err != nil {
		s.writeServiceErr(w, err)
		return
	}
	toJSON(w, http.StatusOK, struct {
		GoalID     uuid.UUID `json:"goal_id"`
		TotalMinor int64     `json:"total_minor"`
		Total      string    `json:"total"`
	}{id, total, s.amount(s.goalCurrency(r, id), total)})
}

// goalCurrency resolves the currency for responses keyed by goal id. A lookup
// failure falls back to the server currency.
func (s *Server) goalCurrency(r *http.Request, goalID uuid.UUID) string {
	g, err := s.q.Goal(r.Context(), goalID)
	if err != nil {
		return s.currency
	}
	return g.Currency
}
