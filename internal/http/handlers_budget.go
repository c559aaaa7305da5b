package http

import (
	"net/http"

	"budgetcal/internal/log"
)

type fromTemplateRequest struct {
	TemplateID    int64  `json:"templateId"`
	ScheduledDate string `json:"scheduledDate"`
}

type moveRequest struct {
	NewDate string `json:"newDate"`
}

func (s *Server) handleMonthlyBudget(w http.ResponseWriter, r *http.Request) {
	p, err := ParseMonthParams(r)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	budget, err := s.svc.Budget.MonthlyBudget(r.Context(), p.Year, p.Month)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, budget)
}

func (s *Server) handleDailyBalances(w http.ResponseWriter, r *http.Request) {
	p, err := ParseMonthParams(r)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	balances, err := s.svc.Budget.DailyBalances(r.Context(), p.Year, p.Month)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, balances)
}

func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	p, err := ParseMonthParams(r)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	view, err := s.svc.Budget.Calendar(r.Context(), p.Year, p.Month)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// handleCreateFromTemplate answers with the created expense, or the created
// income when the template is an income template.
func (s *Server) handleCreateFromTemplate(w http.ResponseWriter, r *http.Request) {
	var req fromTemplateRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	if req.TemplateID < 1 {
		UnprocessableEntityError("templateId is required").Write(w)
		return
	}
	drop, err := s.svc.Budget.CreateExpenseFromTemplate(r.Context(), req.TemplateID, req.ScheduledDate)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	log.FromContext(r.Context()).WithComponent(log.ComponentHTTP).DebugContext(r.Context(), "Template dropped on calendar",
		log.FieldTemplateID, req.TemplateID, log.FieldDate, req.ScheduledDate)
	if drop.Income != nil {
		writeJSON(w, http.StatusCreated, drop.Income)
		return
	}
	writeJSON(w, http.StatusCreated, drop.Expense)
}

func (s *Server) handleMoveExpense(w http.ResponseWriter, r *http.Request) {
	id, req, ok := parseMove(w, r)
	if !ok {
		return
	}
	moved, err := s.svc.Budget.MoveExpense(r.Context(), id, req.NewDate)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, moved)
}

func (s *Server) handleMoveIncome(w http.ResponseWriter, r *http.Request) {
	id, req, ok := parseMove(w, r)
	if !ok {
		return
	}
	moved, err := s.svc.Budget.MoveIncome(r.Context(), id, req.NewDate)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, moved)
}

func parseMove(w http.ResponseWriter, r *http.Request) (int64, moveRequest, bool) {
	id, err := ParseID(r, "id")
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return 0, moveRequest{}, false
	}
	var req moveRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		BadRequestError(err.Error()).Write(w)
		return 0, moveRequest{}, false
	}
	return id, req, true
}
