package http

import (
	"net/http"

	"budgetcal/internal/core"
)

// templateRequest is a template body; updates may also carry
// updateFutureOnly, which defaults to true.
type templateRequest struct {
	core.ExpenseTemplate
	UpdateFutureOnly *bool `json:"updateFutureOnly,omitempty"`
}

func decodeTemplate(w http.ResponseWriter, r *http.Request) (templateRequest, bool) {
	var req templateRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		BadRequestError(err.Error()).Write(w)
		return req, false
	}
	req.Name = sanitizeInput(req.Name)
	return req, true
}

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := s.svc.Templates.List(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, templates)
}

func (s *Server) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := ParseID(r, "id")
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	t, err := s.svc.Templates.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeTemplate(w, r)
	if !ok {
		return
	}
	t, err := s.svc.Templates.Create(r.Context(), req.ExpenseTemplate)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (s *Server) handleUpdateTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := ParseID(r, "id")
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	req, ok := decodeTemplate(w, r)
	if !ok {
		return
	}
	futureOnly := true
	if req.UpdateFutureOnly != nil {
		futureOnly = *req.UpdateFutureOnly
	}
	t, err := s.svc.Templates.Update(r.Context(), id, req.ExpenseTemplate, futureOnly)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := ParseID(r, "id")
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	deleteFuture, err := ParseBoolQuery(r, "deleteFutureInstances", true)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	if err := s.svc.Templates.Delete(r.Context(), id, deleteFuture); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleHasInstances answers with a bare JSON boolean.
func (s *Server) handleHasInstances(w http.ResponseWriter, r *http.Request) {
	id, err := ParseID(r, "id")
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	p, err := ParseMonthParams(r)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	has, err := s.svc.Templates.HasInstancesInMonth(r.Context(), id, p.Year, p.Month)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, has)
}
