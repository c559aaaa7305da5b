package http

import (
	"net/http"

	"budgetcal/internal/services"
)

func decodeNewTransaction(w http.ResponseWriter, r *http.Request) (services.NewTransaction, bool) {
	var req services.NewTransaction
	if err := DecodeJSON(w, r, &req); err != nil {
		BadRequestError(err.Error()).Write(w)
		return req, false
	}
	req.Name = sanitizeInput(req.Name)
	return req, true
}

func decodePatch(w http.ResponseWriter, r *http.Request) (int64, services.TransactionPatch, bool) {
	id, err := ParseID(r, "id")
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return 0, services.TransactionPatch{}, false
	}
	var patch services.TransactionPatch
	if err := DecodeJSON(w, r, &patch); err != nil {
		BadRequestError(err.Error()).Write(w)
		return 0, patch, false
	}
	if patch.Name != nil {
		name := sanitizeInput(*patch.Name)
		patch.Name = &name
	}
	return id, patch, true
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeNewTransaction(w, r)
	if !ok {
		return
	}
	e, err := s.svc.Budget.CreateExpense(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	id, patch, ok := decodePatch(w, r)
	if !ok {
		return
	}
	e, err := s.svc.Budget.UpdateExpense(r.Context(), id, patch)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	id, err := ParseID(r, "id")
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	if err := s.svc.Budget.DeleteExpense(r.Context(), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCreateIncome(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeNewTransaction(w, r)
	if !ok {
		return
	}
	i, err := s.svc.Budget.CreateIncome(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, i)
}

func (s *Server) handleUpdateIncome(w http.ResponseWriter, r *http.Request) {
	id, patch, ok := decodePatch(w, r)
	if !ok {
		return
	}
	i, err := s.svc.Budget.UpdateIncome(r.Context(), id, patch)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, i)
}

func (s *Server) handleDeleteIncome(w http.ResponseWriter, r *http.Request) {
	id, err := ParseID(r, "id")
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	if err := s.svc.Budget.DeleteIncome(r.Context(), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
