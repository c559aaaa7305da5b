package http

import (
	"net/http"

	"github.com/shopspring/decimal"
)

type startingBalanceRequest struct {
	StartingBalance *decimal.Decimal `json:"startingBalance"`
}

type accountNameRequest struct {
	Name string `json:"name"`
}

type initializeAccountRequest struct {
	StartingBalance decimal.Decimal `json:"startingBalance"`
	AccountName     string          `json:"accountName"`
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	a, err := s.svc.Accounts.Primary(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// handleGetStartingBalance answers with a bare JSON number.
func (s *Server) handleGetStartingBalance(w http.ResponseWriter, r *http.Request) {
	balance, err := s.svc.Accounts.StartingBalance(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, balance)
}

func (s *Server) handleUpdateStartingBalance(w http.ResponseWriter, r *http.Request) {
	var req startingBalanceRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	if req.StartingBalance == nil {
		UnprocessableEntityError("startingBalance is required").Write(w)
		return
	}
	a, err := s.svc.Accounts.UpdateStartingBalance(r.Context(), *req.StartingBalance)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleUpdateAccountName(w http.ResponseWriter, r *http.Request) {
	var req accountNameRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	a, err := s.svc.Accounts.UpdateName(r.Context(), sanitizeInput(req.Name))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleInitializeAccount(w http.ResponseWriter, r *http.Request) {
	var req initializeAccountRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	a, err := s.svc.Accounts.Initialize(r.Context(), req.StartingBalance, sanitizeInput(req.AccountName))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}
