package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"budgetcal/internal/cache"
	"budgetcal/internal/calendar"
	"budgetcal/internal/core"
	"budgetcal/internal/log"
	"budgetcal/internal/services"
	"budgetcal/internal/storage/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testToken = "s3cret"

type testServer struct {
	t     *testing.T
	srv   *Server
	ready error
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	repo := memory.New()
	months := services.NewMonthCache(cache.NewStore[core.MonthlyBudget](50, time.Minute))
	accounts := services.NewAccountService(repo, months, nil)
	processor := services.NewRecurringProcessor(repo, months, nil)
	clock := calendar.ClockFunc(func() time.Time { return time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC) })

	ts := &testServer{t: t}
	ts.srv = NewServer(Options{
		Addr:               ":0",
		Tokens:             map[string]string{testToken: "alice"},
		AllowedOrigins:     []string{"http://localhost:3000"},
		RateLimitPerMinute: 1000,
		Logger:             log.New(log.Config{Output: io.Discard}),
		Ready:              func(context.Context) error { return ts.ready },
	}, Services{
		Budget:    services.NewBudgetService(repo, accounts, months, nil),
		Templates: services.NewTemplateService(repo, processor, months, nil, clock, 1),
		Accounts:  accounts,
	})
	t.Cleanup(func() { _ = ts.srv.Shutdown(context.Background()) })
	return ts
}

func (ts *testServer) do(method, path string, body any) *httptest.ResponseRecorder {
	ts.t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		payload, err := json.Marshal(b)
		require.NoError(ts.t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Authorization", "Bearer "+testToken)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	ts.srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func errorMessage(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[ErrorBody](t, rr).Message
}

func TestHealthAndReady(t *testing.T) {
	ts := newTestServer(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := httptest.NewRecorder()
		ts.srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rr.Code, path)
		assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
		assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	}

	ts.ready = errors.New("database is locked")
	rr := httptest.NewRecorder()
	ts.srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestAuth(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + testToken, http.StatusUnauthorized},
		{"wrong token", "Bearer nope", http.StatusUnauthorized},
		{"valid", "Bearer " + testToken, http.StatusOK},
		{"scheme is case insensitive", "bearer " + testToken, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/auth/validate", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			ts.srv.Handler.ServeHTTP(rr, req)
			assert.Equal(t, tt.want, rr.Code)
			if tt.want == http.StatusUnauthorized {
				assert.NotEmpty(t, errorMessage(t, rr))
				return
			}
			got := decode[map[string]any](t, rr)
			assert.Equal(t, true, got["valid"])
			assert.Equal(t, "alice", got["username"])
		})
	}
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/expenses", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Authorization, Content-Type")
	rr := httptest.NewRecorder()
	ts.srv.Handler.ServeHTTP(rr, req)

	assert.Less(t, rr.Code, 300)
	assert.Equal(t, "http://localhost:3000", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestAccountEndpoints(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(http.MethodGet, "/api/account/starting-balance", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "0", strings.TrimSpace(rr.Body.String()))

	rr = ts.do(http.MethodPost, "/api/account/initialize", map[string]any{"startingBalance": 1500.25, "accountName": "Household"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	account := decode[core.Account](t, rr)
	assert.Equal(t, "Household", account.Name)
	assert.Equal(t, "1500.25", account.StartingBalance.String())

	rr = ts.do(http.MethodPost, "/api/account/initialize", map[string]any{"startingBalance": 1})
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = ts.do(http.MethodPut, "/api/account/starting-balance", map[string]any{"startingBalance": 900})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "900", decode[core.Account](t, rr).StartingBalance.String())

	rr = ts.do(http.MethodPut, "/api/account/starting-balance", map[string]any{})
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = ts.do(http.MethodPut, "/api/account/name", map[string]any{"name": "   "})
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = ts.do(http.MethodPut, "/api/account/name", map[string]any{"name": "Joint"})
	require.Equal(t, http.StatusOK, rr.Code)

	rr = ts.do(http.MethodGet, "/api/account", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Joint", decode[core.Account](t, rr).Name)
}

func TestBudgetFlow(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(http.MethodPost, "/api/expenses", map[string]any{"name": "Rent", "amount": 1200, "scheduledDate": "2024-03-01"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	rent := decode[core.ScheduledExpense](t, rr)
	assert.Equal(t, 3, rent.MonthValue)

	rr = ts.do(http.MethodPost, "/api/income", map[string]any{"name": "Salary", "amount": "3000", "scheduledDate": "2024-03-15"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	salary := decode[core.ScheduledIncome](t, rr)

	rr = ts.do(http.MethodGet, "/api/budget/month/2024/3", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	budget := decode[core.MonthlyBudget](t, rr)
	assert.Len(t, budget.Expenses, 1)
	assert.Len(t, budget.Income, 1)
	assert.Equal(t, "1800", budget.DailyBalances["2024-03-31"].String())
	assert.Contains(t, rr.Body.String(), `"amount":1200`, "amounts travel as JSON numbers")

	rr = ts.do(http.MethodGet, "/api/budget/balances/2024/3", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[map[string]json.Number](t, rr), 31)

	rr = ts.do(http.MethodPut, "/api/budget/expense/"+itoa(rent.ID)+"/move", map[string]any{"newDate": "2024-04-01"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "2024-04-01", decode[core.ScheduledExpense](t, rr).ScheduledDate)

	rr = ts.do(http.MethodPut, "/api/budget/income/"+itoa(salary.ID)+"/move", map[string]any{"newDate": "2024-13-01"})
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = ts.do(http.MethodPatch, "/api/income/"+itoa(salary.ID), map[string]any{"amount": 3100})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "3100", decode[core.ScheduledIncome](t, rr).Amount.String())

	rr = ts.do(http.MethodPatch, "/api/expenses/"+itoa(rent.ID), map[string]any{})
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = ts.do(http.MethodGet, "/api/budget/month/2024/3", nil)
	budget = decode[core.MonthlyBudget](t, rr)
	assert.Empty(t, budget.Expenses)
	assert.Equal(t, "3100", budget.DailyBalances["2024-03-31"].String())

	rr = ts.do(http.MethodDelete, "/api/expenses/"+itoa(rent.ID), nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	rr = ts.do(http.MethodDelete, "/api/expenses/"+itoa(rent.ID), nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	rr = ts.do(http.MethodDelete, "/api/income/"+itoa(salary.ID), nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)
}

func TestCalendarEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.do(http.MethodPost, "/api/expenses", map[string]any{"name": "Coffee", "amount": 4.5, "scheduledDate": "2025-01-02"})

	// Month 13 of 2024 is January 2025.
	rr := ts.do(http.MethodGet, "/api/budget/calendar/2024/13", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var view struct {
		Year     int                `json:"year"`
		Month    int                `json:"month"`
		Offset   int                `json:"offset"`
		Days     []core.DayCell     `json:"days"`
		Previous calendar.YearMonth `json:"previous"`
		Next     calendar.YearMonth `json:"next"`
		Closing  json.Number        `json:"closingBalance"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &view))
	assert.Equal(t, 2025, view.Year)
	assert.Equal(t, 1, view.Month)
	assert.Equal(t, 3, view.Offset)
	assert.Len(t, view.Days, 3+31)
	assert.Equal(t, "", view.Days[0].Date)
	assert.Equal(t, "2025-01-02", view.Days[4].Date)
	assert.Len(t, view.Days[4].Expenses, 1)
	assert.Equal(t, calendar.YearMonth{Year: 2024, Month: 12}, view.Previous)
	assert.Equal(t, "-4.5", view.Closing.String())
}

func TestTemplateEndpoints(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(http.MethodPost, "/api/templates", map[string]any{
		"name": "Rent", "amount": 1200, "recurrenceType": "MONTHLY", "dayOfMonth": 1,
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	rent := decode[core.ExpenseTemplate](t, rr)
	assert.True(t, rent.Active)
	id := itoa(rent.ID)

	rr = ts.do(http.MethodPost, "/api/templates", map[string]any{"name": "Bad", "amount": 1, "recurrenceType": "YEARLY"})
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = ts.do(http.MethodGet, "/api/templates", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[[]core.ExpenseTemplate](t, rr), 1)

	rr = ts.do(http.MethodGet, "/api/templates/"+id+"/has-instances/2024/4", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "true", strings.TrimSpace(rr.Body.String()))

	rr = ts.do(http.MethodPut, "/api/templates/"+id, map[string]any{
		"name": "Rent", "amount": 1250, "recurrenceType": "MONTHLY", "dayOfMonth": 1, "updateFutureOnly": false,
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	rr = ts.do(http.MethodGet, "/api/budget/month/2024/3", nil)
	budget := decode[core.MonthlyBudget](t, rr)
	require.Len(t, budget.Expenses, 1)
	assert.Equal(t, "1250", budget.Expenses[0].Amount.String())

	rr = ts.do(http.MethodPost, "/api/budget/expense/from-template", map[string]any{"templateId": rent.ID, "scheduledDate": "2024-03-20"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	dropped := decode[core.ScheduledExpense](t, rr)
	require.NotNil(t, dropped.Template)
	assert.Equal(t, rent.ID, dropped.Template.ID)

	rr = ts.do(http.MethodPost, "/api/budget/expense/from-template", map[string]any{"templateId": 999, "scheduledDate": "2024-03-20"})
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = ts.do(http.MethodDelete, "/api/templates/"+id+"?deleteFutureInstances=maybe", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	rr = ts.do(http.MethodDelete, "/api/templates/"+id+"?deleteFutureInstances=true", nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	rr = ts.do(http.MethodGet, "/api/templates/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = ts.do(http.MethodGet, "/api/budget/month/2024/4", nil)
	assert.Empty(t, decode[core.MonthlyBudget](t, rr).Expenses)
}

func TestBadRequests(t *testing.T) {
	ts := newTestServer(t)
	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"malformed json", http.MethodPost, "/api/expenses", `{"name":`, http.StatusBadRequest},
		{"empty body", http.MethodPost, "/api/income", "", http.StatusBadRequest},
		{"two values", http.MethodPost, "/api/income", `{} {}`, http.StatusBadRequest},
		{"bad id", http.MethodDelete, "/api/expenses/abc", nil, http.StatusBadRequest},
		{"zero id", http.MethodGet, "/api/templates/0", nil, http.StatusBadRequest},
		{"bad year", http.MethodGet, "/api/budget/month/twenty/3", nil, http.StatusBadRequest},
		{"unknown route", http.MethodGet, "/api/nope", nil, http.StatusNotFound},
		{"wrong method", http.MethodPatch, "/api/templates", nil, http.StatusMethodNotAllowed},
		{"missing template id", http.MethodPost, "/api/budget/expense/from-template", map[string]any{"scheduledDate": "2024-03-01"}, http.StatusUnprocessableEntity},
		{"negative amount", http.MethodPost, "/api/expenses", map[string]any{"name": "x", "amount": -5, "scheduledDate": "2024-03-01"}, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := ts.do(tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, rr.Code, rr.Body.String())
			assert.NotEmpty(t, errorMessage(t, rr))
		})
	}
}

func TestWritesAreRateLimited(t *testing.T) {
	repo := memory.New()
	accounts := services.NewAccountService(repo, nil, nil)
	srv := NewServer(Options{
		Tokens:             map[string]string{testToken: "alice"},
		RateLimitPerMinute: 2,
		Logger:             log.New(log.Config{Output: io.Discard}),
	}, Services{
		Budget:   services.NewBudgetService(repo, accounts, nil, nil),
		Accounts: accounts,
	})
	defer srv.Shutdown(context.Background())

	post := func() int {
		req := httptest.NewRequest(http.MethodPost, "/api/expenses", strings.NewReader(`{"name":"x","amount":1,"scheduledDate":"2024-03-01"}`))
		req.Header.Set("Authorization", "Bearer "+testToken)
		rr := httptest.NewRecorder()
		srv.Handler.ServeHTTP(rr, req)
		return rr.Code
	}
	assert.Equal(t, http.StatusCreated, post())
	assert.Equal(t, http.StatusCreated, post())
	assert.Equal(t, http.StatusTooManyRequests, post())

	req := httptest.NewRequest(http.MethodGet, "/api/budget/month/2024/3", nil)
	req.Header.Set("Authorization", "Bearer "+testToken)
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code, "reads are not limited")
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
