package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestJSONResponseWrite(t *testing.T) {
	rr := httptest.NewRecorder()
	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/expenses/7").
		Body(map[string]int{"id": 7}).
		Write(rr)

	if rr.Code != http.StatusCreated {
		t.Errorf("status = %d", rr.Code)
	}
	if rr.Header().Get("Content-Type") != "application/json" {
		t.Errorf("content type = %q", rr.Header().Get("Content-Type"))
	}
	if rr.Header().Get("Location") != "/api/expenses/7" {
		t.Errorf("location = %q", rr.Header().Get("Location"))
	}
	if got := strings.TrimSpace(rr.Body.String()); got != `{"id":7}` {
		t.Errorf("body = %s", got)
	}
}

func TestJSONResponseWithoutBody(t *testing.T) {
	rr := httptest.NewRecorder()
	NewJSONResponse().Status(http.StatusNoContent).Body("ignored").Write(rr)
	if rr.Code != http.StatusNoContent || rr.Body.Len() != 0 {
		t.Errorf("got %d %q", rr.Code, rr.Body.String())
	}
}

func TestJSONResponseEncodeFailure(t *testing.T) {
	rr := httptest.NewRecorder()
	NewJSONResponse().Body(make(chan int)).Write(rr)
	if rr.Code != http.StatusInternalServerError {
		t.Errorf("status = %d", rr.Code)
	}
}

func TestErrorResponses(t *testing.T) {
	tests := []struct {
		name string
		resp *JSONResponse
		code int
	}{
		{"bad request", BadRequestError("bad"), http.StatusBadRequest},
		{"unauthorized", UnauthorizedError("who"), http.StatusUnauthorized},
		{"not found", NotFoundError("gone"), http.StatusNotFound},
		{"conflict", ConflictError("again"), http.StatusConflict},
		{"unprocessable", UnprocessableEntityError("nope"), http.StatusUnprocessableEntity},
		{"too many", TooManyRequestsError("slow"), http.StatusTooManyRequests},
		{"internal", InternalServerError("oops"), http.StatusInternalServerError},
		{"gateway timeout", GatewayTimeoutError("late"), http.StatusGatewayTimeout},
		{"method", MethodNotAllowedError(), http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			tt.resp.Write(rr)
			if rr.Code != tt.code {
				t.Errorf("status = %d, want %d", rr.Code, tt.code)
			}
			if !strings.HasPrefix(rr.Body.String(), `{"message":"`) {
				t.Errorf("body = %s", rr.Body.String())
			}
		})
	}

	rr := httptest.NewRecorder()
	UnauthorizedError("x").Write(rr)
	if rr.Header().Get("WWW-Authenticate") == "" {
		t.Error("401 must carry WWW-Authenticate")
	}
}
