// Package http serves the budgeting REST API.
//
// This file builds JSON responses. Every error leaves the server as
// {"message": "..."} so clients can show it as is.
package http

import (
	"encoding/json"
	"net/http"
)

// JSONResponse is a fluent builder for a JSON reply.
type JSONResponse struct {
	statusCode int
	headers    map[string]string
	body       any
	hasBody    bool
}

func NewJSONResponse() *JSONResponse {
	return &JSONResponse{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *JSONResponse) Status(code int) *JSONResponse {
	b.statusCode = code
	return b
}

func (b *JSONResponse) Header(name, value string) *JSONResponse {
	b.headers[name] = value
	return b
}

// Body sets the value encoded as the response body. A nil value still
// encodes as JSON null.
func (b *JSONResponse) Body(v any) *JSONResponse {
	b.body = v
	b.hasBody = true
	return b
}

func (b *JSONResponse) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if !b.hasBody || b.statusCode == http.StatusNoContent {
		w.WriteHeader(b.statusCode)
		return
	}

	payload, err := json.Marshal(b.body)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"message":"failed to encode response"}` + "\n"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(b.statusCode)
	_, _ = w.Write(append(payload, '\n'))
}

// ErrorBody is the wire shape of every error response.
type ErrorBody struct {
	Message string `json:"message"`
}

func ErrorResponse(statusCode int, message string) *JSONResponse {
	return NewJSONResponse().Status(statusCode).Body(ErrorBody{Message: message})
}

func BadRequestError(message string) *JSONResponse {
	return ErrorResponse(http.StatusBadRequest, message)
}

func UnauthorizedError(message string) *JSONResponse {
	return ErrorResponse(http.StatusUnauthorized, message).Header("WWW-Authenticate", `Bearer realm="budgetcal"`)
}

func NotFoundError(message string) *JSONResponse {
	return ErrorResponse(http.StatusNotFound, message)
}

func ConflictError(message string) *JSONResponse {
	return ErrorResponse(http.StatusConflict, message)
}

func UnprocessableEntityError(message string) *JSONResponse {
	return ErrorResponse(http.StatusUnprocessableEntity, message)
}

func TooManyRequestsError(message string) *JSONResponse {
	return ErrorResponse(http.StatusTooManyRequests, message)
}

func InternalServerError(message string) *JSONResponse {
	return ErrorResponse(http.StatusInternalServerError, message)
}

func ServiceUnavailableError(message string) *JSONResponse {
	return ErrorResponse(http.StatusServiceUnavailable, message)
}

func GatewayTimeoutError(message string) *JSONResponse {
	return ErrorResponse(http.StatusGatewayTimeout, message)
}

func MethodNotAllowedError() *JSONResponse {
	return ErrorResponse(http.StatusMethodNotAllowed, "method not allowed")
}
