package http

import (
	"context"
	"errors"
	"net/http"

	"budgetcal/internal/log"
	"budgetcal/internal/services"
	"budgetcal/internal/storage"
)

// writeServiceError maps a service error onto its HTTP status. Unexpected
// errors are logged and reported without detail.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		UnprocessableEntityError(err.Error()).Write(w)
	case errors.Is(err, storage.ErrNotFound):
		NotFoundError("resource not found").Write(w)
	case errors.Is(err, services.ErrAccountExists):
		ConflictError(err.Error()).Write(w)
	case errors.Is(err, context.DeadlineExceeded):
		log.FromContext(ctx).WithComponent(log.ComponentHTTP).WarnContext(ctx, "Request timed out",
			log.FieldPath, r.URL.Path, log.FieldError, err)
		GatewayTimeoutError("request timed out").Write(w)
	default:
		log.FromContext(ctx).WithComponent(log.ComponentHTTP).ErrorContext(ctx, "Request failed",
			log.NewFields().
				WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, "").
				WithError(err).
				WithErrorType(log.ErrorTypeInternal).
				ToSlice()...)
		InternalServerError("internal server error").Write(w)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	NewJSONResponse().Status(status).Body(v).Write(w)
}
