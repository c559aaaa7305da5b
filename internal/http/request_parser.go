package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
)

// maxBodyBytes caps request bodies; budget payloads are a few hundred bytes.
const maxBodyBytes = 1 << 20

var errEmptyBody = errors.New("request body is empty")

// MonthParams holds the {year}/{month} path segments. Months outside 1..12
// are passed through; the budget service normalises them.
type MonthParams struct {
	Year  int
	Month int
}

func ParseMonthParams(r *http.Request) (MonthParams, error) {
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil {
		return MonthParams{}, fmt.Errorf("invalid year %q", chi.URLParam(r, "year"))
	}
	month, err := strconv.Atoi(chi.URLParam(r, "month"))
	if err != nil {
		return MonthParams{}, fmt.Errorf("invalid month %q", chi.URLParam(r, "month"))
	}
	if year < 1 || year > 9999 {
		return MonthParams{}, fmt.Errorf("year %d out of range", year)
	}
	return MonthParams{Year: year, Month: month}, nil
}

// ParseID reads a positive integer path parameter.
func ParseID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}
	return id, nil
}

// ParseBoolQuery reads an optional boolean query parameter.
func ParseBoolQuery(r *http.Request, key string, def bool) (bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return def, fmt.Errorf("invalid %s %q", key, raw)
	}
	return v, nil
}

// DecodeJSON reads a single JSON value from the body into dst. Unknown
// fields are ignored; trailing data is not.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return errEmptyBody
		case errors.As(err, &maxErr):
			return fmt.Errorf("request body exceeds %d bytes", maxErr.Limit)
		default:
			return fmt.Errorf("malformed JSON body: %w", err)
		}
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("request body must contain a single JSON value")
	}
	return nil
}

// sanitizeInput drops control characters other than tab and newlines and
// trims surrounding whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s)
}
