package http

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"lojista/internal/core"
)

// referenceDate reads the optional date=YYYY-MM-DD query parameter, falling
// back to today. The ambient clock is consulted only here, at the request
// boundary; everything below works on the explicit date.
func referenceDate(r *http.Request) (core.Date, error) {
	v := strings.TrimSpace(r.URL.Query().Get("date"))
	if v == "" {
		return core.DateOf(time.Now()), nil
	}
	d, err := core.ParseDate(v)
	if err != nil {
		return core.Date{}, fmt.Errorf("invalid date %q: %w", v, err)
	}
	return d, nil
}

// parseYearMonth reads year= and month= query parameters, defaulting to the
// reference date's month.
func parseYearMonth(r *http.Request, ref core.Date) (year, month int, err error) {
	year, month = ref.Year, ref.Month

	if v := strings.TrimSpace(r.URL.Query().Get("year")); v != "" {
		year, err = strconv.Atoi(v)
		if err != nil {
			return 0, 0, fmt.Errorf("invalid year %q", v)
		}
	}
	if v := strings.TrimSpace(r.URL.Query().Get("month")); v != "" {
		month, err = strconv.Atoi(v)
		if err != nil {
			return 0, 0, fmt.Errorf("invalid month %q", v)
		}
	}
	return year, month, nil
}

// requestWindow resolves the window= query parameter (day, week or month)
// into a date window anchored at the reference date.
func requestWindow(r *http.Request) (core.DateWindow, error) {
	ref, err := referenceDate(r)
	if err != nil {
		return core.DateWindow{}, err
	}

	switch w := strings.TrimSpace(r.URL.Query().Get("window")); w {
	case "", "day":
		return core.SingleDay(ref), nil
	case "week":
		return core.TrailingDays(ref, 7)
	case "month":
		year, month, err := parseYearMonth(r, ref)
		if err != nil {
			return core.DateWindow{}, err
		}
		return core.CalendarMonth(year, month)
	default:
		return core.DateWindow{}, fmt.Errorf("invalid window %q: %w", w, core.ErrInvalidWindow)
	}
}

func monthKey(year, month int) string {
	return fmt.Sprintf("%04d-%02d", year, month)
}

// formatReais formats cents as a Real currency string (e.g. "R$ 12,34").
func formatReais(cents int64) string {
	neg := cents < 0
	if neg {
		cents = -cents
	}
	reais := cents / 100
	rem := cents % 100
	s := strconv.FormatInt(reais, 10) + "," + fmt.Sprintf("%02d", rem)
	if neg {
		return "-R$ " + s
	}
	return "R$ " + s
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// generateRequestID creates a unique request ID for tracing.
func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusForError maps domain errors to HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrInvalidKind),
		errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrInvalidDate),
		errors.Is(err, core.ErrInvalidWindow),
		errors.Is(err, core.ErrEmptyStore),
		errors.Is(err, core.ErrEmptyName):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
