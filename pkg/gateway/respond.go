package gateway

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"datemate/pkg/apperr"
)

const maxRequestBody = 1 << 20

type errorResponse struct {
	Detail string `json:"detail"`
	Code   string `json:"code"`
}

func writeJSON(w http.ResponseWriter, r *http.Request, log *slog.Logger, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.ErrorContext(r.Context(), "Failed to write response", "error", err)
	}
}

// writeError renders err as {detail, code} with its HTTP status. Server-side
// failures are logged with full detail.
func writeError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	rich := apperr.From(err)
	if rich.Code >= http.StatusInternalServerError {
		log.ErrorContext(r.Context(), "Request failed",
			"path", r.URL.Path,
			"status", rich.Code,
			"code", rich.TextCode,
			"error", err,
		)
	}
	writeJSON(w, r, log, rich.Code, errorResponse{Detail: rich.Message, Code: rich.TextCode})
}

func slogLevelFor(status int) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelError
	case status >= http.StatusBadRequest:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// decodeJSON reads a bounded JSON object body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperr.BadInput("Request body too large")
		}
		return apperr.BadInput("Unable to read request body")
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return apperr.BadInput("Request body is required")
	}
	if err := json.Unmarshal(body, dst); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return apperr.Validation(typeErr.Field, typeErr.Field+" has an invalid type")
		}
		return apperr.BadInput("Request body must be a JSON object")
	}
	return nil
}

// queryInt parses an optional bounded integer query parameter.
func queryInt(r *http.Request, name string, fallback, minValue, maxValue int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < minValue || value > maxValue {
		return 0, apperr.Validation(name, name+" must be an integer between "+strconv.Itoa(minValue)+" and "+strconv.Itoa(maxValue))
	}
	return value, nil
}

// upstreamNotFound replaces a platform 404 with a local not-found message.
func upstreamNotFound(err error, message string, metadata map[string]any) error {
	if apperr.TextCode(err) == apperr.CodeUpstreamNotFound {
		return apperr.NotFound(message, metadata)
	}
	return err
}
