package webhook

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"datemate/pkg/signature"
)

// MaxBodyBytes bounds an inbound event body.
const MaxBodyBytes = 1 << 20

const ackMalformed = "Webhook received, event could not be parsed."

// Handler serves the tool-call webhook. Every outcome other than a signature
// rejection is answered with HTTP 200.
type Handler struct {
	dispatcher *Dispatcher
	log        *slog.Logger
}

// NewHandler builds the webhook HTTP handler.
func NewHandler(dispatcher *Dispatcher, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		dispatcher: dispatcher,
		log:        log.With("component", "webhook.handler"),
	}
}

// Secured wraps h so that verifier runs on the raw body before any parsing.
func (h *Handler) Secured(verifier *signature.Verifier) http.Handler {
	if verifier == nil {
		return h
	}
	return verifier.Middleware(h)
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		h.log.WarnContext(r.Context(), "Unable to read webhook body", "error", err)
		writeJSON(w, AckResponse{Message: ackMalformed})
		return
	}

	writeJSON(w, h.Process(r.Context(), body))
}

// Process decodes one raw event, dispatches its tool calls and returns the
// response envelope.
func (h *Handler) Process(ctx context.Context, body []byte) any {
	var payload Payload
	if err := json.Unmarshal(body, &payload); err != nil {
		h.log.WarnContext(ctx, "Malformed webhook event", "error", err, "bytes", len(body))
		return AckResponse{Message: ackMalformed}
	}
	if payload.Message == nil {
		h.log.WarnContext(ctx, "Webhook event has no message", "bytes", len(body))
		return AckResponse{Message: ackMalformed}
	}

	message := payload.Message
	calls := ExtractToolCalls(message, h.log)
	h.log.InfoContext(ctx, "Webhook event received",
		"type", message.Type,
		"role", message.Role,
		"tool_calls", len(calls),
	)

	var results []ToolResult
	if IsToolCallType(message.Type) && len(calls) > 0 {
		results = h.dispatcher.Dispatch(ctx, calls)
	}

	return Aggregate(message.Type, len(calls), results)
}

func writeJSON(w http.ResponseWriter, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(value)
}
