package tools

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"log/slog"
	"strings"
	"time"

	"datemate/pkg/webhook"
)

const (
	BookAppointmentName = "book_appointment"

	bookingDelay = 200 * time.Millisecond
)

// BookAppointment reserves a slot and returns a deterministic booking id.
type BookAppointment struct {
	schema *argumentSchema
	delay  time.Duration
	log    *slog.Logger
}

// NewBookAppointment builds the handler; delay simulates the booking call.
func NewBookAppointment(delay time.Duration, log *slog.Logger) (*BookAppointment, error) {
	schema, err := loadSchema(BookAppointmentName)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	return &BookAppointment{
		schema: schema,
		delay:  delay,
		log:    log.With("component", "tools.book_appointment"),
	}, nil
}

func (h *BookAppointment) Execute(ctx context.Context, args map[string]any, toolCallID string) (webhook.ToolResult, error) {
	h.log.InfoContext(ctx, "Executing tool", "tool_call_id", toolCallID, "arguments", args)

	if err := h.schema.validate(args); err != nil {
		h.log.DebugContext(ctx, "Arguments rejected", "tool_call_id", toolCallID, "error", err)
		return webhook.Failure(toolCallID, "Missing required parameters for booking."), nil
	}

	if err := sleep(ctx, h.delay); err != nil {
		return webhook.ToolResult{}, err
	}

	name, _ := args["name"].(string)
	slot, _ := args["slot_datetime_iso"].(string)

	return webhook.Success(toolCallID, map[string]any{
		"booking_id":  BookingID(name),
		"name":        name,
		"slot_booked": slot,
	}), nil
}

// BookingID is "BK-" followed by the first six upper-case hex digits of md5(name).
func BookingID(name string) string {
	sum := md5.Sum([]byte(name))
	return "BK-" + strings.ToUpper(hex.EncodeToString(sum[:])[:6])
}
