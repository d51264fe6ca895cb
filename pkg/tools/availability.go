package tools

import (
	"context"
	"log/slog"
	"time"

	"datemate/pkg/webhook"
)

const (
	CheckAvailabilityName = "check_availability"

	defaultAvailableCount = 10
	defaultDeliveryDays   = 2
	availabilityDelay     = 100 * time.Millisecond
)

// CheckAvailability answers stock queries for an item. Inventory is simulated.
type CheckAvailability struct {
	schema *argumentSchema
	delay  time.Duration
	log    *slog.Logger
}

// NewCheckAvailability builds the handler; delay simulates the inventory lookup.
func NewCheckAvailability(delay time.Duration, log *slog.Logger) (*CheckAvailability, error) {
	schema, err := loadSchema(CheckAvailabilityName)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	return &CheckAvailability{
		schema: schema,
		delay:  delay,
		log:    log.With("component", "tools.check_availability"),
	}, nil
}

func (h *CheckAvailability) Execute(ctx context.Context, args map[string]any, toolCallID string) (webhook.ToolResult, error) {
	h.log.InfoContext(ctx, "Executing tool", "tool_call_id", toolCallID, "arguments", args)

	if err := h.schema.validate(args); err != nil {
		h.log.DebugContext(ctx, "Arguments rejected", "tool_call_id", toolCallID, "error", err)
		return webhook.Failure(toolCallID, "Missing itemId parameter."), nil
	}

	if err := sleep(ctx, h.delay); err != nil {
		return webhook.ToolResult{}, err
	}

	return webhook.Success(toolCallID, map[string]any{
		"itemId":                  args["itemId"],
		"is_available":            true,
		"available_count":         defaultAvailableCount,
		"estimated_delivery_days": defaultDeliveryDays,
		"requested_date":          args["date"],
	}), nil
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
