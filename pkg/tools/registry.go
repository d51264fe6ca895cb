// Package tools implements the handlers invoked by the tool-call webhook.
package tools

import (
	"fmt"
	"log/slog"
	"time"

	"datemate/pkg/webhook"
)

// Deps carries optional collaborators for the default tool set.
type Deps struct {
	// Evaluator enables evaluate_conversation when set.
	Evaluator         Evaluator
	AvailabilityDelay time.Duration
	BookingDelay      time.Duration
	Log               *slog.Logger
}

// DefaultDeps uses the simulated lookup delays.
func DefaultDeps(log *slog.Logger) Deps {
	return Deps{
		AvailabilityDelay: availabilityDelay,
		BookingDelay:      bookingDelay,
		Log:               log,
	}
}

// DefaultRegistry builds the process-wide registry of tool handlers.
func DefaultRegistry(deps Deps) (*webhook.Registry, error) {
	availability, err := NewCheckAvailability(deps.AvailabilityDelay, deps.Log)
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", CheckAvailabilityName, err)
	}
	booking, err := NewBookAppointment(deps.BookingDelay, deps.Log)
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", BookAppointmentName, err)
	}

	entries := []webhook.Entry{
		{Name: CheckAvailabilityName, Handler: availability},
		{Name: BookAppointmentName, Handler: booking},
	}

	if deps.Evaluator != nil {
		evaluate, err := NewEvaluateConversation(deps.Evaluator, deps.Log)
		if err != nil {
			return nil, fmt.Errorf("build %s: %w", EvaluateConversationName, err)
		}
		entries = append(entries, webhook.Entry{Name: EvaluateConversationName, Handler: evaluate})
	}

	return webhook.NewRegistry(entries...)
}
