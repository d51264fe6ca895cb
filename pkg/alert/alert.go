// Package alert forwards tool handler faults to operators.
package alert

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const detailPreviewLimit = 240

// Fault describes one tool handler failure.
type Fault struct {
	Tool       string
	ToolCallID string
	Detail     string
	RequestID  string
	OccurredAt time.Time
}

// Text renders the fault as a short operator message.
func (f Fault) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "DateMate tool fault: %s", f.Tool)
	if f.ToolCallID != "" {
		fmt.Fprintf(&b, " (call %s)", f.ToolCallID)
	}
	if f.RequestID != "" {
		fmt.Fprintf(&b, "\nrequest: %s", f.RequestID)
	}
	if !f.OccurredAt.IsZero() {
		fmt.Fprintf(&b, "\nat: %s", f.OccurredAt.UTC().Format(time.RFC3339))
	}
	if detail := previewText(f.Detail); detail != "" {
		fmt.Fprintf(&b, "\n%s", detail)
	}
	return b.String()
}

// Notifier delivers fault notifications.
type Notifier interface {
	NotifyFault(ctx context.Context, fault Fault) error
}

// Nop discards every notification.
type Nop struct{}

func (Nop) NotifyFault(context.Context, Fault) error { return nil }

// previewText bounds detail text included in alerts.
func previewText(text string) string {
	trimmed := strings.TrimSpace(text)
	runes := []rune(trimmed)
	if len(runes) <= detailPreviewLimit {
		return trimmed
	}

	return string(runes[:detailPreviewLimit]) + "..."
}
