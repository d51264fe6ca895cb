package webhook

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
)

const (
	ackNoToolCalls = "Webhook received, no tool calls to process."
	ackTypeFormat  = "Webhook type '%s' received and acknowledged."
)

// IsToolCallType reports whether a message type carries tool invocations.
func IsToolCallType(messageType string) bool {
	switch messageType {
	case TypeToolCalls, TypeToolCallsDashed, TypeFunctionCall:
		return true
	default:
		return false
	}
}

// ExtractToolCalls returns the tool calls carried by message. Any recognized
// type uses its tool call list when present and falls back to the legacy
// function call otherwise. Unrecognized types and incomplete legacy calls
// yield no calls.
func ExtractToolCalls(message *Message, log *slog.Logger) []ToolCall {
	if message == nil || !IsToolCallType(message.Type) {
		return nil
	}
	if log == nil {
		log = slog.Default()
	}

	if len(message.ToolCalls) > 0 {
		return message.ToolCalls
	}
	if message.FunctionCall == nil {
		return nil
	}

	call, ok := legacyToolCall(message.FunctionCall)
	if !ok {
		log.Warn("Legacy function_call missing name or parameters; no tool calls extracted")
		return nil
	}
	return []ToolCall{call}
}

func legacyToolCall(fn *LegacyFunctionCall) (ToolCall, bool) {
	if fn == nil || strings.TrimSpace(fn.Name) == "" {
		return ToolCall{}, false
	}
	params := bytes.TrimSpace(fn.Parameters)
	if len(params) == 0 || bytes.Equal(params, []byte("null")) {
		return ToolCall{}, false
	}

	id := strings.TrimSpace(fn.ID)
	if id == "" {
		id = legacyIDPrefix + fn.Name
	}

	return ToolCall{
		ID:   id,
		Type: "function",
		Function: FunctionCall{
			Name:      fn.Name,
			Arguments: rawArguments(json.RawMessage(params)),
		},
	}, true
}

// Aggregate picks the response envelope for one event. The tool_results shape
// is used only when a recognized tool-call type produced at least one call.
func Aggregate(messageType string, extracted int, results []ToolResult) any {
	if !IsToolCallType(messageType) {
		return AckResponse{Message: fmt.Sprintf(ackTypeFormat, messageType)}
	}
	if extracted == 0 {
		return AckResponse{Message: ackNoToolCalls}
	}
	return ToolResultsResponse{ToolResults: results}
}
