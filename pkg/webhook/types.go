package webhook

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Message types that carry tool invocations.
const (
	TypeToolCalls       = "tool_calls"
	TypeToolCallsDashed = "tool-calls"
	TypeFunctionCall    = "function_call"
)

const legacyIDPrefix = "legacy_fn_"

// ToolCall is one named invocation extracted from an inbound event.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type,omitempty"`
	Function FunctionCall `json:"function"`
}

// FunctionCall names the tool and carries its JSON-encoded argument object.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// UnmarshalJSON accepts arguments either as a JSON string or as an inline
// JSON value, keeping the raw encoded form in both cases.
func (f *FunctionCall) UnmarshalJSON(data []byte) error {
	var raw struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	f.Name = raw.Name
	f.Arguments = rawArguments(raw.Arguments)
	return nil
}

// rawArguments unquotes a JSON string argument blob and passes any other
// JSON value through unchanged. null or absent arguments become "".
func rawArguments(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return ""
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			return s
		}
	}
	return string(trimmed)
}

// ToolResult is the per-call outcome correlated by ToolCallID.
type ToolResult struct {
	ToolCallID string         `json:"tool_call_id"`
	Result     map[string]any `json:"result"`
}

// Succeeded reports the result's success flag.
func (r ToolResult) Succeeded() bool {
	ok, _ := r.Result["success"].(bool)
	return ok
}

// ErrorMessage returns the failure text, if any.
func (r ToolResult) ErrorMessage() string {
	msg, _ := r.Result["error"].(string)
	return msg
}

// Success builds a successful result; fields are copied next to success=true.
func Success(toolCallID string, fields map[string]any) ToolResult {
	result := make(map[string]any, len(fields)+1)
	for key, value := range fields {
		result[key] = value
	}
	result["success"] = true
	return ToolResult{ToolCallID: toolCallID, Result: result}
}

// Failure builds a success=false result carrying message.
func Failure(toolCallID string, message string) ToolResult {
	return ToolResult{
		ToolCallID: toolCallID,
		Result: map[string]any{
			"success": false,
			"error":   message,
		},
	}
}

// Failuref is Failure with formatting.
func Failuref(toolCallID string, format string, args ...any) ToolResult {
	return Failure(toolCallID, fmt.Sprintf(format, args...))
}

// Payload is the top-level webhook body.
type Payload struct {
	Message *Message `json:"message"`
}

// Message is the event envelope. Tool calls arrive under one of several keys
// depending on the platform version.
type Message struct {
	Type         string              `json:"type"`
	Role         string              `json:"role,omitempty"`
	ToolCalls    []ToolCall          `json:"toolCalls,omitempty"`
	FunctionCall *LegacyFunctionCall `json:"function_call,omitempty"`
}

// UnmarshalJSON merges the accepted aliases into ToolCalls and FunctionCall.
func (m *Message) UnmarshalJSON(data []byte) error {
	var raw struct {
		Type             string              `json:"type"`
		Role             string              `json:"role"`
		ToolCalls        []ToolCall          `json:"toolCalls"`
		ToolCallsSnake   []ToolCall          `json:"tool_calls"`
		ToolCallList     []ToolCall          `json:"toolCallList"`
		FunctionCall     *LegacyFunctionCall `json:"function_call"`
		FunctionCallCase *LegacyFunctionCall `json:"functionCall"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	m.Type = raw.Type
	m.Role = raw.Role
	switch {
	case len(raw.ToolCalls) > 0:
		m.ToolCalls = raw.ToolCalls
	case len(raw.ToolCallsSnake) > 0:
		m.ToolCalls = raw.ToolCallsSnake
	default:
		m.ToolCalls = raw.ToolCallList
	}
	m.FunctionCall = raw.FunctionCall
	if m.FunctionCall == nil {
		m.FunctionCall = raw.FunctionCallCase
	}
	return nil
}

// LegacyFunctionCall is the single-call form used by older platform versions.
type LegacyFunctionCall struct {
	ID         string          `json:"id,omitempty"`
	Name       string          `json:"name"`
	Parameters json.RawMessage `json:"parameters,omitempty"`
}

// ToolResultsResponse is returned when at least one call was dispatched.
type ToolResultsResponse struct {
	ToolResults []ToolResult `json:"tool_results"`
}

// AckResponse is the plain acknowledgement shape.
type AckResponse struct {
	Message string `json:"message"`
}
