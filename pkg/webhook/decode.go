package webhook

import (
	"encoding/json"
	"strings"
)

// DecodeArguments parses a call's raw argument blob into an object. Anything
// other than a JSON object is a malformed-arguments failure local to the call.
func DecodeArguments(call ToolCall) (map[string]any, *ToolResult) {
	raw := strings.TrimSpace(call.Function.Arguments)
	if raw == "" {
		failure := invalidArguments(call, "empty arguments")
		return nil, &failure
	}

	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		failure := invalidArguments(call, err.Error())
		return nil, &failure
	}
	if args == nil {
		failure := invalidArguments(call, "arguments must be a JSON object")
		return nil, &failure
	}

	return args, nil
}

func invalidArguments(call ToolCall, reason string) ToolResult {
	return Failuref(call.ID, "Invalid JSON args for tool %s (tool_call_id %s): %s", call.Function.Name, call.ID, reason)
}
