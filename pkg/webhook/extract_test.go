package webhook

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func decodeMessage(t *testing.T, raw string) *Message {
	t.Helper()
	var payload Payload
	require.NoError(t, json.Unmarshal([]byte(raw), &payload))
	require.NotNil(t, payload.Message)
	return payload.Message
}

func TestMessageAcceptsToolCallAliases(t *testing.T) {
	t.Parallel()

	for _, key := range []string{"toolCalls", "tool_calls", "toolCallList"} {
		t.Run(key, func(t *testing.T) {
			t.Parallel()

			msg := decodeMessage(t, `{"message":{"type":"tool_calls","`+key+`":[{"id":"c1","type":"function","function":{"name":"check_availability","arguments":"{\"itemId\":\"A1\"}"}}]}}`)
			calls := ExtractToolCalls(msg, discardLogger())
			require.Len(t, calls, 1)
			require.Equal(t, "c1", calls[0].ID)
			require.Equal(t, "check_availability", calls[0].Function.Name)
			require.JSONEq(t, `{"itemId":"A1"}`, calls[0].Function.Arguments)
		})
	}
}

func TestFunctionArgumentsAcceptInlineObject(t *testing.T) {
	t.Parallel()

	msg := decodeMessage(t, `{"message":{"type":"tool-calls","toolCalls":[{"id":"c1","function":{"name":"book_appointment","arguments":{"name":"Ana","phone":"555"}}}]}}`)
	calls := ExtractToolCalls(msg, discardLogger())
	require.Len(t, calls, 1)
	require.JSONEq(t, `{"name":"Ana","phone":"555"}`, calls[0].Function.Arguments)

	args, failure := DecodeArguments(calls[0])
	require.Nil(t, failure)
	require.Equal(t, "Ana", args["name"])
}

func TestExtractLegacyFunctionCall(t *testing.T) {
	t.Parallel()

	msg := decodeMessage(t, `{"message":{"type":"function_call","function_call":{"name":"check_availability","parameters":{"itemId":"B2"}}}}`)
	calls := ExtractToolCalls(msg, discardLogger())
	require.Len(t, calls, 1)
	require.Equal(t, "legacy_fn_check_availability", calls[0].ID)
	require.JSONEq(t, `{"itemId":"B2"}`, calls[0].Function.Arguments)

	camel := decodeMessage(t, `{"message":{"type":"function_call","functionCall":{"id":"fc-1","name":"check_availability","parameters":"{\"itemId\":\"C3\"}"}}}`)
	calls = ExtractToolCalls(camel, discardLogger())
	require.Len(t, calls, 1)
	require.Equal(t, "fc-1", calls[0].ID)
	require.JSONEq(t, `{"itemId":"C3"}`, calls[0].Function.Arguments)
}

func TestExtractIncompleteLegacyCallYieldsNothing(t *testing.T) {
	t.Parallel()

	for name, raw := range map[string]string{
		"missing name":       `{"message":{"type":"function_call","function_call":{"parameters":{}}}}`,
		"missing parameters": `{"message":{"type":"function_call","function_call":{"name":"x"}}}`,
		"null parameters":    `{"message":{"type":"function_call","function_call":{"name":"x","parameters":null}}}`,
		"no function_call":   `{"message":{"type":"function_call"}}`,
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			require.Empty(t, ExtractToolCalls(decodeMessage(t, raw), discardLogger()))
		})
	}
}

func TestExtractMixedShapes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		raw    string
		wantID string
	}{
		{
			name:   "function_call type with tool call list",
			raw:    `{"message":{"type":"function_call","toolCalls":[{"id":"c1","function":{"name":"echo","arguments":"{}"}}]}}`,
			wantID: "c1",
		},
		{
			name:   "tool_calls type with legacy function call",
			raw:    `{"message":{"type":"tool_calls","function_call":{"name":"echo","parameters":{}}}}`,
			wantID: "legacy_fn_echo",
		},
		{
			name:   "tool call list wins over legacy call",
			raw:    `{"message":{"type":"tool-calls","toolCalls":[{"id":"c2","function":{"name":"echo","arguments":"{}"}}],"functionCall":{"name":"other","parameters":{}}}}`,
			wantID: "c2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			calls := ExtractToolCalls(decodeMessage(t, tt.raw), discardLogger())
			require.Len(t, calls, 1)
			require.Equal(t, tt.wantID, calls[0].ID)
			require.Equal(t, "echo", calls[0].Function.Name)
		})
	}
}

func TestExtractIgnoresOtherTypes(t *testing.T) {
	t.Parallel()

	msg := decodeMessage(t, `{"message":{"type":"status-update","toolCalls":[{"id":"c1","function":{"name":"x","arguments":"{}"}}]}}`)
	require.Empty(t, ExtractToolCalls(msg, discardLogger()))
	require.Empty(t, ExtractToolCalls(nil, discardLogger()))
}

func TestAggregateShapes(t *testing.T) {
	t.Parallel()

	results := []ToolResult{Success("c1", nil)}

	require.Equal(t, ToolResultsResponse{ToolResults: results}, Aggregate(TypeToolCalls, 1, results))
	require.Equal(t, AckResponse{Message: "Webhook received, no tool calls to process."}, Aggregate(TypeToolCalls, 0, nil))
	require.Equal(t, AckResponse{Message: "Webhook received, no tool calls to process."}, Aggregate(TypeFunctionCall, 0, nil))
	require.Equal(t, AckResponse{Message: "Webhook type 'end-of-call-report' received and acknowledged."}, Aggregate("end-of-call-report", 0, nil))
}

func TestDecodeArgumentsRejectsNonObjects(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{``, `  `, `null`, `"text"`, `[1]`, `3`, `{"a":`} {
		args, failure := DecodeArguments(call("c1", "check_availability", raw))
		require.Nil(t, args, "raw %q", raw)
		require.NotNil(t, failure, "raw %q", raw)
		require.Equal(t, "c1", failure.ToolCallID)
		require.False(t, failure.Succeeded())
		require.Contains(t, failure.ErrorMessage(), "Invalid JSON args for tool check_availability")
	}

	args, failure := DecodeArguments(call("c2", "check_availability", `{}`))
	require.Nil(t, failure)
	require.Empty(t, args)
}

func TestNewRegistryRejectsBadEntries(t *testing.T) {
	t.Parallel()

	_, err := NewRegistry(Entry{Name: " ", Handler: echoHandler()})
	require.Error(t, err)

	_, err = NewRegistry(Entry{Name: "echo"})
	require.Error(t, err)

	_, err = NewRegistry(Entry{Name: "echo", Handler: echoHandler()}, Entry{Name: "echo", Handler: echoHandler()})
	require.Error(t, err)

	registry, err := NewRegistry(Entry{Name: "b", Handler: echoHandler()}, Entry{Name: "a", Handler: echoHandler()})
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, registry.Names())
	_, ok := registry.Lookup("missing")
	require.False(t, ok)
}
