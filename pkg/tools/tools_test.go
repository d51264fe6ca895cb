package tools

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"datemate/pkg/config"
	"datemate/pkg/webhook"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func toolCall(id, name, args string) webhook.ToolCall {
	return webhook.ToolCall{ID: id, Type: "function", Function: webhook.FunctionCall{Name: name, Arguments: args}}
}

func TestCheckAvailabilityEchoesItem(t *testing.T) {
	t.Parallel()

	h, err := NewCheckAvailability(0, discardLogger())
	require.NoError(t, err)

	result, err := h.Execute(context.Background(), map[string]any{"itemId": "A1", "date": "2024-01-01"}, "call_1")
	require.NoError(t, err)
	require.True(t, result.Succeeded())
	assert.Equal(t, "call_1", result.ToolCallID)
	assert.Equal(t, "A1", result.Result["itemId"])
	assert.Equal(t, true, result.Result["is_available"])
	assert.Equal(t, 10, result.Result["available_count"])
	assert.Equal(t, 2, result.Result["estimated_delivery_days"])
	assert.Equal(t, "2024-01-01", result.Result["requested_date"])
}

func TestCheckAvailabilityMissingItem(t *testing.T) {
	t.Parallel()

	h, err := NewCheckAvailability(0, discardLogger())
	require.NoError(t, err)

	for _, args := range []map[string]any{{}, {"itemId": ""}, {"itemId": nil}, {"itemId": float64(0)}, {"itemId": false}, nil} {
		result, err := h.Execute(context.Background(), args, "call_2")
		require.NoError(t, err)
		require.False(t, result.Succeeded(), "args %v", args)
		require.Equal(t, "Missing itemId parameter.", result.ErrorMessage())
	}
}

func TestCheckAvailabilityAcceptsAnyPresentValue(t *testing.T) {
	t.Parallel()

	h, err := NewCheckAvailability(0, discardLogger())
	require.NoError(t, err)

	tests := []struct {
		name string
		args map[string]any
	}{
		{name: "numeric date", args: map[string]any{"itemId": "A1", "date": float64(20240101)}},
		{name: "numeric item", args: map[string]any{"itemId": float64(42)}},
		{name: "object date", args: map[string]any{"itemId": "A1", "date": map[string]any{"day": "monday"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := h.Execute(context.Background(), tt.args, "call_4")
			require.NoError(t, err)
			require.True(t, result.Succeeded(), "error: %s", result.ErrorMessage())
			assert.Equal(t, tt.args["itemId"], result.Result["itemId"])
			assert.Equal(t, tt.args["date"], result.Result["requested_date"])
		})
	}
}

func TestCheckAvailabilityHonorsContext(t *testing.T) {
	t.Parallel()

	h, err := NewCheckAvailability(time.Second, discardLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = h.Execute(ctx, map[string]any{"itemId": "A1"}, "call_3")
	require.ErrorIs(t, err, context.Canceled)
}

func TestBookAppointment(t *testing.T) {
	t.Parallel()

	h, err := NewBookAppointment(0, discardLogger())
	require.NoError(t, err)

	result, err := h.Execute(context.Background(), map[string]any{
		"name":              "Alice",
		"phone":             "+15550100",
		"slot_datetime_iso": "2024-02-14T19:00:00Z",
	}, "call_4")
	require.NoError(t, err)
	require.True(t, result.Succeeded())
	assert.Equal(t, BookingID("Alice"), result.Result["booking_id"])
	assert.Equal(t, "Alice", result.Result["name"])
	assert.Equal(t, "2024-02-14T19:00:00Z", result.Result["slot_booked"])

	missing, err := h.Execute(context.Background(), map[string]any{"name": "Alice", "phone": ""}, "call_5")
	require.NoError(t, err)
	require.False(t, missing.Succeeded())
	require.Equal(t, "Missing required parameters for booking.", missing.ErrorMessage())
}

func TestBookingIDFormat(t *testing.T) {
	t.Parallel()

	// md5("Alice") = 64489c85dc2fe0787b85cd87214b3810
	require.Equal(t, "BK-64489C", BookingID("Alice"))
	require.Equal(t, BookingID("Bob"), BookingID("Bob"))
	require.NotEqual(t, BookingID("Alice"), BookingID("Bob"))
}

type stubEvaluator struct {
	evaluation Evaluation
	err        error
	got        EvaluationRequest
}

func (s *stubEvaluator) Evaluate(_ context.Context, req EvaluationRequest) (Evaluation, error) {
	s.got = req
	return s.evaluation, s.err
}

func TestEvaluateConversation(t *testing.T) {
	t.Parallel()

	stub := &stubEvaluator{evaluation: Evaluation{Smoothness: 80, Confidence: 70, Attentiveness: 90, Engagement: 60, Overall: 75, Summary: "Good flow."}}
	h, err := NewEvaluateConversation(stub, discardLogger())
	require.NoError(t, err)

	result, err := h.Execute(context.Background(), map[string]any{"transcript": "user: hi\nassistant: hey", "scenario": "coffee"}, "call_6")
	require.NoError(t, err)
	require.True(t, result.Succeeded())
	assert.Equal(t, 75, result.Result["overall"])
	assert.Equal(t, map[string]int{"smoothness": 80, "confidence": 70, "attentiveness": 90, "engagement": 60}, result.Result["scores"])
	assert.Equal(t, "coffee", stub.got.Scenario)

	invalid, err := h.Execute(context.Background(), map[string]any{}, "call_7")
	require.NoError(t, err)
	require.False(t, invalid.Succeeded())

	stub.err = errors.New("quota exceeded")
	_, err = h.Execute(context.Background(), map[string]any{"transcript": "hi"}, "call_8")
	require.Error(t, err)
}

func TestParseEvaluation(t *testing.T) {
	t.Parallel()

	text := "Here you go:\n```json\n{\"smoothness\": 82.6, \"confidence\": 140, \"attentiveness\": -5, \"engagement\": 60, \"summary\": \" Nice. \", \"tips\": [\"a\",\"b\",\"c\",\"d\"]}\n```"
	evaluation, err := parseEvaluation(text)
	require.NoError(t, err)
	assert.Equal(t, 83, evaluation.Smoothness)
	assert.Equal(t, 100, evaluation.Confidence)
	assert.Equal(t, 0, evaluation.Attentiveness)
	assert.Equal(t, 60, evaluation.Engagement)
	assert.Equal(t, (83+100+0+60)/4, evaluation.Overall)
	assert.Equal(t, "Nice.", evaluation.Summary)
	assert.Len(t, evaluation.Tips, 3)

	_, err = parseEvaluation("no json here")
	require.Error(t, err)
}

func TestRenderEvaluationPrompt(t *testing.T) {
	t.Parallel()

	prompt, err := renderEvaluationPrompt(EvaluationRequest{Transcript: " user: hello ", Scenario: "rooftop bar"})
	require.NoError(t, err)
	assert.Contains(t, prompt, "The practice scenario was: rooftop bar")
	assert.Contains(t, prompt, "user: hello")
	assert.Contains(t, prompt, `"attentiveness"`)

	bare, err := renderEvaluationPrompt(EvaluationRequest{Transcript: "x"})
	require.NoError(t, err)
	assert.NotContains(t, bare, "practice scenario was")
}

func TestOpenAIEvaluatorCallsResponsesAPI(t *testing.T) {
	t.Parallel()

	var path string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "resp_1",
			"object": "response",
			"created_at": 1700000000,
			"model": "gpt-4o-mini",
			"status": "completed",
			"output": [{
				"id": "msg_1",
				"type": "message",
				"role": "assistant",
				"status": "completed",
				"content": [{"type": "output_text", "annotations": [], "text": "{\"smoothness\": 70, \"confidence\": 70, \"attentiveness\": 70, \"engagement\": 70, \"overall\": 70, \"summary\": \"Solid.\"}"}]
			}]
		}`)
	}))
	defer server.Close()

	evaluator, err := NewOpenAIEvaluator(config.EvaluatorConfig{APIKey: "test", BaseURL: server.URL, Model: "gpt-4o-mini"}, discardLogger())
	require.NoError(t, err)

	evaluation, err := evaluator.Evaluate(context.Background(), EvaluationRequest{Transcript: "user: hi"})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, "/responses"), "path = %s", path)
	assert.Equal(t, 70, evaluation.Overall)
	assert.Equal(t, "Solid.", evaluation.Summary)
}

func TestNewOpenAIEvaluatorRequiresKey(t *testing.T) {
	t.Parallel()

	_, err := NewOpenAIEvaluator(config.EvaluatorConfig{Model: "gpt-4o-mini"}, nil)
	require.Error(t, err)
}

func TestDefaultRegistry(t *testing.T) {
	t.Parallel()

	registry, err := DefaultRegistry(Deps{Log: discardLogger()})
	require.NoError(t, err)
	require.Equal(t, []string{BookAppointmentName, CheckAvailabilityName}, registry.Names())

	withEvaluator, err := DefaultRegistry(Deps{Log: discardLogger(), Evaluator: &stubEvaluator{}})
	require.NoError(t, err)
	_, ok := withEvaluator.Lookup(EvaluateConversationName)
	require.True(t, ok)
}

func TestDispatchThroughDefaultRegistry(t *testing.T) {
	t.Parallel()

	registry, err := DefaultRegistry(Deps{Log: discardLogger()})
	require.NoError(t, err)
	dispatcher := webhook.NewDispatcher(registry, discardLogger())

	results := dispatcher.Dispatch(context.Background(), []webhook.ToolCall{
		toolCall("c1", CheckAvailabilityName, `{"itemId":"A1","date":"2024-01-01"}`),
		toolCall("c2", "unknown_tool", `{}`),
		toolCall("c3", BookAppointmentName, `{"name":"Alice"`),
	})

	require.Len(t, results, 3)
	require.True(t, results[0].Succeeded())
	require.Equal(t, "A1", results[0].Result["itemId"])
	require.False(t, results[1].Succeeded())
	require.Contains(t, results[1].ErrorMessage(), "not implemented")
	require.False(t, results[2].Succeeded())
	require.Contains(t, results[2].ErrorMessage(), BookAppointmentName)
}
