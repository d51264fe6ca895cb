package tools

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"text/template"
	"time"

	osdk "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/responses"

	"datemate/pkg/config"
	"datemate/pkg/webhook"
)

const EvaluateConversationName = "evaluate_conversation"

//go:embed prompts/evaluate_conversation.tmpl
var evaluatePromptText string

var evaluatePrompt = template.Must(template.New("evaluate_conversation").Parse(evaluatePromptText))

// EvaluationRequest is the conversation to score.
type EvaluationRequest struct {
	Transcript string
	Scenario   string
}

// Evaluation holds per-skill scores on a 0-100 scale.
type Evaluation struct {
	Smoothness    int      `json:"smoothness"`
	Confidence    int      `json:"confidence"`
	Attentiveness int      `json:"attentiveness"`
	Engagement    int      `json:"engagement"`
	Overall       int      `json:"overall"`
	Summary       string   `json:"summary"`
	Tips          []string `json:"tips,omitempty"`
}

// Evaluator scores practice conversations.
type Evaluator interface {
	Evaluate(ctx context.Context, req EvaluationRequest) (Evaluation, error)
}

// EvaluateConversation scores a practice transcript through an Evaluator.
type EvaluateConversation struct {
	schema    *argumentSchema
	evaluator Evaluator
	log       *slog.Logger
}

// NewEvaluateConversation builds the handler around evaluator.
func NewEvaluateConversation(evaluator Evaluator, log *slog.Logger) (*EvaluateConversation, error) {
	if evaluator == nil {
		return nil, errors.New("evaluator is required")
	}
	schema, err := loadSchema(EvaluateConversationName)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	return &EvaluateConversation{
		schema:    schema,
		evaluator: evaluator,
		log:       log.With("component", "tools.evaluate_conversation"),
	}, nil
}

func (h *EvaluateConversation) Execute(ctx context.Context, args map[string]any, toolCallID string) (webhook.ToolResult, error) {
	if err := h.schema.validate(args); err != nil {
		h.log.DebugContext(ctx, "Arguments rejected", "tool_call_id", toolCallID, "error", err)
		return webhook.Failure(toolCallID, "Missing transcript parameter."), nil
	}

	transcript, _ := args["transcript"].(string)
	scenario, _ := args["scenario"].(string)
	h.log.InfoContext(ctx, "Executing tool", "tool_call_id", toolCallID, "transcript_length", len(transcript))

	evaluation, err := h.evaluator.Evaluate(ctx, EvaluationRequest{Transcript: transcript, Scenario: scenario})
	if err != nil {
		return webhook.ToolResult{}, err
	}

	return webhook.Success(toolCallID, map[string]any{
		"scores": map[string]int{
			"smoothness":    evaluation.Smoothness,
			"confidence":    evaluation.Confidence,
			"attentiveness": evaluation.Attentiveness,
			"engagement":    evaluation.Engagement,
		},
		"overall": evaluation.Overall,
		"summary": evaluation.Summary,
		"tips":    evaluation.Tips,
	}), nil
}

// OpenAIEvaluator scores conversations with the OpenAI Responses API.
type OpenAIEvaluator struct {
	client         osdk.Client
	model          string
	requestTimeout time.Duration
	log            *slog.Logger
}

// NewOpenAIEvaluator builds an evaluator from config. An API key is required.
func NewOpenAIEvaluator(cfg config.EvaluatorConfig, log *slog.Logger) (*OpenAIEvaluator, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("tools.evaluator.api_key or OPENAI_API_KEY must be set")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		return nil, errors.New("tools.evaluator.model is required")
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL := strings.TrimSpace(cfg.BaseURL); baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	requestTimeout := time.Duration(cfg.RequestTimeoutSeconds) * time.Second
	if requestTimeout > 0 {
		opts = append(opts, option.WithRequestTimeout(requestTimeout))
	}
	if log == nil {
		log = slog.Default()
	}

	return &OpenAIEvaluator{
		client:         osdk.NewClient(opts...),
		model:          model,
		requestTimeout: requestTimeout,
		log:            log.With("component", "tools.evaluator"),
	}, nil
}

func (e *OpenAIEvaluator) Evaluate(ctx context.Context, req EvaluationRequest) (Evaluation, error) {
	if e.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.requestTimeout)
		defer cancel()
	}

	prompt, err := renderEvaluationPrompt(req)
	if err != nil {
		return Evaluation{}, err
	}

	startedAt := time.Now()
	e.log.DebugContext(ctx, "evaluator request started", "model", e.model, "prompt_length", len(prompt))

	response, err := e.client.Responses.New(ctx, responses.ResponseNewParams{
		Model: e.model,
		Input: responses.ResponseNewParamsInputUnion{OfString: osdk.String(prompt)},
	})
	if err != nil {
		e.log.DebugContext(ctx, "evaluator request failed", "duration_ms", time.Since(startedAt).Milliseconds(), "error", err)
		return Evaluation{}, fmt.Errorf("evaluate conversation: %w", err)
	}
	e.log.DebugContext(ctx, "evaluator request completed", "duration_ms", time.Since(startedAt).Milliseconds())

	return parseEvaluation(response.OutputText())
}

func renderEvaluationPrompt(req EvaluationRequest) (string, error) {
	var b strings.Builder
	if err := evaluatePrompt.Execute(&b, EvaluationRequest{
		Transcript: strings.TrimSpace(req.Transcript),
		Scenario:   strings.TrimSpace(req.Scenario),
	}); err != nil {
		return "", fmt.Errorf("render evaluation prompt: %w", err)
	}
	return b.String(), nil
}

// parseEvaluation extracts the JSON object from model output, tolerating
// code fences and surrounding prose.
func parseEvaluation(text string) (Evaluation, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return Evaluation{}, errors.New("evaluator returned no JSON object")
	}

	var raw struct {
		Smoothness    float64  `json:"smoothness"`
		Confidence    float64  `json:"confidence"`
		Attentiveness float64  `json:"attentiveness"`
		Engagement    float64  `json:"engagement"`
		Overall       float64  `json:"overall"`
		Summary       string   `json:"summary"`
		Tips          []string `json:"tips"`
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), &raw); err != nil {
		return Evaluation{}, fmt.Errorf("decode evaluation: %w", err)
	}

	evaluation := Evaluation{
		Smoothness:    clampScore(raw.Smoothness),
		Confidence:    clampScore(raw.Confidence),
		Attentiveness: clampScore(raw.Attentiveness),
		Engagement:    clampScore(raw.Engagement),
		Overall:       clampScore(raw.Overall),
		Summary:       raw.Summary,
		Tips:          raw.Tips,
	}
	if evaluation.Overall == 0 {
		evaluation.Overall = (evaluation.Smoothness + evaluation.Confidence + evaluation.Attentiveness + evaluation.Engagement) / 4
	}
	evaluation.Summary = strings.TrimSpace(evaluation.Summary)
	if len(evaluation.Tips) > 3 {
		evaluation.Tips = evaluation.Tips[:3]
	}

	return evaluation, nil
}

func clampScore(score float64) int {
	return int(math.Round(min(max(score, 0), 100)))
}
