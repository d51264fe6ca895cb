package persona

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"datemate/pkg/vapi"
)

var (
	nameDifficultyPattern = regexp.MustCompile(`(?i)^(.+?)\s*\((easy|medium|hard)\)`)
	agePattern            = regexp.MustCompile(`(?i)(\d+)\s*year-old`)
	personalityPattern    = regexp.MustCompile(`(?i)identifies as (\w+)|personality is (\w+)|is (\w+) and`)
	settingPattern        = regexp.MustCompile(`(?i)at a (\w+\s*\w*)|in a (\w+\s*\w*)|setting is a (\w+\s*\w*)`)
	difficultyPattern     = regexp.MustCompile(`(?i)difficulty is (easy|medium|hard)`)
	firstSentencePattern  = regexp.MustCompile(`^([^.!?]+[.!?])`)
)

const shortDescriptionLimit = 100

// Metadata is the persona view derived from a platform assistant.
type Metadata struct {
	PersonaName      string `json:"app_persona_name,omitempty"`
	Age              any    `json:"app_age,omitempty"`
	Personality      string `json:"app_personality,omitempty"`
	Setting          string `json:"app_setting,omitempty"`
	Difficulty       string `json:"app_difficulty,omitempty"`
	ShortDescription string `json:"app_short_description,omitempty"`
}

// Summary is one item of GET /api/assistants.
type Summary struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Personality  string     `json:"personality,omitempty"`
	CreationDate time.Time  `json:"creation_date"`
	VoiceModel   string     `json:"voice_model,omitempty"`
	Difficulty   string     `json:"difficulty,omitempty"`
	LastUsed     *time.Time `json:"last_used,omitempty"`
	Metadata     *Metadata  `json:"metadata,omitempty"`
}

// Detail is the body of GET and PUT /api/assistants/{assistant_id}.
type Detail struct {
	Summary
	Age                 int      `json:"age"`
	Setting             string   `json:"setting"`
	SystemPrompt        string   `json:"system_prompt"`
	TotalCalls          int      `json:"total_calls"`
	AverageCallDuration *float64 `json:"average_call_duration"`
}

// List is the body of GET /api/assistants.
type List struct {
	Data          []Summary `json:"data"`
	NextPageToken *string   `json:"next_page_token"`
}

// Summarize derives the persona view of an assistant from its display name
// and system prompt. now is used when the assistant has no valid createdAt.
func Summarize(assistant vapi.Assistant, now time.Time) (Summary, error) {
	if strings.TrimSpace(assistant.ID) == "" {
		return Summary{}, fmt.Errorf("assistant has no id")
	}

	metadata := inferMetadata(assistant)

	name := assistant.Name
	if name == "" {
		name = "Unnamed Assistant"
	}

	summary := Summary{
		ID:           assistant.ID,
		Name:         name,
		Personality:  metadata.Personality,
		CreationDate: parseTimestamp(assistant.CreatedAt, now),
		VoiceModel:   assistant.VoiceID(),
		Difficulty:   metadata.Difficulty,
		Metadata:     &metadata,
	}
	if lastUsed, ok := parseOptionalTimestamp(assistant.UpdatedAt); ok {
		summary.LastUsed = &lastUsed
	}
	return summary, nil
}

// NewDetail builds the detail view from stored persona metadata.
func NewDetail(assistant vapi.Assistant, now time.Time) Detail {
	meta := assistant.Metadata

	name := stringValue(meta[MetaPersonaName])
	if name == "" {
		name = assistant.Name
	}
	if name == "" {
		name = "Unknown"
	}
	setting := "Unknown setting"
	if value, ok := meta[MetaSetting]; ok {
		setting = stringValue(value)
	}
	difficulty := Easy
	if value, ok := meta[MetaDifficulty]; ok {
		difficulty = stringValue(value)
	}
	age, ok := intValue(meta[MetaAge])
	if !ok {
		age = 25
	}
	totalCalls, _ := intValue(meta["total_calls"])

	detail := Detail{
		Summary: Summary{
			ID:           assistant.ID,
			Name:         name,
			Personality:  stringValue(meta[MetaPersonality]),
			CreationDate: parseTimestamp(assistant.CreatedAt, now),
			VoiceModel:   assistant.VoiceID(),
			Difficulty:   difficulty,
		},
		Age:          age,
		Setting:      setting,
		SystemPrompt: firstMessageContent(assistant),
		TotalCalls:   totalCalls,
	}
	if average, ok := floatValue(meta["average_call_duration"]); ok {
		detail.AverageCallDuration = &average
	}
	if lastUsed, ok := parseOptionalTimestamp(assistant.LastUsed); ok {
		detail.LastUsed = &lastUsed
	}
	return detail
}

type parsedName struct {
	name       string
	difficulty string
}

// parseName splits "DateMate Persona - Sofia (hard)" into name and difficulty.
func parseName(displayName string) parsedName {
	if displayName == "" {
		displayName = "Unknown Persona"
	}
	parsed := parsedName{name: displayName, difficulty: Medium}

	candidate := displayName
	if parts := strings.Split(displayName, " - "); len(parts) > 1 {
		candidate = parts[len(parts)-1]
		parsed.name = strings.TrimSpace(candidate)
	} else if !strings.Contains(displayName, "(") || !strings.Contains(displayName, ")") {
		return parsed
	}

	if match := nameDifficultyPattern.FindStringSubmatch(candidate); match != nil {
		parsed.name = strings.TrimSpace(match[1])
		parsed.difficulty = strings.ToLower(match[2])
	}
	return parsed
}

func inferMetadata(assistant vapi.Assistant) Metadata {
	parsed := parseName(assistant.Name)
	metadata := Metadata{
		PersonaName:      parsed.name,
		Age:              28,
		Personality:      "friendly",
		Setting:          "a casual place",
		Difficulty:       parsed.difficulty,
		ShortDescription: fmt.Sprintf("Chat with %s.", parsed.name),
	}

	prompt := assistant.SystemPrompt()
	if prompt == "" {
		return metadata
	}

	if match := agePattern.FindStringSubmatch(prompt); match != nil {
		if age, err := strconv.Atoi(match[1]); err == nil {
			metadata.Age = age
		}
	}
	if group := firstGroup(personalityPattern.FindStringSubmatch(prompt)); group != "" {
		metadata.Personality = strings.ToLower(group)
	}
	if group := firstGroup(settingPattern.FindStringSubmatch(prompt)); group != "" {
		metadata.Setting = strings.TrimSpace(group)
	}
	if match := difficultyPattern.FindStringSubmatch(prompt); match != nil {
		metadata.Difficulty = strings.ToLower(match[1])
	}

	if match := firstSentencePattern.FindStringSubmatch(prompt); match != nil {
		metadata.ShortDescription = strings.TrimSpace(match[1])
	} else {
		metadata.ShortDescription = truncate(strings.TrimSpace(prompt), shortDescriptionLimit)
	}
	return metadata
}

// firstMessageContent returns the content of the first model message,
// whatever its role.
func firstMessageContent(assistant vapi.Assistant) string {
	if assistant.Model == nil || len(assistant.Model.Messages) == 0 {
		return ""
	}
	return assistant.Model.Messages[0].Content
}

func firstGroup(match []string) string {
	if len(match) < 2 {
		return ""
	}
	for _, group := range match[1:] {
		if group != "" {
			return group
		}
	}
	return ""
}

func truncate(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit]) + "..."
}

func parseTimestamp(value string, fallback time.Time) time.Time {
	if parsed, ok := parseOptionalTimestamp(value); ok {
		return parsed
	}
	return fallback.UTC()
}

func parseOptionalTimestamp(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	parsed, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, false
	}
	return parsed, true
}

func stringValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

func intValue(value any) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case float64:
		return int(math.Round(v)), true
	case json.Number:
		n, err := v.Int64()
		return int(n), err == nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		return n, err == nil
	default:
		return 0, false
	}
}

func floatValue(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
