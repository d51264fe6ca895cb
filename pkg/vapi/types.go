package vapi

import "encoding/json"

// Assistant is the platform's assistant resource, limited to the fields the
// backend reads or writes.
type Assistant struct {
	ID           string         `json:"id,omitempty"`
	Name         string         `json:"name,omitempty"`
	Model        *Model         `json:"model,omitempty"`
	Voice        *Voice         `json:"voice,omitempty"`
	FirstMessage string         `json:"firstMessage,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	CreatedAt    string         `json:"createdAt,omitempty"`
	UpdatedAt    string         `json:"updatedAt,omitempty"`
	LastUsed     string         `json:"lastUsed,omitempty"`
}

// SystemPrompt returns the first system message content.
func (a Assistant) SystemPrompt() string {
	if a.Model == nil {
		return ""
	}
	for _, message := range a.Model.Messages {
		if message.Role == "system" {
			return message.Content
		}
	}
	return ""
}

// VoiceID returns the configured voice id, if any.
func (a Assistant) VoiceID() string {
	if a.Voice == nil {
		return ""
	}
	return a.Voice.VoiceID
}

// Model selects the LLM behind an assistant.
type Model struct {
	Provider string         `json:"provider,omitempty"`
	Model    string         `json:"model,omitempty"`
	Messages []ModelMessage `json:"messages,omitempty"`
}

type ModelMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Voice selects the TTS voice.
type Voice struct {
	Provider string `json:"provider,omitempty"`
	VoiceID  string `json:"voiceId,omitempty"`
}

// AssistantUpdate is the partial body sent by UpdateAssistant.
type AssistantUpdate struct {
	Name     string         `json:"name,omitempty"`
	Voice    *Voice         `json:"voice,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// AssistantPage is one page of assistants.
type AssistantPage struct {
	Assistants    []Assistant
	NextPageToken string
	// Skipped counts list items that could not be decoded.
	Skipped int
}

// Call is a platform call record.
type Call struct {
	ID          string    `json:"id"`
	AssistantID string    `json:"assistantId,omitempty"`
	Status      string    `json:"status,omitempty"`
	Type        string    `json:"type,omitempty"`
	StartTime   string    `json:"startTime,omitempty"`
	EndTime     string    `json:"endTime,omitempty"`
	StartedAt   string    `json:"startedAt,omitempty"`
	EndedAt     string    `json:"endedAt,omitempty"`
	Duration    *float64  `json:"duration,omitempty"`
	Transcript  string    `json:"transcript,omitempty"`
	Analysis    *Analysis `json:"analysis,omitempty"`
}

// Started returns the call start timestamp in either field spelling.
func (c Call) Started() string {
	if c.StartTime != "" {
		return c.StartTime
	}
	return c.StartedAt
}

// Ended returns the call end timestamp in either field spelling.
func (c Call) Ended() string {
	if c.EndTime != "" {
		return c.EndTime
	}
	return c.EndedAt
}

// Analysis is the post-call analysis block.
type Analysis struct {
	Summary        string         `json:"summary,omitempty"`
	Success        *bool          `json:"success,omitempty"`
	StructuredData map[string]any `json:"structuredData,omitempty"`
}

// CallPage is one page of calls.
type CallPage struct {
	Calls    []Call
	NextPage string
	Total    int
	Skipped  int
}

// ListCallsParams filters ListCalls.
type ListCallsParams struct {
	AssistantID string
	Limit       int
	Page        string
}

// Analytics is the aggregate metrics payload for one assistant.
type Analytics struct {
	AssistantID     string            `json:"assistantId"`
	TotalCalls      *int              `json:"totalCalls,omitempty"`
	TotalMinutes    *float64          `json:"totalMinutes,omitempty"`
	AverageDuration *float64          `json:"averageDuration,omitempty"`
	SuccessRate     *float64          `json:"successRate,omitempty"`
	Calls           []json.RawMessage `json:"calls,omitempty"`
}

// PhoneCallRequest starts an outbound phone call.
type PhoneCallRequest struct {
	PhoneNumberID      string              `json:"phoneNumberId"`
	AssistantID        string              `json:"assistantId"`
	Customer           Customer            `json:"customer"`
	AssistantOverrides *AssistantOverrides `json:"assistantOverrides,omitempty"`
}

type Customer struct {
	Number string `json:"number"`
}

type AssistantOverrides struct {
	VariableValues map[string]any `json:"variableValues,omitempty"`
}

// listEnvelope is the paginated object form of list responses.
type listEnvelope struct {
	Data          []json.RawMessage `json:"data"`
	NextPageToken string            `json:"nextPageToken"`
	NextPage      string            `json:"next_page"`
	Total         *int              `json:"total"`
}
