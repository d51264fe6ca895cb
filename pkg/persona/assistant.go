package persona

import (
	"fmt"
	"strings"

	"datemate/pkg/apperr"
	"datemate/pkg/config"
	"datemate/pkg/vapi"
)

// Metadata keys stored on platform assistants.
const (
	MetaPersonaName = "app_persona_name"
	MetaAge         = "app_age"
	MetaPersonality = "app_personality"
	MetaSetting     = "app_setting"
	MetaDifficulty  = "app_difficulty"
)

// CreateRequest is the body of POST /api/create-agent.
type CreateRequest struct {
	Name                string   `json:"name"`
	Age                 int      `json:"age"`
	Personality         string   `json:"personality"`
	Setting             string   `json:"setting"`
	VoiceModel          string   `json:"voice_model"`
	Difficulty          string   `json:"difficulty,omitempty"`
	Interests           []string `json:"interests,omitempty"`
	ScenarioDescription string   `json:"scenario_description,omitempty"`
}

// Validate checks required fields and defaults the difficulty to easy.
func (r *CreateRequest) Validate() error {
	required := []struct{ field, value string }{
		{"name", r.Name},
		{"personality", r.Personality},
		{"setting", r.Setting},
		{"voice_model", r.VoiceModel},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			return apperr.Validation(f.field, f.field+" is required")
		}
	}
	if r.Age <= 0 {
		return apperr.Validation("age", "age must be greater than 0")
	}

	if strings.TrimSpace(r.Difficulty) == "" {
		r.Difficulty = Easy
		return nil
	}
	difficulty, ok := NormalizeDifficulty(r.Difficulty)
	if !ok {
		return apperr.Validation("difficulty", "difficulty must be one of easy, medium, hard")
	}
	r.Difficulty = difficulty
	return nil
}

// CreateResponse is returned after an assistant is created.
type CreateResponse struct {
	AssistantID string `json:"assistant_id"`
	Status      string `json:"status"`
	Name        string `json:"name"`
	PromptUsed  string `json:"prompt_used"`
}

// AssistantName is the platform display name for a persona.
func AssistantName(name, difficulty string) string {
	return fmt.Sprintf("DateMate Persona - %s (%s)", strings.TrimSpace(name), difficulty)
}

// NewAssistant builds the platform assistant for req and returns it together
// with the rendered system prompt. req must already be validated.
func NewAssistant(req CreateRequest, defaults config.PersonaConfig) (vapi.Assistant, string, error) {
	prompt, err := Prompt(PromptInput{
		Name:        req.Name,
		Age:         req.Age,
		Personality: req.Personality,
		Setting:     req.Setting,
		Difficulty:  req.Difficulty,
		Interests:   req.Interests,
		Scenario:    req.ScenarioDescription,
	})
	if err != nil {
		return vapi.Assistant{}, "", err
	}

	name := strings.TrimSpace(req.Name)
	return vapi.Assistant{
		Name: AssistantName(name, req.Difficulty),
		Model: &vapi.Model{
			Provider: defaults.LLMProvider,
			Model:    defaults.LLMModel,
			Messages: []vapi.ModelMessage{{Role: "system", Content: prompt}},
		},
		Voice: &vapi.Voice{
			Provider: defaults.VoiceProvider,
			VoiceID:  strings.TrimSpace(req.VoiceModel),
		},
		FirstMessage: FirstMessage(name),
		Metadata: map[string]any{
			MetaPersonaName: name,
			MetaAge:         req.Age,
			MetaPersonality: strings.TrimSpace(req.Personality),
			MetaSetting:     strings.TrimSpace(req.Setting),
			MetaDifficulty:  req.Difficulty,
		},
	}, prompt, nil
}

// UpdateRequest is the body of PUT /api/assistants/{assistant_id}. Empty
// fields keep the stored value.
type UpdateRequest struct {
	Name        string `json:"name,omitempty"`
	Personality string `json:"personality,omitempty"`
	VoiceModel  string `json:"voice_model,omitempty"`
	Difficulty  string `json:"difficulty,omitempty"`
	Setting     string `json:"setting,omitempty"`
}

// Validate rejects unknown difficulty levels.
func (r *UpdateRequest) Validate() error {
	if strings.TrimSpace(r.Difficulty) == "" {
		return nil
	}
	difficulty, ok := NormalizeDifficulty(r.Difficulty)
	if !ok {
		return apperr.Validation("difficulty", "difficulty must be one of easy, medium, hard")
	}
	r.Difficulty = difficulty
	return nil
}

// MergeUpdate overlays req on existing and returns the update to send.
func MergeUpdate(existing vapi.Assistant, req UpdateRequest, defaults config.PersonaConfig) vapi.AssistantUpdate {
	metadata := make(map[string]any, len(existing.Metadata)+4)
	for key, value := range existing.Metadata {
		metadata[key] = value
	}

	personaName := stringValue(metadata[MetaPersonaName])
	if personaName == "" {
		personaName = parseName(existing.Name).name
	}
	difficulty := stringValue(metadata[MetaDifficulty])
	if difficulty == "" {
		difficulty = parseName(existing.Name).difficulty
	}

	if name := strings.TrimSpace(req.Name); name != "" {
		personaName = name
		metadata[MetaPersonaName] = name
	}
	if req.Difficulty != "" {
		difficulty = req.Difficulty
		metadata[MetaDifficulty] = req.Difficulty
	}
	if personality := strings.TrimSpace(req.Personality); personality != "" {
		metadata[MetaPersonality] = personality
	}
	if setting := strings.TrimSpace(req.Setting); setting != "" {
		metadata[MetaSetting] = setting
	}

	update := vapi.AssistantUpdate{Name: existing.Name, Metadata: metadata}
	if strings.TrimSpace(req.Name) != "" || req.Difficulty != "" {
		update.Name = AssistantName(personaName, difficulty)
	}

	voiceID := strings.TrimSpace(req.VoiceModel)
	if voiceID == "" {
		voiceID = existing.VoiceID()
	}
	if voiceID != "" {
		provider := defaults.VoiceProvider
		if existing.Voice != nil && existing.Voice.Provider != "" {
			provider = existing.Voice.Provider
		}
		update.Voice = &vapi.Voice{Provider: provider, VoiceID: voiceID}
	}

	return update
}
