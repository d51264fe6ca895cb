package persona

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"datemate/pkg/apperr"
	"datemate/pkg/config"
	"datemate/pkg/vapi"
)

var testDefaults = config.PersonaConfig{LLMProvider: "openai", LLMModel: "gpt-3.5-turbo", VoiceProvider: "elevenlabs"}

func TestPromptByDifficulty(t *testing.T) {
	t.Parallel()

	base := PromptInput{Name: "Sofia", Age: 28, Personality: "Witty", Setting: "coffee shop"}

	cases := map[string]string{
		"easy":    "Be very forgiving of awkward pauses from the user.",
		"MEDIUM":  "You can be a little playful or challenging at times",
		"hard":    "The user needs to impress you.",
		"extreme": "You are very receptive and try to keep the conversation going smoothly.",
	}
	for difficulty, want := range cases {
		in := base
		in.Difficulty = difficulty
		prompt, err := Prompt(in)
		require.NoError(t, err)
		assert.Contains(t, prompt, want, "difficulty %s", difficulty)
	}
}

func TestPromptShape(t *testing.T) {
	t.Parallel()

	prompt, err := Prompt(PromptInput{Name: "Sofia", Age: 28, Personality: "Witty", Setting: "coffee shop", Difficulty: "easy"})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(prompt, "You are impersonating Sofia, a 28-year-old who identifies as witty. The current setting for your conversation is a first date at a coffee shop. "), prompt)
	assert.Contains(t, prompt, "You have a keen interest in travel, movies, and good food.")
	assert.NotContains(t, prompt, "Additional context")
	assert.NotContains(t, prompt, "\n")
	assert.NotContains(t, prompt, "  ")
	assert.True(t, strings.HasSuffix(prompt, "Respond naturally as Sofia would, drawing upon the described personality and setting."), prompt)
}

func TestPromptInterestsAndScenario(t *testing.T) {
	t.Parallel()

	prompt, err := Prompt(PromptInput{
		Name: "Max", Age: 30, Personality: "calm", Setting: "park", Difficulty: "hard",
		Interests: []string{"jazz", "chess", "hiking"},
		Scenario:  "It is raining.",
	})
	require.NoError(t, err)
	assert.Contains(t, prompt, "You particularly enjoy talking about jazz, chess and hiking.")
	assert.Contains(t, prompt, "Additional context for this scenario: It is raining.")
	assert.NotContains(t, prompt, "keen interest")
}

func TestJoinInterests(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "", joinInterests(nil))
	assert.Equal(t, "jazz", joinInterests([]string{" jazz "}))
	assert.Equal(t, "jazz and chess", joinInterests([]string{"jazz", "", "chess"}))
}

func TestCreateRequestValidate(t *testing.T) {
	t.Parallel()

	valid := CreateRequest{Name: "Sofia", Age: 28, Personality: "witty", Setting: "cafe", VoiceModel: "rachel"}
	req := valid
	require.NoError(t, req.Validate())
	assert.Equal(t, Easy, req.Difficulty)

	req = valid
	req.Difficulty = " Hard "
	require.NoError(t, req.Validate())
	assert.Equal(t, Hard, req.Difficulty)

	for name, mutate := range map[string]func(*CreateRequest){
		"missing name":       func(r *CreateRequest) { r.Name = " " },
		"missing voice":      func(r *CreateRequest) { r.VoiceModel = "" },
		"zero age":           func(r *CreateRequest) { r.Age = 0 },
		"unknown difficulty": func(r *CreateRequest) { r.Difficulty = "brutal" },
	} {
		req := valid
		mutate(&req)
		err := req.Validate()
		require.Error(t, err, name)
		assert.Equal(t, apperr.CodeValidation, apperr.TextCode(err), name)
	}
}

func TestNewAssistantPayload(t *testing.T) {
	t.Parallel()

	req := CreateRequest{Name: "Sofia", Age: 31, Personality: "Witty", Setting: "coffee shop", VoiceModel: "rachel", Difficulty: Hard}
	assistant, prompt, err := NewAssistant(req, testDefaults)
	require.NoError(t, err)

	assert.Equal(t, "DateMate Persona - Sofia (hard)", assistant.Name)
	assert.Equal(t, "Hi! I'm Sofia, nice to meet you!", assistant.FirstMessage)
	require.NotNil(t, assistant.Model)
	assert.Equal(t, "openai", assistant.Model.Provider)
	assert.Equal(t, "gpt-3.5-turbo", assistant.Model.Model)
	assert.Equal(t, prompt, assistant.SystemPrompt())
	assert.Equal(t, &vapi.Voice{Provider: "elevenlabs", VoiceID: "rachel"}, assistant.Voice)
	assert.Equal(t, map[string]any{
		MetaPersonaName: "Sofia",
		MetaAge:         31,
		MetaPersonality: "Witty",
		MetaSetting:     "coffee shop",
		MetaDifficulty:  Hard,
	}, assistant.Metadata)
}

func TestSummarizeRoundTripsCreatedAssistant(t *testing.T) {
	t.Parallel()

	assistant, _, err := NewAssistant(CreateRequest{Name: "Sofia", Age: 31, Personality: "Witty", Setting: "coffee shop", VoiceModel: "rachel", Difficulty: Hard}, testDefaults)
	require.NoError(t, err)
	assistant.ID = "a1"
	assistant.CreatedAt = "2024-05-01T10:00:00Z"
	assistant.UpdatedAt = "2024-05-02T11:30:00.000Z"

	summary, err := Summarize(assistant, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "DateMate Persona - Sofia (hard)", summary.Name)
	assert.Equal(t, "witty", summary.Personality)
	assert.Equal(t, Hard, summary.Difficulty)
	assert.Equal(t, "rachel", summary.VoiceModel)
	assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), summary.CreationDate.UTC())
	require.NotNil(t, summary.LastUsed)
	assert.Equal(t, time.Date(2024, 5, 2, 11, 30, 0, 0, time.UTC), summary.LastUsed.UTC())

	require.NotNil(t, summary.Metadata)
	assert.Equal(t, "Sofia", summary.Metadata.PersonaName)
	assert.Equal(t, 31, summary.Metadata.Age)
	assert.Equal(t, "coffee shop", summary.Metadata.Setting)
	assert.Equal(t, "You are impersonating Sofia, a 31-year-old who identifies as witty.", summary.Metadata.ShortDescription)
}

func TestSummarizeDefaults(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	summary, err := Summarize(vapi.Assistant{ID: "a2", Name: "Plain Bot", CreatedAt: "not a date"}, now)
	require.NoError(t, err)

	assert.Equal(t, now, summary.CreationDate)
	assert.Nil(t, summary.LastUsed)
	assert.Equal(t, Medium, summary.Difficulty)
	assert.Equal(t, "friendly", summary.Personality)
	assert.Equal(t, Metadata{
		PersonaName:      "Plain Bot",
		Age:              28,
		Personality:      "friendly",
		Setting:          "a casual place",
		Difficulty:       Medium,
		ShortDescription: "Chat with Plain Bot.",
	}, *summary.Metadata)

	_, err = Summarize(vapi.Assistant{Name: "no id"}, now)
	require.Error(t, err)
}

func TestSummarizePromptOverrides(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("word ", 30)
	assistant := vapi.Assistant{
		ID:   "a3",
		Name: "Coach (Easy)",
		Model: &vapi.Model{Messages: []vapi.ModelMessage{{
			Role:    "system",
			Content: "Her personality is Bold and the difficulty is HARD " + long,
		}}},
	}

	summary, err := Summarize(assistant, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "Coach", summary.Metadata.PersonaName)
	assert.Equal(t, "bold", summary.Personality)
	assert.Equal(t, Hard, summary.Difficulty)
	assert.True(t, strings.HasSuffix(summary.Metadata.ShortDescription, "..."))
	assert.Len(t, []rune(summary.Metadata.ShortDescription), shortDescriptionLimit+3)
}

func TestParseName(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in, name, difficulty string
	}{
		{"DateMate Persona - Sofia (hard)", "Sofia", Hard},
		{"DateMate Persona - Sofia", "Sofia", Medium},
		{"Max (EASY)", "Max", Easy},
		{"Max (tricky)", "Max (tricky)", Medium},
		{"", "Unknown Persona", Medium},
	}
	for _, tc := range cases {
		got := parseName(tc.in)
		assert.Equal(t, tc.name, got.name, tc.in)
		assert.Equal(t, tc.difficulty, got.difficulty, tc.in)
	}
}

func TestNewDetailUsesStoredMetadata(t *testing.T) {
	t.Parallel()

	assistant := vapi.Assistant{
		ID:        "a1",
		Name:      "DateMate Persona - Sofia (hard)",
		CreatedAt: "2024-05-01T10:00:00Z",
		LastUsed:  "2024-06-01T10:00:00Z",
		Voice:     &vapi.Voice{VoiceID: "rachel"},
		Model:     &vapi.Model{Messages: []vapi.ModelMessage{{Role: "system", Content: "prompt"}}},
		Metadata: map[string]any{
			MetaPersonaName:         "Sofia",
			MetaAge:                 float64(31),
			MetaPersonality:         "witty",
			MetaSetting:             "coffee shop",
			MetaDifficulty:          Hard,
			"total_calls":           float64(4),
			"average_call_duration": 92.5,
		},
	}

	detail := NewDetail(assistant, time.Now())
	assert.Equal(t, "Sofia", detail.Name)
	assert.Equal(t, 31, detail.Age)
	assert.Equal(t, "witty", detail.Personality)
	assert.Equal(t, "coffee shop", detail.Setting)
	assert.Equal(t, Hard, detail.Difficulty)
	assert.Equal(t, "prompt", detail.SystemPrompt)
	assert.Equal(t, 4, detail.TotalCalls)
	require.NotNil(t, detail.AverageCallDuration)
	assert.InDelta(t, 92.5, *detail.AverageCallDuration, 0.001)
	require.NotNil(t, detail.LastUsed)
}

func TestNewDetailDefaults(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	detail := NewDetail(vapi.Assistant{ID: "a1", Name: "Raw"}, now)
	assert.Equal(t, "Raw", detail.Name)
	assert.Equal(t, 25, detail.Age)
	assert.Equal(t, "", detail.Personality)
	assert.Equal(t, "Unknown setting", detail.Setting)
	assert.Equal(t, Easy, detail.Difficulty)
	assert.Equal(t, now, detail.CreationDate)
	assert.Zero(t, detail.TotalCalls)
	assert.Nil(t, detail.AverageCallDuration)
}

func TestMergeUpdate(t *testing.T) {
	t.Parallel()

	existing := vapi.Assistant{
		ID:    "a1",
		Name:  "DateMate Persona - Sofia (hard)",
		Voice: &vapi.Voice{Provider: "11labs", VoiceID: "rachel"},
		Metadata: map[string]any{
			MetaPersonaName: "Sofia",
			MetaDifficulty:  Hard,
			MetaAge:         float64(31),
		},
	}

	unchanged := MergeUpdate(existing, UpdateRequest{Personality: "shy"}, testDefaults)
	assert.Equal(t, existing.Name, unchanged.Name)
	assert.Equal(t, &vapi.Voice{Provider: "11labs", VoiceID: "rachel"}, unchanged.Voice)
	assert.Equal(t, "shy", unchanged.Metadata[MetaPersonality])
	assert.Equal(t, float64(31), unchanged.Metadata[MetaAge])

	renamed := MergeUpdate(existing, UpdateRequest{Difficulty: Easy, VoiceModel: "adam", Setting: "museum"}, testDefaults)
	assert.Equal(t, "DateMate Persona - Sofia (easy)", renamed.Name)
	assert.Equal(t, "adam", renamed.Voice.VoiceID)
	assert.Equal(t, Easy, renamed.Metadata[MetaDifficulty])
	assert.Equal(t, "museum", renamed.Metadata[MetaSetting])
	_, touched := existing.Metadata[MetaSetting]
	assert.False(t, touched)

	bare := MergeUpdate(vapi.Assistant{Name: "Max (medium)"}, UpdateRequest{Name: "Maxine", VoiceModel: "v1"}, testDefaults)
	assert.Equal(t, "DateMate Persona - Maxine (medium)", bare.Name)
	assert.Equal(t, &vapi.Voice{Provider: "elevenlabs", VoiceID: "v1"}, bare.Voice)
}
