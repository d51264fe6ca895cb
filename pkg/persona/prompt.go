// Package persona renders persona system prompts and maps platform
// assistants to and from the persona view exposed over REST.
package persona

import (
	_ "embed"
	"fmt"
	"strings"
	"text/template"
)

// Difficulty levels understood by the prompt template.
const (
	Easy   = "easy"
	Medium = "medium"
	Hard   = "hard"
)

//go:embed prompts/persona.tmpl
var promptText string

var promptTemplate = template.Must(template.New("persona").
	Funcs(template.FuncMap{"lower": strings.ToLower}).
	Parse(promptText))

// PromptInput describes the persona to impersonate.
type PromptInput struct {
	Name        string
	Age         int
	Personality string
	Setting     string
	Difficulty  string
	Interests   []string
	Scenario    string
}

// NormalizeDifficulty lowercases and trims value and reports whether it is a
// known level.
func NormalizeDifficulty(value string) (string, bool) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	switch normalized {
	case Easy, Medium, Hard:
		return normalized, true
	default:
		return normalized, false
	}
}

// Prompt renders the system prompt as a single paragraph.
func Prompt(in PromptInput) (string, error) {
	difficulty, _ := NormalizeDifficulty(in.Difficulty)

	var b strings.Builder
	err := promptTemplate.Execute(&b, struct {
		Name        string
		Age         int
		Personality string
		Setting     string
		Difficulty  string
		Interests   string
		Scenario    string
	}{
		Name:        strings.TrimSpace(in.Name),
		Age:         in.Age,
		Personality: strings.TrimSpace(in.Personality),
		Setting:     strings.TrimSpace(in.Setting),
		Difficulty:  difficulty,
		Interests:   joinInterests(in.Interests),
		Scenario:    strings.TrimSpace(in.Scenario),
	})
	if err != nil {
		return "", fmt.Errorf("render persona prompt: %w", err)
	}

	lines := strings.Split(b.String(), "\n")
	parts := lines[:0]
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			parts = append(parts, line)
		}
	}
	return strings.Join(parts, " "), nil
}

// FirstMessage is the greeting spoken when a call connects.
func FirstMessage(name string) string {
	return fmt.Sprintf("Hi! I'm %s, nice to meet you!", strings.TrimSpace(name))
}

// joinInterests renders "a", "a and b" or "a, b and c".
func joinInterests(interests []string) string {
	clean := make([]string, 0, len(interests))
	for _, interest := range interests {
		if interest = strings.TrimSpace(interest); interest != "" {
			clean = append(clean, interest)
		}
	}
	switch len(clean) {
	case 0:
		return ""
	case 1:
		return clean[0]
	default:
		return strings.Join(clean[:len(clean)-1], ", ") + " and " + clean[len(clean)-1]
	}
}
