package gateway

import (
	"encoding/json"
	"net/http"
	"strings"

	"datemate/pkg/apperr"
	"datemate/pkg/persona"
)

const (
	defaultAssistantLimit = 100
	maxAssistantLimit     = 100
)

type deleteResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (s *Service) handleCreateAgent(w http.ResponseWriter, r *http.Request) {
	var req persona.CreateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, r, s.log, err)
		return
	}

	assistant, prompt, err := persona.NewAssistant(req, s.cfg.Persona)
	if err != nil {
		writeError(w, r, s.log, apperr.Internal(err, "Failed to render persona prompt"))
		return
	}
	s.log.InfoContext(r.Context(), "Generated persona prompt",
		"persona", req.Name,
		"difficulty", req.Difficulty,
		"prompt_preview", previewText(prompt, 200),
	)

	created, err := s.upstream.CreateAssistant(r.Context(), assistant)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	if created.ID == "" {
		writeError(w, r, s.log, apperr.Internal(nil, "Assistant created but ID missing in Vapi response."))
		return
	}

	s.log.InfoContext(r.Context(), "Created persona assistant", "persona", req.Name, "assistant_id", created.ID)
	writeJSON(w, r, s.log, http.StatusCreated, persona.CreateResponse{
		AssistantID: created.ID,
		Status:      "success",
		Name:        req.Name,
		PromptUsed:  prompt,
	})
}

func (s *Service) handleListAssistants(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", defaultAssistantLimit, 1, maxAssistantLimit)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}

	page, err := s.upstream.ListAssistants(r.Context(), limit, r.URL.Query().Get("page_token"))
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}

	now := s.now()
	list := persona.List{Data: make([]persona.Summary, 0, len(page.Assistants))}
	for _, assistant := range page.Assistants {
		summary, err := persona.Summarize(assistant, now)
		if err != nil {
			s.log.WarnContext(r.Context(), "Skipping invalid assistant", "assistant_id", assistant.ID, "error", err)
			continue
		}
		list.Data = append(list.Data, summary)
	}
	if page.NextPageToken != "" {
		token := page.NextPageToken
		list.NextPageToken = &token
	}

	writeJSON(w, r, s.log, http.StatusOK, list)
}

func (s *Service) handleGetAssistant(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("assistant_id")

	assistant, err := s.upstream.GetAssistant(r.Context(), id)
	if err != nil {
		writeError(w, r, s.log, upstreamNotFound(err, "Assistant not found", map[string]any{"assistant_id": id}))
		return
	}

	writeJSON(w, r, s.log, http.StatusOK, persona.NewDetail(assistant, s.now()))
}

func (s *Service) handleUpdateAssistant(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("assistant_id")

	var req persona.UpdateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, r, s.log, err)
		return
	}

	existing, err := s.upstream.GetAssistant(r.Context(), id)
	if err != nil {
		writeError(w, r, s.log, upstreamNotFound(err, "Assistant not found", map[string]any{"assistant_id": id}))
		return
	}

	updated, err := s.upstream.UpdateAssistant(r.Context(), id, persona.MergeUpdate(existing, req, s.cfg.Persona))
	if err != nil {
		writeError(w, r, s.log, upstreamNotFound(err, "Assistant not found", map[string]any{"assistant_id": id}))
		return
	}

	s.log.InfoContext(r.Context(), "Updated assistant", "assistant_id", id)
	writeJSON(w, r, s.log, http.StatusOK, persona.NewDetail(updated, s.now()))
}

func (s *Service) handleDeleteAssistant(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("assistant_id")

	result, err := s.upstream.DeleteAssistant(r.Context(), id)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}

	s.log.InfoContext(r.Context(), "Deleted assistant", "assistant_id", id)
	writeJSON(w, r, s.log, http.StatusOK, deleteResponse{
		Success: true,
		Message: "Assistant " + id + " deleted successfully",
		Data:    rawOrNull(result),
	})
}

func rawOrNull(raw json.RawMessage) json.RawMessage {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return json.RawMessage("null")
	}
	return raw
}

func previewText(text string, limit int) string {
	text = strings.TrimSpace(text)
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}
