package gateway

import (
	"encoding/json"
	"maps"
	"net/http"
	"strings"
	"time"

	"datemate/pkg/apperr"
	"datemate/pkg/vapi"
)

const (
	defaultCallLimit = 100
	maxCallLimit     = 1000
)

// StartCallRequest is the body of POST /api/start-call.
type StartCallRequest struct {
	PhoneNumberToCall string         `json:"phone_number_to_call"`
	AssistantID       string         `json:"assistant_id,omitempty"`
	CustomerName      string         `json:"customer_name,omitempty"`
	TaskInfo          string         `json:"task_info,omitempty"`
	OtherVariables    map[string]any `json:"other_variables,omitempty"`
}

type StartCallResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	CallID  string `json:"call_id,omitempty"`
	Status  string `json:"status,omitempty"`
}

// CallAnalytics is the REST view of one call record.
type CallAnalytics struct {
	CallID         string         `json:"call_id"`
	AssistantID    string         `json:"assistant_id"`
	StartTime      *time.Time     `json:"start_time"`
	EndTime        *time.Time     `json:"end_time"`
	Duration       *float64       `json:"duration"`
	Transcript     string         `json:"transcript,omitempty"`
	Summary        string         `json:"summary,omitempty"`
	SuccessMetrics *bool          `json:"success_metrics"`
	StructuredData map[string]any `json:"structured_data,omitempty"`
}

type CallsList struct {
	Data     []CallAnalytics `json:"data"`
	NextPage *string         `json:"next_page"`
	Total    int             `json:"total"`
}

type AssistantMetrics struct {
	AssistantID     string            `json:"assistant_id"`
	TotalCalls      *int              `json:"total_calls"`
	TotalMinutes    *float64          `json:"total_minutes"`
	AverageDuration *float64          `json:"average_duration"`
	SuccessRate     *float64          `json:"success_rate"`
	Calls           []json.RawMessage `json:"calls"`
}

func (s *Service) handleStartCall(w http.ResponseWriter, r *http.Request) {
	var req StartCallRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	phone := strings.TrimSpace(req.PhoneNumberToCall)
	if phone == "" {
		writeError(w, r, s.log, apperr.Validation("phone_number_to_call", "phone_number_to_call is required"))
		return
	}

	assistantID := strings.TrimSpace(req.AssistantID)
	if assistantID == "" {
		assistantID = strings.TrimSpace(s.cfg.Vapi.DefaultAssistantID)
	}
	if assistantID == "" {
		s.log.ErrorContext(r.Context(), "Assistant ID missing from request and config")
		writeError(w, r, s.log, apperr.BadInput("Missing Assistant ID"))
		return
	}

	phoneNumberID := strings.TrimSpace(s.cfg.Vapi.PhoneNumberID)
	if phoneNumberID == "" {
		writeError(w, r, s.log, apperr.ConfigMissing("VAPI_PHONE_NUMBER_ID"))
		return
	}

	call, err := s.upstream.StartPhoneCall(r.Context(), vapi.PhoneCallRequest{
		PhoneNumberID:      phoneNumberID,
		AssistantID:        assistantID,
		Customer:           vapi.Customer{Number: phone},
		AssistantOverrides: variableOverrides(req),
	})
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}

	s.log.InfoContext(r.Context(), "Started phone call", "call_id", call.ID, "assistant_id", assistantID)
	writeJSON(w, r, s.log, http.StatusCreated, StartCallResponse{
		Success: true,
		Message: "Vapi call initiated successfully.",
		CallID:  call.ID,
		Status:  call.Status,
	})
}

// variableOverrides collects template variables; nil when there are none.
func variableOverrides(req StartCallRequest) *vapi.AssistantOverrides {
	values := make(map[string]any, len(req.OtherVariables)+2)
	if name := strings.TrimSpace(req.CustomerName); name != "" {
		values["customer_name"] = name
	}
	if task := strings.TrimSpace(req.TaskInfo); task != "" {
		values["task_info"] = task
	}
	maps.Copy(values, req.OtherVariables)

	if len(values) == 0 {
		return nil
	}
	return &vapi.AssistantOverrides{VariableValues: values}
}

func (s *Service) handleListCalls(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", defaultCallLimit, 1, maxCallLimit)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}

	query := r.URL.Query()
	page, err := s.upstream.ListCalls(r.Context(), vapi.ListCallsParams{
		AssistantID: strings.TrimSpace(query.Get("assistant_id")),
		Limit:       limit,
		Page:        strings.TrimSpace(query.Get("page")),
	})
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}

	now := s.now().UTC()
	list := CallsList{Data: make([]CallAnalytics, 0, len(page.Calls)), Total: page.Total}
	for _, call := range page.Calls {
		analytics := newCallAnalytics(call)
		if analytics.StartTime == nil {
			analytics.StartTime = &now
		}
		list.Data = append(list.Data, analytics)
	}
	if page.NextPage != "" {
		next := page.NextPage
		list.NextPage = &next
	}

	writeJSON(w, r, s.log, http.StatusOK, list)
}

func (s *Service) handleGetCall(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("call_id")

	call, err := s.upstream.GetCall(r.Context(), id)
	if err != nil {
		writeError(w, r, s.log, upstreamNotFound(err, "Call not found", map[string]any{"call_id": id}))
		return
	}
	if call.ID == "" {
		writeError(w, r, s.log, apperr.NotFound("Call not found", map[string]any{"call_id": id}))
		return
	}

	writeJSON(w, r, s.log, http.StatusOK, newCallAnalytics(call))
}

func (s *Service) handleDeleteCall(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("call_id")

	result, err := s.upstream.DeleteCall(r.Context(), id)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}

	s.log.InfoContext(r.Context(), "Deleted call", "call_id", id)
	writeJSON(w, r, s.log, http.StatusOK, deleteResponse{
		Success: true,
		Message: "Call " + id + " deleted successfully",
		Data:    rawOrNull(result),
	})
}

func (s *Service) handleAssistantMetrics(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("assistant_id")

	analytics, err := s.upstream.Analytics(r.Context(), id)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	if analytics.AssistantID == "" {
		writeError(w, r, s.log, apperr.NotFound("No metrics found for this assistant", map[string]any{"assistant_id": id}))
		return
	}

	calls := analytics.Calls
	if calls == nil {
		calls = []json.RawMessage{}
	}
	writeJSON(w, r, s.log, http.StatusOK, AssistantMetrics{
		AssistantID:     analytics.AssistantID,
		TotalCalls:      analytics.TotalCalls,
		TotalMinutes:    analytics.TotalMinutes,
		AverageDuration: analytics.AverageDuration,
		SuccessRate:     analytics.SuccessRate,
		Calls:           calls,
	})
}

func newCallAnalytics(call vapi.Call) CallAnalytics {
	analytics := CallAnalytics{
		CallID:      call.ID,
		AssistantID: call.AssistantID,
		StartTime:   parseTime(call.Started()),
		EndTime:     parseTime(call.Ended()),
		Duration:    call.Duration,
		Transcript:  call.Transcript,
	}
	if call.Analysis != nil {
		analytics.Summary = call.Analysis.Summary
		analytics.SuccessMetrics = call.Analysis.Success
		analytics.StructuredData = call.Analysis.StructuredData
	}
	return analytics
}

func parseTime(value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	parsed, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return nil
	}
	return &parsed
}
