package gateway

import "net/http"

// Handler returns the full HTTP surface wrapped in middleware.
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("POST /api/create-agent", s.handleCreateAgent)
	mux.HandleFunc("POST /api/start-call", s.handleStartCall)

	mux.HandleFunc("GET /api/assistants", s.handleListAssistants)
	mux.HandleFunc("GET /api/assistants/{$}", s.handleListAssistants)
	mux.HandleFunc("GET /api/assistants/{assistant_id}", s.handleGetAssistant)
	mux.HandleFunc("PUT /api/assistants/{assistant_id}", s.handleUpdateAssistant)
	mux.HandleFunc("DELETE /api/assistants/{assistant_id}", s.handleDeleteAssistant)

	mux.HandleFunc("GET /api/calls", s.handleListCalls)
	mux.HandleFunc("GET /api/calls/{$}", s.handleListCalls)
	mux.HandleFunc("GET /api/calls/{call_id}", s.handleGetCall)
	mux.HandleFunc("DELETE /api/calls/{call_id}", s.handleDeleteCall)
	mux.HandleFunc("GET /api/calls/assistant/{assistant_id}/metrics", s.handleAssistantMetrics)

	if s.webhook != nil {
		mux.Handle("POST /api/vapi-webhook", s.webhook)
	}

	return s.requestID(s.accessLog(s.recoverPanic(s.cors(mux))))
}
