// Package gateway serves the REST surface and the tool-call webhook.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"datemate/pkg/alert"
	"datemate/pkg/config"
	"datemate/pkg/signature"
	"datemate/pkg/tools"
	"datemate/pkg/vapi"
	"datemate/pkg/webhook"
)

const (
	defaultHost         = "0.0.0.0"
	defaultPort         = 8000
	healthProbeInterval = 30 * time.Second
)

// Upstream is the subset of the platform client used by the REST handlers.
type Upstream interface {
	Configured() bool
	Health(ctx context.Context) error
	ListAssistants(ctx context.Context, limit int, pageToken string) (vapi.AssistantPage, error)
	GetAssistant(ctx context.Context, id string) (vapi.Assistant, error)
	CreateAssistant(ctx context.Context, assistant vapi.Assistant) (vapi.Assistant, error)
	UpdateAssistant(ctx context.Context, id string, update vapi.AssistantUpdate) (vapi.Assistant, error)
	DeleteAssistant(ctx context.Context, id string) (json.RawMessage, error)
	ListCalls(ctx context.Context, params vapi.ListCallsParams) (vapi.CallPage, error)
	GetCall(ctx context.Context, id string) (vapi.Call, error)
	DeleteCall(ctx context.Context, id string) (json.RawMessage, error)
	Analytics(ctx context.Context, assistantID string) (vapi.Analytics, error)
	StartPhoneCall(ctx context.Context, req vapi.PhoneCallRequest) (vapi.Call, error)
}

type Service struct {
	cfg      *config.Config
	log      *slog.Logger
	upstream Upstream
	webhook  http.Handler
	now      func() time.Time

	mu               sync.RWMutex
	startedAt        time.Time
	upstreamLastOKAt time.Time
	upstreamLastErr  string
}

type statusResponse struct {
	Status           string `json:"status"`
	UptimeSeconds    int64  `json:"uptime_seconds"`
	UpstreamLastOKAt string `json:"upstream_last_ok_at,omitempty"`
	UpstreamLastErr  string `json:"upstream_last_error,omitempty"`
}

// NewService wires the platform client and the webhook stack from cfg.
func NewService(cfg *config.Config, log *slog.Logger) (*Service, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if log == nil {
		log = slog.Default()
	}

	webhookHandler, err := newWebhookHandler(cfg, log)
	if err != nil {
		return nil, err
	}

	return newService(cfg, vapi.New(cfg.Vapi, log), webhookHandler, log), nil
}

func newService(cfg *config.Config, upstream Upstream, webhookHandler http.Handler, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		cfg:      cfg,
		log:      log.With("component", "gateway.service"),
		upstream: upstream,
		webhook:  webhookHandler,
		now:      time.Now,
	}
}

// newWebhookHandler builds registry, dispatcher and signature gate.
func newWebhookHandler(cfg *config.Config, log *slog.Logger) (http.Handler, error) {
	deps := tools.DefaultDeps(log)
	if strings.TrimSpace(cfg.Tools.Evaluator.APIKey) != "" {
		evaluator, err := tools.NewOpenAIEvaluator(cfg.Tools.Evaluator, log)
		if err != nil {
			return nil, fmt.Errorf("initialize evaluator: %w", err)
		}
		deps.Evaluator = evaluator
	}

	registry, err := tools.DefaultRegistry(deps)
	if err != nil {
		return nil, fmt.Errorf("build tool registry: %w", err)
	}

	notifier, err := alert.FromConfig(cfg.Alerts, log)
	if err != nil {
		return nil, fmt.Errorf("initialize alerts: %w", err)
	}

	dispatcher := webhook.NewDispatcher(registry, log,
		webhook.WithHandlerTimeout(time.Duration(cfg.Webhook.HandlerTimeoutSeconds)*time.Second),
		webhook.WithParallelism(cfg.Webhook.ParallelToolCalls),
		webhook.WithNotifier(notifier),
	)
	verifier := signature.NewVerifier(cfg.Webhook.Secret, log)

	log.With("component", "gateway.service").Info("Tool registry ready",
		"tools", strings.Join(registry.Names(), ","),
		"verify_webhooks", verifier.Enabled(),
	)
	return webhook.NewHandler(dispatcher, log).Secured(verifier), nil
}

// Run serves HTTP until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	s.startedAt = s.now().UTC()
	s.mu.Unlock()

	if !s.upstream.Configured() {
		s.log.Error("VAPI_API_KEY is not set; platform routes will fail until it is configured")
	} else if err := s.checkUpstreamHealth(ctx); err != nil {
		s.log.Warn("Initial upstream health check failed", "error", err)
	}

	serverErrors := make(chan error, 1)
	go s.runServer(ctx, serverErrors)

	ticker := time.NewTicker(healthProbeInterval)
	defer ticker.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if s.upstream.Configured() {
					_ = s.checkUpstreamHealth(ctx)
				}
			}
		}
	}()

	select {
	case <-ctx.Done():
		s.log.Info("Shutting down gateway")
		return nil
	case err := <-serverErrors:
		return err
	}
}

func (s *Service) address() string {
	host := strings.TrimSpace(s.cfg.Server.Host)
	if host == "" {
		host = defaultHost
	}

	port := s.cfg.Server.Port
	if port <= 0 {
		port = defaultPort
	}

	return host + ":" + strconv.Itoa(port)
}

func (s *Service) runServer(ctx context.Context, errCh chan<- error) {
	addr := s.address()
	server := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.log.Info("Gateway server started",
		"address", addr,
		"project", s.cfg.Project.Name,
		"version", s.cfg.Project.Version,
	)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		errCh <- fmt.Errorf("start gateway server: %w", err)
	}
}

func (s *Service) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, s.log, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Welcome to %s v%s", s.cfg.Project.Name, s.cfg.Project.Version),
	})
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, s.log, http.StatusOK, s.currentStatus("ok"))
}

func (s *Service) handleReady(w http.ResponseWriter, r *http.Request) {
	statusCode := http.StatusOK
	status := "ready"
	if !s.isReady() {
		statusCode = http.StatusServiceUnavailable
		status = "not_ready"
	}

	writeJSON(w, r, s.log, statusCode, s.currentStatus(status))
}

func (s *Service) currentStatus(status string) statusResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()

	uptime := int64(0)
	if !s.startedAt.IsZero() {
		uptime = int64(s.now().Sub(s.startedAt).Seconds())
	}

	lastOK := ""
	if !s.upstreamLastOKAt.IsZero() {
		lastOK = s.upstreamLastOKAt.Format(time.RFC3339)
	}

	return statusResponse{
		Status:           status,
		UptimeSeconds:    uptime,
		UpstreamLastOKAt: lastOK,
		UpstreamLastErr:  s.upstreamLastErr,
	}
}

func (s *Service) isReady() bool {
	if !s.upstream.Configured() {
		return false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return !s.upstreamLastOKAt.IsZero() && s.upstreamLastErr == ""
}

func (s *Service) checkUpstreamHealth(ctx context.Context) error {
	if err := s.upstream.Health(ctx); err != nil {
		s.mu.Lock()
		s.upstreamLastErr = err.Error()
		s.mu.Unlock()
		return fmt.Errorf("upstream health check failed: %w", err)
	}

	s.mu.Lock()
	s.upstreamLastErr = ""
	s.upstreamLastOKAt = s.now().UTC()
	s.mu.Unlock()

	return nil
}
