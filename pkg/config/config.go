package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
)

const (
	envConfigPath           = "DATEMATE_CONFIG"
	envVapiAPIKey           = "VAPI_API_KEY"
	envVapiAPIURL           = "VAPI_API_URL"
	envDefaultAssistantID   = "DEFAULT_VAPI_ASSISTANT_ID"
	envPhoneNumberID        = "VAPI_PHONE_NUMBER_ID"
	envDefaultLLMProvider   = "DEFAULT_LLM_PROVIDER"
	envDefaultLLMModel      = "DEFAULT_LLM_MODEL"
	envDefaultVoice         = "DEFAULT_VOICE_PROVIDER"
	envWebhookSecret        = "VAPI_WEBHOOK_SECRET"
	envPublicBaseURL        = "YOUR_BACKEND_BASE_URL"
	envOpenAIAPIKey         = "OPENAI_API_KEY"
	envTelegramBotToken     = "TELEGRAM_BOT_TOKEN"
	envTelegramAlertChats   = "TELEGRAM_ALERT_CHAT_IDS"
	envServerPort           = "DATEMATE_PORT"
	defaultVapiAPIURL       = "https://api.vapi.ai"
	defaultLLMProvider      = "openai"
	defaultLLMModel         = "gpt-3.5-turbo"
	defaultVoiceProvider    = "elevenlabs"
	defaultPublicBaseURL    = "http://localhost:8000"
	defaultRequestTimeout   = 20
	defaultEvaluatorModel   = "gpt-4o-mini"
	defaultAllowedOrigin    = "http://localhost:8080"
	defaultProjectName      = "DateMate Vapi Backend"
	defaultProjectVersion   = "0.3.0"
	defaultEvaluatorTimeout = 30
)

// Config is the root runtime configuration loaded from config.json and the environment.
type Config struct {
	Project ProjectConfig `json:"project"`
	Vapi    VapiConfig    `json:"vapi"`
	Persona PersonaConfig `json:"persona"`
	Webhook WebhookConfig `json:"webhook"`
	Server  ServerConfig  `json:"server"`
	Tools   ToolsConfig   `json:"tools,omitempty"`
	Alerts  AlertsConfig  `json:"alerts,omitempty"`
	Logging LoggingConfig `json:"logging,omitempty"`
}

// ProjectConfig names the service in the welcome route and logs.
type ProjectConfig struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// LoggingConfig controls structured log output format and verbosity.
type LoggingConfig struct {
	Format    string `json:"format,omitempty"`
	Level     string `json:"level,omitempty"`
	AddSource bool   `json:"add_source,omitempty"`
}

// VapiConfig configures the upstream voice platform client.
type VapiConfig struct {
	APIKey                string  `json:"api_key"`
	BaseURL               string  `json:"base_url"`
	DefaultAssistantID    string  `json:"default_assistant_id"`
	PhoneNumberID         string  `json:"phone_number_id"`
	RequestTimeoutSeconds int     `json:"request_timeout_seconds"`
	RequestsPerSecond     float64 `json:"requests_per_second"`
	Burst                 int     `json:"burst"`
}

// PersonaConfig holds defaults used when creating persona assistants.
type PersonaConfig struct {
	LLMProvider   string `json:"llm_provider"`
	LLMModel      string `json:"llm_model"`
	VoiceProvider string `json:"voice_provider"`
}

// WebhookConfig configures the inbound tool-call webhook.
type WebhookConfig struct {
	Secret                string `json:"secret"`
	HandlerTimeoutSeconds int    `json:"handler_timeout_seconds"`
	ParallelToolCalls     int    `json:"parallel_tool_calls"`
}

// ServerConfig configures the HTTP bind settings.
type ServerConfig struct {
	Host           string   `json:"host"`
	Port           int      `json:"port"`
	PublicBaseURL  string   `json:"public_base_url"`
	AllowedOrigins []string `json:"allowed_origins"`
}

// ToolsConfig groups optional tool-handler dependencies.
type ToolsConfig struct {
	Evaluator EvaluatorConfig `json:"evaluator"`
}

// EvaluatorConfig configures the LLM used by the conversation evaluation tool.
type EvaluatorConfig struct {
	APIKey                string `json:"api_key"`
	BaseURL               string `json:"base_url"`
	Model                 string `json:"model"`
	RequestTimeoutSeconds int    `json:"request_timeout_seconds"`
}

// AlertsConfig configures operator notifications for tool handler faults.
type AlertsConfig struct {
	Telegram TelegramAlertConfig `json:"telegram"`
}

// TelegramAlertConfig configures Telegram fault alerts.
type TelegramAlertConfig struct {
	Enabled bool     `json:"enabled"`
	Token   string   `json:"token"`
	ChatIDs []string `json:"chat_ids"`
}

// WebhookSecretConfigured reports whether webhook signature verification is enabled.
func (c *Config) WebhookSecretConfigured() bool {
	return c != nil && c.Webhook.Secret != ""
}

// LoadConfig resolves config.json when present, unmarshals it, and applies environment overrides.
func LoadConfig() (*Config, error) {
	configPath, err := findConfigPath()
	if err != nil {
		return nil, err
	}

	var cfg Config
	if configPath != "" {
		content, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := json.Unmarshal(content, &cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects settings that cannot produce a working server.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is required")
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d is out of range", c.Server.Port)
	}
	if c.Vapi.RequestsPerSecond < 0 {
		return errors.New("vapi.requests_per_second must not be negative")
	}
	if c.Webhook.HandlerTimeoutSeconds < 0 {
		return errors.New("webhook.handler_timeout_seconds must not be negative")
	}
	if c.Alerts.Telegram.Enabled {
		if strings.TrimSpace(c.Alerts.Telegram.Token) == "" {
			return errors.New("alerts.telegram.token is required when telegram alerts are enabled")
		}
		if len(c.Alerts.Telegram.ChatIDs) == 0 {
			return errors.New("alerts.telegram.chat_ids is required when telegram alerts are enabled")
		}
	}

	return nil
}

// applyEnvOverrides injects selected env-driven settings on top of file config.
func applyEnvOverrides(cfg *Config) {
	if cfg == nil {
		return
	}

	overrideString(&cfg.Vapi.APIKey, envVapiAPIKey)
	overrideString(&cfg.Vapi.BaseURL, envVapiAPIURL)
	overrideString(&cfg.Vapi.DefaultAssistantID, envDefaultAssistantID)
	overrideString(&cfg.Vapi.PhoneNumberID, envPhoneNumberID)
	overrideString(&cfg.Persona.LLMProvider, envDefaultLLMProvider)
	overrideString(&cfg.Persona.LLMModel, envDefaultLLMModel)
	overrideString(&cfg.Persona.VoiceProvider, envDefaultVoice)
	overrideRaw(&cfg.Webhook.Secret, envWebhookSecret)
	overrideString(&cfg.Server.PublicBaseURL, envPublicBaseURL)
	overrideString(&cfg.Tools.Evaluator.APIKey, envOpenAIAPIKey)
	overrideString(&cfg.Alerts.Telegram.Token, envTelegramBotToken)

	if rawChats := strings.TrimSpace(os.Getenv(envTelegramAlertChats)); rawChats != "" {
		cfg.Alerts.Telegram.ChatIDs = parseCSV(rawChats)
	}

	if rawPort := strings.TrimSpace(os.Getenv(envServerPort)); rawPort != "" {
		if port, err := strconv.Atoi(rawPort); err == nil {
			cfg.Server.Port = port
		}
	}
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.Project.Name) == "" {
		cfg.Project.Name = defaultProjectName
	}
	if strings.TrimSpace(cfg.Project.Version) == "" {
		cfg.Project.Version = defaultProjectVersion
	}
	if strings.TrimSpace(cfg.Vapi.BaseURL) == "" {
		cfg.Vapi.BaseURL = defaultVapiAPIURL
	}
	if cfg.Vapi.RequestTimeoutSeconds <= 0 {
		cfg.Vapi.RequestTimeoutSeconds = defaultRequestTimeout
	}
	if strings.TrimSpace(cfg.Persona.LLMProvider) == "" {
		cfg.Persona.LLMProvider = defaultLLMProvider
	}
	if strings.TrimSpace(cfg.Persona.LLMModel) == "" {
		cfg.Persona.LLMModel = defaultLLMModel
	}
	if strings.TrimSpace(cfg.Persona.VoiceProvider) == "" {
		cfg.Persona.VoiceProvider = defaultVoiceProvider
	}
	if strings.TrimSpace(cfg.Server.PublicBaseURL) == "" {
		cfg.Server.PublicBaseURL = defaultPublicBaseURL
	}
	if len(cfg.Server.AllowedOrigins) == 0 {
		cfg.Server.AllowedOrigins = []string{defaultAllowedOrigin}
	}
	if strings.TrimSpace(cfg.Tools.Evaluator.Model) == "" {
		cfg.Tools.Evaluator.Model = defaultEvaluatorModel
	}
	if cfg.Tools.Evaluator.RequestTimeoutSeconds <= 0 {
		cfg.Tools.Evaluator.RequestTimeoutSeconds = defaultEvaluatorTimeout
	}
}

func overrideString(target *string, envName string) {
	if value := strings.TrimSpace(os.Getenv(envName)); value != "" {
		*target = value
	}
}

// overrideRaw keeps the env value untouched; secrets are compared byte for byte.
func overrideRaw(target *string, envName string) {
	if value := os.Getenv(envName); value != "" {
		*target = value
	}
}

// parseCSV splits comma-separated values and returns a trimmed compact slice.
func parseCSV(input string) []string {
	parts := strings.Split(input, ",")
	clean := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		clean = append(clean, trimmed)
	}

	return slices.Clip(clean)
}

// findConfigPath resolves the active config file location.
//
// Precedence is DATEMATE_CONFIG first, then cwd-local fallback paths. An empty
// path with a nil error means no file exists and defaults plus env apply.
func findConfigPath() (string, error) {
	if value := strings.TrimSpace(os.Getenv(envConfigPath)); value != "" {
		if info, err := os.Stat(value); err == nil && !info.IsDir() {
			return value, nil
		}
		return "", fmt.Errorf("%s does not point to a file: %s", envConfigPath, value)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get current working directory: %w", err)
	}

	candidates := []string{
		filepath.Join(cwd, "config.json"),
		filepath.Join(cwd, "config", "config.json"),
	}

	for _, candidate := range candidates {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}

	return "", nil
}
