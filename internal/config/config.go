package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
	"github.com/docker/go-units"

	"github.com/escuta-ai/escuta/backend/internal/store"
)

// Config aggregates every section of the service configuration.
type Config struct {
	Server    ServerConfig
	Store     StoreConfig
	Trial     TrialConfig
	AI        AIConfig
	Persona   PersonaConfig
	Sentiment SentimentConfig
	Log       LogConfig
}

// Load reads the configuration from environment variables.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	storeCfg, err := loadStoreConfig()
	if err != nil {
		return nil, err
	}

	trial, err := loadTrialConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	sentimentLLM, err := parseBoolEnv("SENTIMENT_LLM_ENABLED", false)
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:    server,
		Store:     storeCfg,
		Trial:     trial,
		AI:        ai,
		Persona:   PersonaConfig{File: strings.TrimSpace(os.Getenv("PERSONA_FILE"))},
		Sentiment: SentimentConfig{LLMEnabled: sentimentLLM},
		Log:       LogConfig{Level: getEnvOrDefault("LOG_LEVEL", "info")},
	}, nil
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr           string
	AllowedOrigins []string
	MaxBodyBytes   int64
}

func loadServerConfig() (ServerConfig, error) {
	addr, err := parseAddr(os.Getenv("PORT"))
	if err != nil {
		return ServerConfig{}, err
	}

	rawSize := getEnvOrDefault("MAX_BODY_SIZE", "64KiB")
	maxBody, err := units.RAMInBytes(rawSize)
	if err != nil {
		return ServerConfig{}, fmt.Errorf("invalid MAX_BODY_SIZE value %q: %w", rawSize, err)
	}
	if maxBody <= 0 {
		return ServerConfig{}, fmt.Errorf("invalid MAX_BODY_SIZE value %q: must be positive", rawSize)
	}

	return ServerConfig{
		Addr:           addr,
		AllowedOrigins: splitList(getEnvOrDefault("CORS_ALLOWED_ORIGINS", "*")),
		MaxBodyBytes:   maxBody,
	}, nil
}

// parseAddr accepts a bare port ("8080") or a host:port pair.
func parseAddr(raw string) (string, error) {
	port := strings.TrimSpace(raw)
	if port == "" {
		port = "5000"
	}

	if strings.Contains(port, ":") {
		return port, nil
	}

	if strings.Contains(port, " ") {
		return "", fmt.Errorf("invalid PORT value: %q", port)
	}

	return ":" + port, nil
}

// StoreConfig selects the persistence driver.
type StoreConfig struct {
	Driver string
	Path   string
}

func loadStoreConfig() (StoreConfig, error) {
	driver := strings.ToLower(getEnvOrDefault("STORE_DRIVER", store.DriverMemory))
	cfg := StoreConfig{Driver: driver}

	switch driver {
	case store.DriverMemory:
	case store.DriverSQLite:
		cfg.Path = getEnvOrDefault("STORE_PATH", "data/escuta.db")
	case store.DriverBadger:
		cfg.Path = getEnvOrDefault("STORE_PATH", "data/badger")
	default:
		return StoreConfig{}, fmt.Errorf("invalid STORE_DRIVER value %q: want memory, sqlite or badger", driver)
	}
	return cfg, nil
}

// TrialConfig controls the free-trial budget.
type TrialConfig struct {
	Duration        time.Duration
	SweepInterval   time.Duration
	MaxMessageChars int
}

// Seconds returns the trial budget in whole seconds.
func (c TrialConfig) Seconds() int {
	return int(c.Duration / time.Second)
}

func loadTrialConfig() (TrialConfig, error) {
	duration, err := parseDurationEnv("TRIAL_DURATION", 5*time.Minute)
	if err != nil {
		return TrialConfig{}, err
	}
	if duration < time.Second {
		return TrialConfig{}, fmt.Errorf("invalid TRIAL_DURATION value %s: must be at least 1s", duration)
	}

	sweep, err := parseDurationEnv("TRIAL_SWEEP_INTERVAL", 30*time.Second)
	if err != nil {
		return TrialConfig{}, err
	}
	if sweep <= 0 {
		return TrialConfig{}, fmt.Errorf("invalid TRIAL_SWEEP_INTERVAL value %s: must be positive", sweep)
	}

	maxChars := 2000
	if override, err := parseOptionalIntEnv("CHAT_MAX_MESSAGE_CHARS"); err != nil {
		return TrialConfig{}, err
	} else if override != nil && *override > 0 {
		maxChars = *override
	}

	return TrialConfig{Duration: duration, SweepInterval: sweep, MaxMessageChars: maxChars}, nil
}

// Completion providers accepted by AI_PROVIDER.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
	ProviderArk       = "ark"
)

var defaultModels = map[string]string{
	ProviderOpenAI:    "gpt-4o",
	ProviderAnthropic: "claude-3-5-sonnet-latest",
	ProviderGemini:    "gemini-2.0-flash",
}

// AIConfig describes the completion provider.
type AIConfig struct {
	Provider     string
	APIKey       string
	AccessKey    string
	SecretKey    string
	Model        string
	BaseURL      string
	Region       string
	Temperature  *float64
	MaxTokens    *int
	HistoryLimit int
	Timeout      time.Duration
}

// Enabled reports whether enough credentials were supplied to call the model.
func (c AIConfig) Enabled() bool {
	if c.Model == "" {
		return false
	}
	if c.APIKey != "" {
		return true
	}
	return c.Provider == ProviderArk && c.AccessKey != "" && c.SecretKey != ""
}

// NewChatModel builds the Ark chat model used by the ark provider.
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("ark credentials or model missing: set ARK_API_KEY + ARK_MODEL or an AK/SK pair")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var maxTokens *int
	if c.MaxTokens != nil {
		val := *c.MaxTokens
		maxTokens = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   maxTokens,
		Temperature: temperature,
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadAIConfig() (AIConfig, error) {
	provider := strings.ToLower(getEnvOrDefault("AI_PROVIDER", ProviderOpenAI))

	cfg := AIConfig{Provider: provider}
	switch provider {
	case ProviderOpenAI:
		cfg.APIKey = strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
		cfg.BaseURL = strings.TrimSpace(os.Getenv("OPENAI_BASE_URL"))
		cfg.Model = getEnvOrDefault("OPENAI_MODEL", defaultModels[provider])
	case ProviderAnthropic:
		cfg.APIKey = strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY"))
		cfg.BaseURL = strings.TrimSpace(os.Getenv("ANTHROPIC_BASE_URL"))
		cfg.Model = getEnvOrDefault("ANTHROPIC_MODEL", defaultModels[provider])
	case ProviderGemini:
		cfg.APIKey = strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))
		cfg.BaseURL = strings.TrimSpace(os.Getenv("GEMINI_BASE_URL"))
		cfg.Model = getEnvOrDefault("GEMINI_MODEL", defaultModels[provider])
	case ProviderArk:
		cfg.APIKey = strings.TrimSpace(os.Getenv("ARK_API_KEY"))
		cfg.AccessKey = strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY"))
		cfg.SecretKey = strings.TrimSpace(os.Getenv("ARK_SECRET_KEY"))
		cfg.Model = strings.TrimSpace(os.Getenv("ARK_MODEL"))
		cfg.BaseURL = getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3")
		cfg.Region = getEnvOrDefault("ARK_REGION", "cn-beijing")
	default:
		return AIConfig{}, fmt.Errorf("invalid AI_PROVIDER value %q: want openai, anthropic, gemini or ark", provider)
	}

	// Generic overrides win over provider-specific variables.
	if key := strings.TrimSpace(os.Getenv("AI_API_KEY")); key != "" {
		cfg.APIKey = key
	}
	if m := strings.TrimSpace(os.Getenv("AI_MODEL")); m != "" {
		cfg.Model = m
	}
	if u := strings.TrimSpace(os.Getenv("AI_BASE_URL")); u != "" {
		cfg.BaseURL = u
	}

	temperature, err := parseOptionalFloatEnv("AI_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}
	if temperature == nil {
		def := 0.7
		temperature = &def
	}
	cfg.Temperature = temperature

	maxTokens, err := parseOptionalIntEnv("AI_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}
	if maxTokens == nil {
		def := 200
		maxTokens = &def
	}
	cfg.MaxTokens = maxTokens

	if limit, err := parseOptionalIntEnv("AI_HISTORY_LIMIT"); err != nil {
		return AIConfig{}, err
	} else if limit != nil && *limit > 0 {
		cfg.HistoryLimit = *limit
	}

	cfg.Timeout, err = parseDurationEnv("AI_TIMEOUT", 30*time.Second)
	if err != nil {
		return AIConfig{}, err
	}

	return cfg, nil
}

// PersonaConfig points at an optional YAML persona file.
type PersonaConfig struct {
	File string
}

// SentimentConfig toggles the model-backed sentiment classifier.
type SentimentConfig struct {
	LLMEnabled bool
}

// LogConfig sets the zap log level.
type LogConfig struct {
	Level string
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
