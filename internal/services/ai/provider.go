package ai

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"
)

// Message roles understood by every oracle
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage represents a message in a chat conversation
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Oracle turns an ordered conversation into one text payload.
// Implementations are expected to bound each call with a timeout.
type Oracle interface {
	Complete(ctx context.Context, messages []ChatMessage) (string, error)
}

// OracleFunc adapts a function to the Oracle interface
type OracleFunc func(ctx context.Context, messages []ChatMessage) (string, error)

// Complete calls f
func (f OracleFunc) Complete(ctx context.Context, messages []ChatMessage) (string, error) {
	return f(ctx, messages)
}

// ProviderConfig carries the settings a provider factory may use
type ProviderConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	MaxRetries int
	Logger     *zap.Logger
	DebugMode  bool
}

// ProviderFactory creates an oracle from configuration
type ProviderFactory func(cfg ProviderConfig) (Oracle, error)

// ProviderRegistry stores available oracle providers
type ProviderRegistry struct {
	providers map[string]ProviderFactory
}

// NewProviderRegistry creates a registry with the built-in providers registered
func NewProviderRegistry() *ProviderRegistry {
	r := &ProviderRegistry{providers: make(map[string]ProviderFactory)}
	RegisterOpenAI(r)
	return r
}

// Register registers a provider factory
func (r *ProviderRegistry) Register(name string, factory ProviderFactory) {
	r.providers[name] = factory
}

// Create builds the named provider
func (r *ProviderRegistry) Create(name string, cfg ProviderConfig) (Oracle, error) {
	factory, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("unknown AI provider: %s (available: %v)", name, r.Names())
	}
	return factory(cfg)
}

// Names lists registered providers in sorted order
func (r *ProviderRegistry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
