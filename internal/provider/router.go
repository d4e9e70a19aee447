package provider

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// ErrNoProvider is returned when the router has nothing to call.
var ErrNoProvider = errors.New("no provider available")

// Router sends each completion to the default provider and walks the
// fallback chain on error.
type Router struct {
	mu        sync.RWMutex
	providers map[string]Provider
	primary   string
	fallbacks []string
	logger    *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		providers: make(map[string]Provider),
		logger:    logger,
	}
}

// Register adds p. The first registered provider is the default until
// SetDefault says otherwise.
func (r *Router) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.ID()] = p
	if r.primary == "" {
		r.primary = p.ID()
	}
	r.logger.Info("registered provider", zap.String("id", p.ID()), zap.String("name", p.Name()))
}

func (r *Router) SetDefault(id string) {
	r.mu.Lock()
	r.primary = id
	r.mu.Unlock()
}

func (r *Router) SetFallbacks(ids []string) {
	r.mu.Lock()
	r.fallbacks = append([]string(nil), ids...)
	r.mu.Unlock()
}

// chain returns the providers to try in order. Unknown ids and repeats
// are skipped.
func (r *Router) chain() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]bool, len(r.fallbacks)+1)
	var out []Provider
	for _, id := range append([]string{r.primary}, r.fallbacks...) {
		p, ok := r.providers[id]
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, p)
	}
	return out
}

// Complete returns the first successful response along the chain. The
// lock is not held while providers are called.
func (r *Router) Complete(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	chain := r.chain()
	if len(chain) == 0 {
		return nil, ErrNoProvider
	}

	var errs []error
	for i, p := range chain {
		resp, err := p.Chat(ctx, req)
		if err == nil {
			if i > 0 {
				r.logger.Info("fallback provider answered", zap.String("provider", p.ID()))
			}
			return resp, nil
		}
		r.logger.Warn("provider failed",
			zap.String("provider", p.ID()),
			zap.Int("status", statusOf(err)),
			zap.Error(err))
		errs = append(errs, fmt.Errorf("%s: %w", p.ID(), err))
		if ctx.Err() != nil {
			break
		}
	}
	return nil, fmt.Errorf("all providers failed: %w", errors.Join(errs...))
}

// New builds a provider from its config.
func New(ctx context.Context, cfg ProviderConfig, logger *zap.Logger) (Provider, error) {
	switch cfg.Type {
	case "openai", "":
		return NewOpenAIProvider(cfg, logger), nil
	case "anthropic":
		return NewAnthropicProvider(cfg, logger), nil
	case "gemini", "vertex":
		return NewGeminiProvider(ctx, cfg, logger)
	}
	return nil, fmt.Errorf("unknown provider type %q", cfg.Type)
}
