package skill

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// InstructFunc renders the natural-language task handed to the automation
// agent in session mode.
type InstructFunc func(cfg *Config, p Params) string

// FormatFunc renders a result. Returned errors and panics are turned into
// a degraded notification by the handler.
type FormatFunc func(cfg *Config, r Result) (Formatted, error)

// HandlerOptions customise an AutomationHandler. Zero values fall back to
// the generic instruction and the default formatter.
type HandlerOptions struct {
	// Label prefixes degraded titles, e.g. "💼 Job Search". Defaults to the
	// skill name.
	Label    string
	Instruct InstructFunc
	Format   FormatFunc
}

// AutomationHandler runs a skill through the automation provider and
// renders its results.
type AutomationHandler struct {
	cfg    *Config
	runner Runner
	opts   HandlerOptions
}

// NewAutomationHandler binds a config to a runner.
func NewAutomationHandler(cfg *Config, runner Runner, opts HandlerOptions) *AutomationHandler {
	if opts.Label == "" {
		opts.Label = cfg.Name
	}
	if opts.Instruct == nil {
		opts.Instruct = GenericInstruction
	}
	return &AutomationHandler{cfg: cfg, runner: runner, opts: opts}
}

func (h *AutomationHandler) Config() *Config { return h.cfg }

// Execute dispatches on the skill's category: action skills run as a task
// in an authenticated session, everything else is a direct call.
func (h *AutomationHandler) Execute(ctx context.Context, params Params, creds Credentials) Result {
	if h.runner == nil {
		return Failed(h.cfg, h.cfg.ID, "no runner configured for %s", h.cfg.Name)
	}
	if h.cfg.Category.Mode() == ModeSession {
		return h.runner.RunSession(ctx, h.cfg, h.opts.Instruct(h.cfg, params), params, creds)
	}
	return h.runner.RunDirect(ctx, h.cfg, params)
}

// Format never panics. Formatter failures produce a degraded notification.
func (h *AutomationHandler) Format(r Result) (out Formatted) {
	defer func() {
		if p := recover(); p != nil {
			out = h.degraded(fmt.Errorf("%v", p))
		}
	}()
	if h.opts.Format == nil {
		return DefaultFormat(h.cfg, r)
	}
	f, err := h.opts.Format(h.cfg, r)
	if err != nil {
		return h.degraded(err)
	}
	return f
}

func (h *AutomationHandler) degraded(err error) Formatted {
	msg := "Results received but couldn't be formatted: %v"
	if h.cfg.Category == CategoryAction {
		msg = "Action completed but couldn't format result: %v"
	}
	return Formatted{
		Title:       h.opts.Label + " - Format Error",
		Message:     fmt.Sprintf(msg, err),
		InboxStatus: InboxPending,
	}
}

// DefaultFormat renders any result without skill-specific knowledge.
func DefaultFormat(cfg *Config, r Result) Formatted {
	if !r.Completed() {
		return Formatted{
			Title:       fmt.Sprintf("❌ %s Failed", cfg.Name),
			Message:     "Error: " + r.Error,
			InboxStatus: InboxPending,
		}
	}
	return Formatted{
		Title:       fmt.Sprintf("✅ %s Completed", cfg.Name),
		Message:     "Result: " + string(r.Output),
		Action:      "View Details",
		InboxStatus: InboxNeedsConfirmation,
		Links:       ExtractLinks(string(r.Output)),
	}
}

// GenericInstruction is used for session skills without a template.
func GenericInstruction(cfg *Config, p Params) string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, p[k]))
	}
	return fmt.Sprintf("Execute %s with parameters: {%s}", cfg.Name, strings.Join(parts, ", "))
}

// errNoData reports an output without a result envelope.
var errNoData = errors.New("no result data")

// ProviderError is a success:false envelope returned by the provider.
type ProviderError struct {
	Code    string
	Message string
}

func (e *ProviderError) Error() string {
	return e.Code + ": " + e.Message
}

type envelope struct {
	Result *struct {
		Success *bool           `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   *struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	} `json:"result"`
}

// Unwrap decodes the {"result": {"success", "data", "error"}} envelope and
// unmarshals data into v. It returns errNoData when there is no envelope
// and *ProviderError when the provider reported success:false.
func Unwrap(output json.RawMessage, v any) error {
	trimmed := strings.TrimSpace(string(output))
	if trimmed == "" || trimmed == "null" {
		return errNoData
	}
	var env envelope
	if err := json.Unmarshal(output, &env); err != nil {
		return fmt.Errorf("decode output: %w", err)
	}
	if env.Result == nil {
		return errNoData
	}
	if env.Result.Success != nil && !*env.Result.Success {
		pe := &ProviderError{Code: "ERROR", Message: "Unknown error"}
		if e := env.Result.Error; e != nil {
			if e.Code != "" {
				pe.Code = e.Code
			}
			if e.Message != "" {
				pe.Message = e.Message
			}
		}
		return pe
	}
	data := strings.TrimSpace(string(env.Result.Data))
	if data == "" || data == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Result.Data, v); err != nil {
		return fmt.Errorf("decode result data: %w", err)
	}
	return nil
}
