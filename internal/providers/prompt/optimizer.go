package prompt

import (
	"context"
	"errors"
	"strings"

	"text2image/internal/domain"
	"text2image/internal/infra"
)

// DefaultMaxRetries bounds the attempts of a single Optimize call.
const DefaultMaxRetries = 5

// Completer sends one system/user message pair to a chat-completion provider
// and returns the raw completion text. Implementations report a provider-side
// content filter hit as an error wrapping domain.ErrContentPolicy.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Options configures an Optimizer.
type Options struct {
	Completer  Completer
	MaxRetries int
	Logger     *infra.Logger
}

// Optimizer rewrites prompts into detailed English prompts. It never fails:
// whenever a clean completion cannot be obtained the original prompt is
// returned.
type Optimizer struct {
	completer  Completer
	provider   string
	maxRetries int
	logger     *infra.Logger
}

// NewOptimizer builds an Optimizer. A nil completer yields a passthrough optimizer.
func NewOptimizer(opts Options) *Optimizer {
	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	logger := opts.Logger
	if logger == nil {
		logger = infra.DiscardLogger()
	}
	provider := "none"
	if named, ok := opts.Completer.(interface{ Provider() string }); ok {
		provider = named.Provider()
	}
	return &Optimizer{
		completer:  opts.Completer,
		provider:   provider,
		maxRetries: maxRetries,
		logger:     logger,
	}
}

// Provider names the backing completer, or "none".
func (o *Optimizer) Provider() string {
	if o == nil {
		return "none"
	}
	return o.provider
}

// Enabled reports whether a completer is wired.
func (o *Optimizer) Enabled() bool {
	return o != nil && o.completer != nil
}

// Optimize returns a validated rewrite of prompt, or prompt itself on content
// filter rejection, exhausted retries, cancellation, or a missing completer.
//
// Validation failures and provider failures draw from the same attempt budget.
// Each rejected completion appends an admonition to the system instruction and
// the admonitions accumulate for the rest of the call.
func (o *Optimizer) Optimize(ctx context.Context, prompt string) string {
	if !o.Enabled() {
		return prompt
	}
	instruction := newSystemInstruction()
	user := buildUserMessage(prompt)

	for attempt := 1; attempt <= o.maxRetries; attempt++ {
		if ctx.Err() != nil {
			o.logger.Warn().Err(ctx.Err()).Int("attempt", attempt).Msg("prompt: optimization cancelled, using original")
			return prompt
		}
		completion, err := o.completer.Complete(ctx, instruction.String(), user)
		if err != nil {
			if errors.Is(err, domain.ErrContentPolicy) {
				o.logger.Warn().Str("provider", o.provider).Str("prompt", prompt).Msg("prompt: rejected by content filter, using original")
				return prompt
			}
			o.logger.Error().Err(err).
				Str("provider", o.provider).
				Int("attempt", attempt).
				Int("max_retries", o.maxRetries).
				Msg("prompt: optimization request failed")
			continue
		}

		completion = strings.TrimSpace(completion)
		if completion == "" {
			o.logger.Error().Str("provider", o.provider).Int("attempt", attempt).Msg("prompt: empty completion")
			continue
		}
		if admonition := validateCompletion(completion); admonition != "" {
			o.logger.Warn().
				Str("provider", o.provider).
				Int("attempt", attempt).
				Int("max_retries", o.maxRetries).
				Str("completion", completion).
				Msg("prompt: completion rejected by validation")
			instruction.admonish(admonition)
			continue
		}

		o.logger.Info().Str("original", prompt).Str("optimized", completion).Msg("prompt: optimized")
		return completion
	}

	o.logger.Warn().Int("max_retries", o.maxRetries).Msg("prompt: retries exhausted, using original")
	return prompt
}
