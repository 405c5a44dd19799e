package ai

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/adworks/leadbot/internal/circuitbreaker"
	"github.com/adworks/leadbot/internal/clock"
	"github.com/adworks/leadbot/internal/domain"
	"github.com/adworks/leadbot/internal/metrics"
)

// FallbackReply is sent when every provider is down or unconfigured.
// A chat turn never surfaces an error to the user.
const FallbackReply = "Sorry, I cannot answer that right now. A manager will get back to you shortly."

// classifyPrompt asks for exactly one label from the known intent set.
const classifyPrompt = "Classify the customer message into exactly one of these categories: " +
	"pricing, support, complaint, general. Reply with the single category word only.\n\nMessage: %s"

// Responder answers free-text chat messages, trying the primary provider
// first and falling back to the secondary one. Each provider sits behind its
// own circuit breaker so one failing backend is skipped fast.
type Responder struct {
	providers []Provider
	breakers  map[string]*circuitbreaker.CircuitBreaker
	clk       clock.Clock
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

// NewResponder creates a Responder over the given providers in fallback
// order. Nil providers are skipped, so both, one, or neither may be
// configured. metrics may be nil.
func NewResponder(providers []Provider, clk clock.Clock, logger *zap.Logger, m *metrics.Metrics) *Responder {
	if clk == nil {
		clk = clock.New()
	}

	r := &Responder{
		breakers: make(map[string]*circuitbreaker.CircuitBreaker),
		clk:      clk,
		logger:   logger,
		metrics:  m,
	}
	for _, p := range providers {
		if p == nil {
			continue
		}
		r.providers = append(r.providers, p)
		r.breakers[p.Name()] = circuitbreaker.New(p.Name(), nil, clk, logger)
	}
	return r
}

// Respond generates a reply to a user message. It never returns an error:
// when all providers fail the static fallback reply is returned.
func (r *Responder) Respond(ctx context.Context, text string) string {
	reply, err := r.complete(ctx, text)
	if err != nil {
		r.logger.Warn("all providers failed, using fallback reply", zap.Error(err))
		return FallbackReply
	}
	return reply
}

// Classify labels a user message with one of the known intents. Failures and
// unexpected outputs collapse to the general intent.
func (r *Responder) Classify(ctx context.Context, text string) string {
	raw, err := r.complete(ctx, fmt.Sprintf(classifyPrompt, text))
	if err != nil {
		return domain.IntentGeneral
	}
	return domain.NormalizeIntent(raw)
}

// Enabled reports whether at least one provider is configured.
func (r *Responder) Enabled() bool {
	return len(r.providers) > 0
}

// BreakerStats returns circuit breaker statistics for every provider, for
// the health endpoint.
func (r *Responder) BreakerStats() []circuitbreaker.Stats {
	stats := make([]circuitbreaker.Stats, 0, len(r.providers))
	for _, p := range r.providers {
		stats = append(stats, r.breakers[p.Name()].Stats())
	}
	return stats
}

// complete tries each provider once, in order, behind its breaker.
func (r *Responder) complete(ctx context.Context, prompt string) (string, error) {
	if len(r.providers) == 0 {
		return "", fmt.Errorf("no providers configured")
	}

	var lastErr error
	for _, p := range r.providers {
		breaker := r.breakers[p.Name()]

		var reply string
		start := r.clk.Now()
		err := breaker.Execute(ctx, func(ctx context.Context) error {
			var execErr error
			reply, execErr = p.Complete(ctx, prompt)
			return execErr
		})
		elapsed := r.clk.Since(start)

		if err == nil {
			r.recordCall(p.Name(), true, elapsed)
			r.recordBreakerState(p.Name(), breaker.State())
			return reply, nil
		}

		if err == circuitbreaker.ErrCircuitOpen || err == circuitbreaker.ErrTooManyRequests {
			r.recordCircuitOpen(p.Name())
		} else {
			r.recordCall(p.Name(), false, elapsed)
		}
		r.recordBreakerState(p.Name(), breaker.State())

		r.logger.Warn("provider call failed",
			zap.String("provider", p.Name()),
			zap.Error(err),
		)
		lastErr = err
	}

	return "", lastErr
}

func (r *Responder) recordCall(provider string, success bool, elapsed time.Duration) {
	if r.metrics != nil {
		r.metrics.RecordAICall(provider, success, elapsed)
	}
}

func (r *Responder) recordCircuitOpen(provider string) {
	if r.metrics != nil {
		r.metrics.RecordAICircuitOpen(provider)
	}
}

func (r *Responder) recordBreakerState(provider string, state circuitbreaker.State) {
	if r.metrics != nil {
		r.metrics.SetCircuitBreakerState(provider, int(state))
	}
}
