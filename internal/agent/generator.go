package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/sony/gobreaker"

	"pigeon/internal/config"
	"pigeon/pkg/circuitbreaker"
	"pigeon/pkg/models"
)

// ContentGenerator produces text for the summarizer and responder
// agents. Real deployments back this with an AI provider; the core
// only depends on the interface.
type ContentGenerator interface {
	GenerateSummary(ctx context.Context, msg models.Message) (string, error)
	GenerateReply(ctx context.Context, msg models.Message) (string, error)
}

// TemplateGenerator is the built-in generator used when no external
// provider is configured. It produces deterministic extracts rather
// than generated prose.
type TemplateGenerator struct {
	maxSummaryWords int
}

func NewTemplateGenerator() *TemplateGenerator {
	return &TemplateGenerator{maxSummaryWords: 30}
}

func (g *TemplateGenerator) GenerateSummary(_ context.Context, msg models.Message) (string, error) {
	words := strings.Fields(msg.Body)
	if len(words) == 0 {
		return msg.Subject, nil
	}
	if len(words) > g.maxSummaryWords {
		words = words[:g.maxSummaryWords]
		return strings.Join(words, " ") + "...", nil
	}
	return strings.Join(words, " "), nil
}

func (g *TemplateGenerator) GenerateReply(_ context.Context, msg models.Message) (string, error) {
	sender := msg.From
	if at := strings.Index(sender, "@"); at > 0 {
		sender = sender[:at]
	}
	return fmt.Sprintf("Hi %s, thanks for reaching out about %q. We'll get back to you shortly.", sender, msg.Subject), nil
}

// BreakerGenerator wraps a ContentGenerator with a circuit breaker so
// a failing provider degrades the pipeline instead of stalling it.
type BreakerGenerator struct {
	inner   ContentGenerator
	breaker *circuitbreaker.Wrapper
}

func NewBreakerGenerator(inner ContentGenerator, cfg config.CircuitBreakerConfig) *BreakerGenerator {
	breakerCfg := circuitbreaker.DefaultConfig("content-generator")
	if cfg.Timeout > 0 {
		breakerCfg.Timeout = cfg.Timeout
	}
	if cfg.Interval > 0 {
		breakerCfg.Interval = cfg.Interval
	}
	if cfg.MaxRequests > 0 {
		breakerCfg.MaxRequests = cfg.MaxRequests
	}
	if cfg.FailureRatio > 0 && cfg.MinRequests > 0 {
		ratio, minRequests := cfg.FailureRatio, cfg.MinRequests
		breakerCfg.ReadyToTrip = func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= minRequests && failureRatio >= ratio
		}
	}

	return &BreakerGenerator{
		inner:   inner,
		breaker: circuitbreaker.NewWrapper(breakerCfg),
	}
}

func (g *BreakerGenerator) GenerateSummary(ctx context.Context, msg models.Message) (string, error) {
	result, err := g.breaker.ExecuteWithContext(ctx, func() (interface{}, error) {
		return g.inner.GenerateSummary(ctx, msg)
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

func (g *BreakerGenerator) GenerateReply(ctx context.Context, msg models.Message) (string, error) {
	result, err := g.breaker.ExecuteWithContext(ctx, func() (interface{}, error) {
		return g.inner.GenerateReply(ctx, msg)
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}
