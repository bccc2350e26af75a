// Package responder selects and produces the assistant reply for a chat
// turn: an LLM-backed generator when one is reachable within its deadline,
// otherwise a rule-based fallback that is total over every (emotion label,
// risk level) pair.
package responder

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/mindwell-dev/mindwell/internal/chat"
	"github.com/mindwell-dev/mindwell/internal/emotion"
	"github.com/mindwell-dev/mindwell/internal/risk"
	"github.com/mindwell-dev/mindwell/pkg/observability"
)

// EmotionalContext is the current emotional state attached to a reply
// request.
type EmotionalContext struct {
	Fused emotion.Fused
	Risk  risk.Snapshot
}

// Generator produces a reply from conversation history and emotional
// context. Implementations may be slow or unavailable; the responder bounds
// them with a deadline.
type Generator interface {
	// Name identifies the generator backend for logging and metrics.
	Name() string

	// Generate returns the assistant reply text.
	Generate(ctx context.Context, history []chat.Turn, emo EmotionalContext) (string, error)
}

// Strategy names which path produced a reply.
const (
	StrategyGenerator = "generator"
	StrategyFallback  = "fallback"
)

// Responder wraps a primary generator with the rule-based fallback.
type Responder struct {
	primary  Generator
	fallback *Fallback
	timeout  time.Duration
}

// New creates a responder. primary may be nil, in which case every reply
// comes from the fallback.
func New(primary Generator, timeout time.Duration) *Responder {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Responder{
		primary:  primary,
		fallback: NewFallback(),
		timeout:  timeout,
	}
}

// Reply produces the assistant reply for the given turn. It never fails:
// generator timeout, error or absence falls back to the rule-based reply.
// The returned strategy is StrategyGenerator or StrategyFallback.
func (r *Responder) Reply(ctx context.Context, history []chat.Turn, emo EmotionalContext) (string, string) {
	if r.primary != nil {
		gctx, cancel := context.WithTimeout(ctx, r.timeout)
		start := time.Now()
		text, err := r.primary.Generate(gctx, history, emo)
		cancel()

		observability.RecordGeneration(r.primary.Name(), time.Since(start))

		if err == nil && text != "" {
			return enrich(text, emo), StrategyGenerator
		}
		log.Printf("responder: generator %s failed, using fallback: %v", r.primary.Name(), err)
	}

	observability.RecordFallbackReply()
	text := r.fallback.Reply(emo.Fused.Label, emo.Risk.Level, len(history))
	return enrich(text, emo), StrategyFallback
}

// CheckAvailability probes the primary generator's backend. A nil generator,
// or one without a probe of its own, reports healthy: the rule-based
// fallback always answers.
func (r *Responder) CheckAvailability(ctx context.Context) error {
	if r.primary == nil {
		return nil
	}
	probe, ok := r.primary.(interface {
		Available(context.Context) bool
	})
	if ok && !probe.Available(ctx) {
		return fmt.Errorf("generator %s is unavailable", r.primary.Name())
	}
	return nil
}
