package ocr

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/JM200322/proyecto-ocr-odoo/internal/logger"
)

// AttemptPlan pairs a provider with its retry budget. Plans are walked in
// order; remote engines usually get several tries, local fallbacks one.
type AttemptPlan struct {
	Provider Provider
	MaxTries int
}

// AttemptObserver receives the outcome of every single provider attempt.
// Implemented by the monitoring package; a nil observer is valid.
type AttemptObserver interface {
	ObserveAttempt(provider string, success bool)
}

// SleepFunc blocks for the given backoff delay or until the context is
// canceled. Injected so tests run without wall-clock waits.
type SleepFunc func(ctx context.Context, d time.Duration) error

// OrchestratorConfig holds the shared retry behavior for all plans.
type OrchestratorConfig struct {
	// BackoffBase is the first retry delay; it doubles after every failed
	// attempt of the same provider.
	BackoffBase time.Duration

	// Sleep overrides the backoff wait. Nil uses a context-aware timer.
	Sleep SleepFunc

	// Observer is notified after every attempt. Optional.
	Observer AttemptObserver
}

// Orchestrator implements OCRService over an ordered list of attempt plans.
// It holds no per-request state; concurrent calls are independent.
type Orchestrator struct {
	plans    []AttemptPlan
	backoff  time.Duration
	sleep    SleepFunc
	observer AttemptObserver
	log      zerolog.Logger
}

// NewOrchestrator builds an orchestrator from an explicit configuration and
// an ordered set of attempt plans. Plans with a nil provider or a
// non-positive retry budget are rejected at construction.
func NewOrchestrator(cfg OrchestratorConfig, plans ...AttemptPlan) (*Orchestrator, error) {
	if len(plans) == 0 {
		return nil, ErrNoProviders
	}
	for _, p := range plans {
		if p.Provider == nil || p.MaxTries < 1 {
			return nil, ErrNoProviders
		}
	}

	backoff := cfg.BackoffBase
	if backoff <= 0 {
		backoff = 2 * time.Second
	}
	sleep := cfg.Sleep
	if sleep == nil {
		sleep = sleepWithContext
	}

	return &Orchestrator{
		plans:    plans,
		backoff:  backoff,
		sleep:    sleep,
		observer: cfg.Observer,
		log:      logger.WithComponent("ocr-orchestrator"),
	}, nil
}

// Recognize walks the attempt plans in order and returns the first
// successful result. Transient failures and rate limits are retried with
// exponential backoff; permanent failures skip straight to the next
// provider. When everything fails the error is an *UnavailableError
// matching ErrOCRUnavailable.
func (o *Orchestrator) Recognize(ctx context.Context, req OCRRequest) (*OCRResult, error) {
	const op = "Recognize"

	if len(req.Image) == 0 {
		return nil, NewOCRError(op, ErrEmptyImage, "")
	}
	if req.Mode == "" {
		req.Mode = ModeGeneral
	}

	start := time.Now()
	attempts := 0
	var lastErr error

	for planIdx, plan := range o.plans {
		delay := o.backoff

		for try := 1; try <= plan.MaxTries; try++ {
			if err := ctx.Err(); err != nil {
				return nil, WrapOCRError(op, err, "canceled before attempt")
			}

			attempts++
			result, err := plan.Provider.Recognize(ctx, req)
			if o.observer != nil {
				o.observer.ObserveAttempt(plan.Provider.Name(), err == nil)
			}

			if err == nil {
				result.Attempts = attempts
				result.ProcessingTime = time.Since(start)
				o.log.Info().
					Str("engine", result.Engine).
					Int("attempts", attempts).
					Float64("confidence", result.Confidence).
					Dur("duration", result.ProcessingTime).
					Msg("Recognition succeeded")
				return result, nil
			}

			lastErr = err
			o.log.Warn().
				Err(err).
				Str("provider", plan.Provider.Name()).
				Int("attempt", attempts).
				Int("try", try).
				Msg("Recognition attempt failed")

			if ctx.Err() != nil {
				return nil, WrapOCRError(op, ctx.Err(), "canceled during attempt")
			}

			// A 4xx other than 429 will not improve on retry. Move on to
			// the next engine immediately.
			if errors.Is(err, ErrPermanent) {
				break
			}

			// Skip the final backoff: with no attempt left anywhere there
			// is nothing to wait for.
			if try == plan.MaxTries && planIdx == len(o.plans)-1 {
				continue
			}

			wait := delay
			if errors.Is(err, ErrRateLimited) {
				wait = delay * 2
			}
			if err := o.sleep(ctx, wait); err != nil {
				return nil, WrapOCRError(op, err, "canceled during backoff")
			}
			delay *= 2
		}
	}

	o.log.Error().
		Err(lastErr).
		Int("attempts", attempts).
		Dur("duration", time.Since(start)).
		Msg("All recognition engines exhausted")

	return nil, &UnavailableError{Attempts: attempts, LastErr: lastErr}
}

// sleepWithContext waits for d unless the context ends first.
func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
