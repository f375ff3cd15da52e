package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/benvon/smart-diary/internal/monitoring"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// ErrOracleUnavailable is returned while the circuit breaker is open
var ErrOracleUnavailable = errors.New("oracle unavailable (circuit open)")

// BreakerConfig configures the circuit breaker around an oracle
type BreakerConfig struct {
	Name             string
	MaxRequests      uint32        // probes allowed while half-open
	Interval         time.Duration // window for clearing counts while closed
	Timeout          time.Duration // open duration before half-open
	FailureThreshold float64       // failure ratio that trips the breaker
	MinRequests      uint32        // requests needed before the ratio is considered
}

// DefaultBreakerConfig returns the settings used by the server and worker
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Name:             "oracle",
		MaxRequests:      1,
		Interval:         60 * time.Second,
		Timeout:          30 * time.Second,
		FailureThreshold: 0.6,
		MinRequests:      5,
	}
}

// BreakerOracle fails fast while the wrapped oracle keeps failing
type BreakerOracle struct {
	next Oracle
	cb   *gobreaker.CircuitBreaker
}

// NewBreakerOracle wraps next with a circuit breaker
func NewBreakerOracle(next Oracle, cfg BreakerConfig, logger *zap.Logger) *BreakerOracle {
	if logger == nil {
		logger = zap.NewNop()
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("oracle_circuit_state_change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			monitoring.OracleCircuitState.Set(float64(to))
		},
		// A caller giving up is not an upstream failure
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})
	return &BreakerOracle{next: next, cb: cb}
}

// Complete runs the wrapped oracle through the breaker
func (b *BreakerOracle) Complete(ctx context.Context, messages []ChatMessage) (string, error) {
	out, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.Complete(ctx, messages)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return "", fmt.Errorf("%w: %v", ErrOracleUnavailable, err)
	}
	if err != nil {
		return "", err
	}
	content, _ := out.(string)
	return content, nil
}

// State reports the breaker state, used by the extended health check
func (b *BreakerOracle) State() string {
	return b.cb.State().String()
}
