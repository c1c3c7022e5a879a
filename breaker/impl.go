package breaker

import (
	"context"
	"sync"

	"github.com/sony/gobreaker/v2"

	"github.com/ceyewan/fabric/clog"
	"github.com/ceyewan/fabric/metrics"
	"github.com/ceyewan/fabric/xerrors"
)

const (
	// MetricRejectsTotal 被熔断拒绝的请求数
	MetricRejectsTotal = "fabric_breaker_rejects_total"
	// MetricStateChangesTotal 状态变更次数
	MetricStateChangesTotal = "fabric_breaker_state_changes_total"
)

type circuitBreaker struct {
	cfg      *Config
	logger   clog.Logger
	fallback FallbackFunc

	rejects      metrics.Counter
	stateChanges metrics.Counter

	breakers sync.Map // key -> *gobreaker.CircuitBreaker[struct{}]
}

func (cb *circuitBreaker) initMetrics(meter metrics.Meter) error {
	var err error
	if cb.rejects, err = meter.Counter(MetricRejectsTotal, "Requests rejected by an open circuit"); err != nil {
		return err
	}
	cb.stateChanges, err = meter.Counter(MetricStateChangesTotal, "Circuit breaker state transitions")
	return err
}

func (cb *circuitBreaker) Execute(ctx context.Context, key string, fn func() error) error {
	if key == "" {
		return ErrKeyEmpty
	}

	_, err := cb.get(key).Execute(func() (struct{}, error) {
		return struct{}{}, fn()
	})
	if err == nil {
		return nil
	}
	if xerrors.Is(err, gobreaker.ErrOpenState) || xerrors.Is(err, gobreaker.ErrTooManyRequests) {
		cb.rejects.Inc(ctx, metrics.L("key", key))
		if cb.fallback != nil {
			return cb.fallback(ctx, key, ErrOpenState)
		}
		return ErrOpenState
	}
	return err
}

func (cb *circuitBreaker) State(key string) (State, error) {
	if key == "" {
		return StateClosed, ErrKeyEmpty
	}
	v, ok := cb.breakers.Load(key)
	if !ok {
		return StateClosed, nil
	}
	return fromGoBreaker(v.(*gobreaker.CircuitBreaker[struct{}]).State()), nil
}

func (cb *circuitBreaker) get(key string) *gobreaker.CircuitBreaker[struct{}] {
	if v, ok := cb.breakers.Load(key); ok {
		return v.(*gobreaker.CircuitBreaker[struct{}])
	}
	b := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:          key,
		MaxRequests:   cb.cfg.MaxRequests,
		Interval:      cb.cfg.Interval,
		Timeout:       cb.cfg.Timeout,
		ReadyToTrip:   cb.readyToTrip,
		OnStateChange: cb.onStateChange,
	})
	actual, _ := cb.breakers.LoadOrStore(key, b)
	return actual.(*gobreaker.CircuitBreaker[struct{}])
}

func (cb *circuitBreaker) readyToTrip(counts gobreaker.Counts) bool {
	if counts.Requests < cb.cfg.MinimumRequests {
		return false
	}
	return float64(counts.TotalFailures)/float64(counts.Requests) >= cb.cfg.FailureRatio
}

func (cb *circuitBreaker) onStateChange(name string, from, to gobreaker.State) {
	f, t := fromGoBreaker(from).String(), fromGoBreaker(to).String()
	cb.stateChanges.Inc(context.Background(), metrics.L("from", f), metrics.L("to", t))
	cb.logger.Info("circuit breaker state changed",
		clog.String("key", name), clog.String("from", f), clog.String("to", t))
}

func fromGoBreaker(s gobreaker.State) State {
	switch s {
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	case gobreaker.StateOpen:
		return StateOpen
	default:
		return StateClosed
	}
}
