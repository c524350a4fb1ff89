// Package scheduler runs the trading decision once per hour boundary.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"cbtrader/config"
	"cbtrader/exchange"
	"cbtrader/internal/metrics"
	"cbtrader/logger"
	"cbtrader/models"
	"cbtrader/strategy"
)

// State is the position of the loop within one iteration.
type State int

const (
	Waiting State = iota
	Evaluating
	Acting
	Sleeping
)

func (s State) String() string {
	switch s {
	case Waiting:
		return "waiting"
	case Evaluating:
		return "evaluating"
	case Acting:
		return "acting"
	case Sleeping:
		return "sleeping"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Evaluator computes the crossover for the current hour.
type Evaluator interface {
	Evaluate(ctx context.Context) (strategy.Result, error)
}

// BalanceGuard reports whether a currency can be spent.
type BalanceGuard interface {
	HasPositiveBalance(ctx context.Context, currency string) (bool, error)
}

// OrderSubmitter places the market order of a tick.
type OrderSubmitter interface {
	SubmitMarketOrder(ctx context.Context, product string, side models.Side, size decimal.Decimal) (*models.Order, error)
}

// Scheduler drives one evaluation per hour boundary. Ticks are independent;
// only the hour of the last evaluation is remembered so that an hour is
// never evaluated twice.
type Scheduler struct {
	signal   Evaluator
	guard    BalanceGuard
	executor OrderSubmitter

	product string
	base    string
	quote   string
	size    decimal.Decimal

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
	log   *logger.Log

	mu       sync.RWMutex
	state    State
	lastHour time.Time
}

type Option func(*Scheduler)

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithSleep replaces the function used to wait for the next boundary. It
// must return ctx.Err() when ctx is cancelled first.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(s *Scheduler) { s.sleep = sleep }
}

// WithLogger replaces the global logger.
func WithLogger(l *logger.Log) Option {
	return func(s *Scheduler) { s.log = l }
}

// New builds a scheduler trading cfg.Product with a fixed order size.
func New(cfg config.StrategyConfig, signal Evaluator, guard BalanceGuard, executor OrderSubmitter, opts ...Option) (*Scheduler, error) {
	base, quote, err := models.SplitProduct(cfg.Product)
	if err != nil {
		return nil, err
	}
	size := cfg.Size()
	if !size.IsPositive() {
		return nil, fmt.Errorf("%w: order size %q must be positive", models.ErrInvalidParameter, cfg.OrderSize)
	}
	s := &Scheduler{
		signal:   signal,
		guard:    guard,
		executor: executor,
		product:  cfg.Product,
		base:     base,
		quote:    quote,
		size:     size,
		now:      time.Now,
		sleep:    sleepContext,
		log:      logger.GetLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// UntilNextHour returns the time left until the next hour boundary of t in
// t's own location.
func UntilNextHour(t time.Time) time.Duration {
	_, min, sec := t.Clock()
	elapsed := time.Duration(min)*time.Minute + time.Duration(sec)*time.Second + time.Duration(t.Nanosecond())
	return time.Hour - elapsed
}

// hourOf returns the instant of the top of the hour containing t. It is
// derived from t rather than rebuilt from the wall clock, so the repeated
// hour of a DST fall-back stays distinct.
func hourOf(t time.Time) time.Time {
	return t.Add(UntilNextHour(t) - time.Hour)
}

// State returns the current loop state.
func (s *Scheduler) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Scheduler) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// Run loops until ctx is cancelled, evaluating at minute zero of every hour
// and sleeping to the next boundary in between. The remaining time is
// recomputed from the live clock on each iteration. Run returns nil on
// cancellation and a non-nil error only when the exchange rejects the
// credentials.
func (s *Scheduler) Run(ctx context.Context) error {
	log := s.log.WithComponent("scheduler").WithFields(logger.Fields{"product": s.product})
	log.Info("scheduler started")
	defer log.Info("scheduler stopped")

	for {
		if ctx.Err() != nil {
			return nil
		}
		s.setState(Waiting)
		now := s.now()

		if now.Minute() == 0 {
			hour := hourOf(now)
			if hour.Equal(s.lastHour) {
				log.WithFields(logger.Fields{"hour": hour.Format(time.RFC3339)}).Debug("hour already evaluated")
			} else {
				s.lastHour = hour
				if err := s.Tick(ctx, now); err != nil {
					if ctx.Err() != nil {
						return nil
					}
					if exchange.IsAuthError(err) {
						return fmt.Errorf("exchange rejected credentials: %w", err)
					}
				}
				if after := s.now(); hourOf(after).After(hour) {
					metrics.IncrementTick(metrics.OutcomeSkipped)
					log.WithFields(logger.Fields{
						"hour":     hour.Format(time.RFC3339),
						"finished": after.Format(time.RFC3339Nano),
					}).Warn("tick overran hour boundary")
				}
			}
		}

		s.setState(Sleeping)
		wait := UntilNextHour(s.now())
		log.WithFields(logger.Fields{"sleep": wait.String()}).Debug("sleeping until next hour")
		if err := s.sleep(ctx, wait); err != nil {
			return nil
		}
	}
}

// Tick runs one evaluation: signal, then the balance guard for the currency
// that would be spent, then the order. An uptrend buys with the quote
// currency; a downtrend sells the base currency. Any error aborts the tick.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) error {
	log := s.log.WithComponent("scheduler").WithFields(logger.Fields{
		"product": s.product,
		"hour":    hourOf(now).Format(time.RFC3339),
	})

	s.setState(Evaluating)
	res, err := s.signal.Evaluate(ctx)
	if err != nil {
		return s.fail(log, "signal", err)
	}
	metrics.SetSignal(res.Up)

	side, currency := models.SideSell, s.base
	if res.Up {
		side, currency = models.SideBuy, s.quote
	}

	s.setState(Acting)
	funded, err := s.guard.HasPositiveBalance(ctx, currency)
	if err != nil {
		return s.fail(log, "balance", err)
	}

	action := string(side)
	if !funded {
		action = "none"
	}
	log.WithFields(logger.Fields{
		"signal":     res.Up,
		"short_mean": res.ShortMean.StringFixed(2),
		"long_mean":  res.LongMean.StringFixed(2),
		"close":      res.Last.Close.String(),
		"currency":   currency,
		"action":     action,
	}).Info("decision")

	if !funded {
		s.record(log, metrics.OutcomeNoop)
		return nil
	}

	if _, err := s.executor.SubmitMarketOrder(ctx, s.product, side, s.size); err != nil {
		return s.fail(log, "order", err)
	}
	if side == models.SideBuy {
		s.record(log, metrics.OutcomeBuy)
	} else {
		s.record(log, metrics.OutcomeSell)
	}
	return nil
}

func (s *Scheduler) fail(log *logger.Entry, stage string, err error) error {
	s.record(log, metrics.OutcomeFailed)
	entry := log.WithError(err).WithFields(logger.Fields{"stage": stage})
	switch {
	case errors.Is(err, models.ErrInsufficientData), errors.Is(err, models.ErrAccountNotFound):
		entry = entry.WithFields(logger.Fields{"kind": "data"})
	case exchange.IsAuthError(err):
		entry = entry.WithFields(logger.Fields{"kind": "auth"})
	}
	entry.Error("tick failed")
	return fmt.Errorf("%s: %w", stage, err)
}

func (s *Scheduler) record(log *logger.Entry, outcome string) {
	metrics.IncrementTick(outcome)
	log.LogMetric("scheduler", "tick", 1, "counter", logger.Fields{"outcome": outcome})
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
