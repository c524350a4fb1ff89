package strategy

import (
	"context"
	"fmt"
	"time"

	"cbtrader/config"
	"cbtrader/exchange"
	"cbtrader/logger"
	"cbtrader/models"
)

// CandleSource fetches historic rates. *exchange.Client satisfies it.
type CandleSource interface {
	HistoricRates(ctx context.Context, product string, start, end time.Time, granularity int) ([]models.Candle, error)
}

// History evaluates the crossover over the trailing lookback window of a
// product. Candles are fetched fresh on every call.
type History struct {
	source CandleSource
	cfg    config.StrategyConfig
	now    func() time.Time
	log    *logger.Log
}

// NewHistory returns a History reading from source. A nil now uses the
// wall clock.
func NewHistory(source CandleSource, cfg config.StrategyConfig, now func() time.Time) (*History, error) {
	if !exchange.ValidGranularity(cfg.Granularity) {
		return nil, fmt.Errorf("%w: granularity %d", models.ErrInvalidParameter, cfg.Granularity)
	}
	if cfg.Lookback <= 0 || cfg.Lookback > exchange.MaxCandles {
		return nil, fmt.Errorf("%w: lookback must be between 1 and %d, got %d", models.ErrInvalidParameter, exchange.MaxCandles, cfg.Lookback)
	}
	if cfg.LongWindow > cfg.Lookback {
		return nil, fmt.Errorf("%w: long window %d exceeds lookback %d", models.ErrInvalidParameter, cfg.LongWindow, cfg.Lookback)
	}
	if now == nil {
		now = time.Now
	}
	return &History{source: source, cfg: cfg, now: now, log: logger.GetLogger()}, nil
}

// Candles returns the trailing window sorted ascending by timestamp.
func (h *History) Candles(ctx context.Context) ([]models.Candle, error) {
	end := h.now()
	start := end.Add(-time.Duration(h.cfg.Lookback*h.cfg.Granularity) * time.Second)

	begin := time.Now()
	candles, err := h.source.HistoricRates(ctx, h.cfg.Product, start, end, h.cfg.Granularity)
	if err != nil {
		return nil, fmt.Errorf("fetch %s candles: %w", h.cfg.Product, err)
	}
	logger.LogPerformanceEntry(h.log.WithComponent("strategy"), "strategy", "historic_rates", time.Since(begin), logger.Fields{"candles": len(candles)})
	return models.SortCandles(candles), nil
}

// Evaluate fetches the window and evaluates the crossover.
func (h *History) Evaluate(ctx context.Context) (Result, error) {
	candles, err := h.Candles(ctx)
	if err != nil {
		return Result{}, err
	}
	return Evaluate(candles, h.cfg.ShortWindow, h.cfg.LongWindow)
}

// Signal fetches the window and returns the crossover signal.
func (h *History) Signal(ctx context.Context) (bool, error) {
	res, err := h.Evaluate(ctx)
	if err != nil {
		return false, err
	}
	return res.Up, nil
}
