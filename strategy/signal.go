// Package strategy computes the moving-average crossover signal that drives
// the hourly trading decision.
package strategy

import (
	"fmt"

	"github.com/shopspring/decimal"

	"cbtrader/models"
)

// Result is one evaluation of the crossover.
type Result struct {
	Up        bool
	ShortMean decimal.Decimal
	LongMean  decimal.Decimal
	Last      models.Candle
	Candles   int
}

// Evaluate sorts a copy of candles by timestamp and compares the mean close
// of the trailing short window with that of the trailing long window.
func Evaluate(candles []models.Candle, short, long int) (Result, error) {
	if short <= 0 || long <= 0 {
		return Result{}, fmt.Errorf("%w: windows must be positive, got short=%d long=%d", models.ErrInvalidParameter, short, long)
	}
	if short > long {
		return Result{}, fmt.Errorf("%w: short window %d exceeds long window %d", models.ErrInvalidParameter, short, long)
	}
	if len(candles) < long {
		return Result{}, fmt.Errorf("%w: have %d candles, long window needs %d", models.ErrInsufficientData, len(candles), long)
	}

	sorted := models.SortCandles(candles)
	shortSum := sumCloses(sorted[len(sorted)-short:])
	longSum := sumCloses(sorted[len(sorted)-long:])

	// shortSum/short > longSum/long, cross-multiplied to stay exact.
	up := shortSum.Mul(decimal.NewFromInt(int64(long))).GreaterThan(longSum.Mul(decimal.NewFromInt(int64(short))))

	return Result{
		Up:        up,
		ShortMean: shortSum.Div(decimal.NewFromInt(int64(short))),
		LongMean:  longSum.Div(decimal.NewFromInt(int64(long))),
		Last:      sorted[len(sorted)-1],
		Candles:   len(sorted),
	}, nil
}

// ComputeSignal reports whether the short-window mean close is strictly
// above the long-window mean close.
func ComputeSignal(candles []models.Candle, short, long int) (bool, error) {
	res, err := Evaluate(candles, short, long)
	if err != nil {
		return false, err
	}
	return res.Up, nil
}

func sumCloses(candles []models.Candle) decimal.Decimal {
	sum := decimal.Zero
	for _, c := range candles {
		sum = sum.Add(c.Close)
	}
	return sum
}
