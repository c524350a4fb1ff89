package models

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Candle is one OHLCV bucket as returned by the historic rates endpoint.
// On the wire a candle is the array [time, low, high, open, close, volume].
type Candle struct {
	Timestamp int64           `json:"timestamp"`
	Low       decimal.Decimal `json:"low"`
	High      decimal.Decimal `json:"high"`
	Open      decimal.Decimal `json:"open"`
	Close     decimal.Decimal `json:"close"`
	Volume    decimal.Decimal `json:"volume"`
}

// Time returns the bucket start time in UTC.
func (c Candle) Time() time.Time {
	return time.Unix(c.Timestamp, 0).UTC()
}

// UnmarshalJSON decodes the exchange's positional array form.
func (c *Candle) UnmarshalJSON(data []byte) error {
	var row []json.RawMessage
	if err := json.Unmarshal(data, &row); err != nil {
		return fmt.Errorf("decode candle: %w", err)
	}
	if len(row) < 6 {
		return fmt.Errorf("decode candle: expected 6 fields, got %d", len(row))
	}
	var ts json.Number
	if err := json.Unmarshal(row[0], &ts); err != nil {
		return fmt.Errorf("decode candle time: %w", err)
	}
	sec, err := ts.Int64()
	if err != nil {
		f, ferr := ts.Float64()
		if ferr != nil {
			return fmt.Errorf("decode candle time %q: %w", ts, err)
		}
		sec = int64(f)
	}
	c.Timestamp = sec

	fields := []*decimal.Decimal{&c.Low, &c.High, &c.Open, &c.Close, &c.Volume}
	for i, dst := range fields {
		if err := dst.UnmarshalJSON(row[i+1]); err != nil {
			return fmt.Errorf("decode candle field %d: %w", i+1, err)
		}
	}
	return nil
}

// MarshalJSON encodes the candle back into the positional array form.
func (c Candle) MarshalJSON() ([]byte, error) {
	return json.Marshal([]interface{}{
		c.Timestamp,
		c.Low.InexactFloat64(),
		c.High.InexactFloat64(),
		c.Open.InexactFloat64(),
		c.Close.InexactFloat64(),
		c.Volume.InexactFloat64(),
	})
}

// SortCandles returns a copy of candles ordered ascending by timestamp.
// The input slice is left untouched.
func SortCandles(candles []Candle) []Candle {
	out := make([]Candle, len(candles))
	copy(out, candles)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp < out[j].Timestamp
	})
	return out
}
