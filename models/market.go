package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Product describes a tradable currency pair.
type Product struct {
	ID             string          `json:"id"`
	DisplayName    string          `json:"display_name"`
	BaseCurrency   string          `json:"base_currency"`
	QuoteCurrency  string          `json:"quote_currency"`
	BaseMinSize    decimal.Decimal `json:"base_min_size"`
	BaseMaxSize    decimal.Decimal `json:"base_max_size"`
	QuoteIncrement decimal.Decimal `json:"quote_increment"`
}

// Ticker is the snapshot of the last trade and best bid/ask.
type Ticker struct {
	TradeID int64           `json:"trade_id"`
	Price   decimal.Decimal `json:"price"`
	Size    decimal.Decimal `json:"size"`
	Bid     decimal.Decimal `json:"bid"`
	Ask     decimal.Decimal `json:"ask"`
	Volume  decimal.Decimal `json:"volume"`
	Time    time.Time       `json:"time"`
}

// BookEntry is one row of a product order book. Levels 1 and 2 carry the
// number of orders aggregated at the price; level 3 carries the order id.
type BookEntry struct {
	Price     decimal.Decimal
	Size      decimal.Decimal
	NumOrders int
	OrderID   string
}

// UnmarshalJSON decodes the [price, size, orders-or-id] triple.
func (e *BookEntry) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != 3 {
		return fmt.Errorf("book entry has %d fields, want 3", len(raw))
	}
	if err := json.Unmarshal(raw[0], &e.Price); err != nil {
		return fmt.Errorf("book entry price: %w", err)
	}
	if err := json.Unmarshal(raw[1], &e.Size); err != nil {
		return fmt.Errorf("book entry size: %w", err)
	}
	if err := json.Unmarshal(raw[2], &e.NumOrders); err == nil {
		return nil
	}
	if err := json.Unmarshal(raw[2], &e.OrderID); err != nil {
		return fmt.Errorf("book entry third field: %w", err)
	}
	return nil
}

// OrderBook is a snapshot of the bids and asks of a product.
type OrderBook struct {
	Sequence int64       `json:"sequence"`
	Bids     []BookEntry `json:"bids"`
	Asks     []BookEntry `json:"asks"`
}

// Stats is the 24 hour summary of a product. Volume is in base currency,
// the prices in quote currency.
type Stats struct {
	Open        decimal.Decimal `json:"open"`
	High        decimal.Decimal `json:"high"`
	Low         decimal.Decimal `json:"low"`
	Last        decimal.Decimal `json:"last"`
	Volume      decimal.Decimal `json:"volume"`
	Volume30Day decimal.Decimal `json:"volume_30day"`
}

// Trade is a public trade print.
type Trade struct {
	Time    time.Time       `json:"time"`
	TradeID int64           `json:"trade_id"`
	Price   decimal.Decimal `json:"price"`
	Size    decimal.Decimal `json:"size"`
	Side    Side            `json:"side"`
}

// Currency is a currency known to the exchange.
type Currency struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	MinSize decimal.Decimal `json:"min_size"`
}

// ServerTime is the exchange clock.
type ServerTime struct {
	ISO   time.Time `json:"iso"`
	Epoch float64   `json:"epoch"`
}

// Time converts the epoch field into a time.Time.
func (s ServerTime) Time() time.Time {
	sec := int64(s.Epoch)
	nsec := int64((s.Epoch - float64(sec)) * 1e9)
	return time.Unix(sec, nsec)
}

// SplitProduct returns the base and quote currency of a product id such
// as "BTC-USD".
func SplitProduct(product string) (base, quote string, err error) {
	parts := strings.Split(product, "-")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("%w: product %q is not BASE-QUOTE", ErrInvalidParameter, product)
	}
	return strings.ToUpper(parts[0]), strings.ToUpper(parts[1]), nil
}
