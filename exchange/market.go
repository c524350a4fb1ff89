package exchange

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"cbtrader/models"
)

// MaxCandles is the most buckets the exchange returns for one historic
// rates request. The endpoint is not paginated.
const MaxCandles = 200

var allowedGranularities = []int{60, 300, 900, 3600, 21600, 86400}

// ValidGranularity reports whether seconds is a bucket size the exchange
// accepts.
func ValidGranularity(seconds int) bool {
	for _, g := range allowedGranularities {
		if g == seconds {
			return true
		}
	}
	return false
}

// HistoricRates returns the candles of product between start and end in
// buckets of granularity seconds. The order of the result is whatever the
// exchange sent; callers sort before use.
func (c *Client) HistoricRates(ctx context.Context, product string, start, end time.Time, granularity int) ([]models.Candle, error) {
	if product == "" {
		return nil, fmt.Errorf("%w: product is required", models.ErrInvalidParameter)
	}
	if !ValidGranularity(granularity) {
		return nil, fmt.Errorf("%w: granularity %d must be one of %v", models.ErrInvalidParameter, granularity, allowedGranularities)
	}
	q := url.Values{}
	q.Set("granularity", strconv.Itoa(granularity))
	if !start.IsZero() && !end.IsZero() {
		if !end.After(start) {
			return nil, fmt.Errorf("%w: end must be after start", models.ErrInvalidParameter)
		}
		if buckets := int(end.Sub(start) / (time.Duration(granularity) * time.Second)); buckets > MaxCandles {
			return nil, fmt.Errorf("%w: window spans %d buckets, the exchange returns at most %d", models.ErrInvalidParameter, buckets, MaxCandles)
		}
	}
	if !start.IsZero() {
		q.Set("start", start.UTC().Format(time.RFC3339))
	}
	if !end.IsZero() {
		q.Set("end", end.UTC().Format(time.RFC3339))
	}

	var candles []models.Candle
	err := c.SendJSON(ctx, Request{
		Method: http.MethodGet,
		Path:   fmt.Sprintf("/products/%s/candles", url.PathEscape(product)),
		Query:  q,
	}, &candles)
	if err != nil {
		return nil, err
	}
	return candles, nil
}

func (c *Client) Products(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	if err := c.SendJSON(ctx, Request{Method: http.MethodGet, Path: "/products"}, &products); err != nil {
		return nil, err
	}
	return products, nil
}

func (c *Client) Ticker(ctx context.Context, product string) (*models.Ticker, error) {
	var t models.Ticker
	path := fmt.Sprintf("/products/%s/ticker", url.PathEscape(product))
	if err := c.SendJSON(ctx, Request{Method: http.MethodGet, Path: path}, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// OrderBook returns the book of product at level 1 (best bid and ask),
// 2 (top 50 aggregated) or 3 (full, not aggregated).
func (c *Client) OrderBook(ctx context.Context, product string, level int) (*models.OrderBook, error) {
	if product == "" {
		return nil, fmt.Errorf("%w: product is required", models.ErrInvalidParameter)
	}
	if level < 1 || level > 3 {
		return nil, fmt.Errorf("%w: order book level %d must be 1, 2 or 3", models.ErrInvalidParameter, level)
	}
	q := url.Values{}
	q.Set("level", strconv.Itoa(level))
	var book models.OrderBook
	err := c.SendJSON(ctx, Request{
		Method: http.MethodGet,
		Path:   fmt.Sprintf("/products/%s/book", url.PathEscape(product)),
		Query:  q,
	}, &book)
	if err != nil {
		return nil, err
	}
	return &book, nil
}

func (c *Client) Stats(ctx context.Context, product string) (*models.Stats, error) {
	var st models.Stats
	path := fmt.Sprintf("/products/%s/stats", url.PathEscape(product))
	if err := c.SendJSON(ctx, Request{Method: http.MethodGet, Path: path}, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func (c *Client) Currencies(ctx context.Context) ([]models.Currency, error) {
	var currencies []models.Currency
	if err := c.SendJSON(ctx, Request{Method: http.MethodGet, Path: "/currencies"}, &currencies); err != nil {
		return nil, err
	}
	return currencies, nil
}

// ServerTime returns the exchange clock, used to detect local clock skew
// before signing requests.
func (c *Client) ServerTime(ctx context.Context) (*models.ServerTime, error) {
	var st models.ServerTime
	if err := c.SendJSON(ctx, Request{Method: http.MethodGet, Path: "/time"}, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// Trades pages through the latest public trades of product, newest first.
func (c *Client) Trades(product string, query url.Values) (*Pager, error) {
	return c.Paginate(Request{
		Path:  fmt.Sprintf("/products/%s/trades", url.PathEscape(product)),
		Query: query,
	})
}
