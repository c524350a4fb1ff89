package exchange

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/shopspring/decimal"

	"cbtrader/models"
)

// PlaceOrder validates req and submits it. Validation failures never reach
// the network.
func (c *Client) PlaceOrder(ctx context.Context, req models.OrderRequest) (*models.Order, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	var order models.Order
	if err := c.SendJSON(ctx, Request{Method: http.MethodPost, Path: "/orders", Body: req, Private: true}, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// PlaceMarketOrder submits a market order. Exactly one of size and funds
// must be non-nil.
func (c *Client) PlaceMarketOrder(ctx context.Context, product string, side models.Side, size, funds *decimal.Decimal, clientOID string) (*models.Order, error) {
	return c.PlaceOrder(ctx, models.OrderRequest{
		ProductID: product,
		Side:      side,
		Type:      models.OrderTypeMarket,
		Size:      size,
		Funds:     funds,
		ClientOID: clientOID,
	})
}

// LimitOptions holds the optional fields of a limit order.
type LimitOptions struct {
	ClientOID   string
	STP         string
	TimeInForce string
	CancelAfter string
	PostOnly    bool
}

func (c *Client) PlaceLimitOrder(ctx context.Context, product string, side models.Side, price, size decimal.Decimal, opts LimitOptions) (*models.Order, error) {
	return c.PlaceOrder(ctx, models.OrderRequest{
		ProductID:   product,
		Side:        side,
		Type:        models.OrderTypeLimit,
		Price:       &price,
		Size:        &size,
		ClientOID:   opts.ClientOID,
		STP:         opts.STP,
		TimeInForce: opts.TimeInForce,
		CancelAfter: opts.CancelAfter,
		PostOnly:    opts.PostOnly,
	})
}

// PlaceStopOrder submits a stop order that becomes a limit order at price
// once stopPrice is crossed. Exactly one of size and funds must be non-nil.
func (c *Client) PlaceStopOrder(ctx context.Context, product string, side models.Side, stop models.StopKind, price, stopPrice decimal.Decimal, size, funds *decimal.Decimal, clientOID string) (*models.Order, error) {
	return c.PlaceOrder(ctx, models.OrderRequest{
		ProductID: product,
		Side:      side,
		Type:      models.OrderTypeStop,
		Stop:      stop,
		Price:     &price,
		StopPrice: &stopPrice,
		Size:      size,
		Funds:     funds,
		ClientOID: clientOID,
	})
}

// CancelOrder cancels one order and returns the id the exchange reports.
func (c *Client) CancelOrder(ctx context.Context, id string) (string, error) {
	if id == "" {
		return "", fmt.Errorf("%w: order id is required", models.ErrInvalidParameter)
	}
	var canceled string
	err := c.SendJSON(ctx, Request{Method: http.MethodDelete, Path: "/orders/" + url.PathEscape(id), Private: true}, &canceled)
	return canceled, err
}

// CancelAll cancels every open order, or only those of product when given.
func (c *Client) CancelAll(ctx context.Context, product string) ([]string, error) {
	var q url.Values
	if product != "" {
		q = url.Values{"product_id": {product}}
	}
	var canceled []string
	if err := c.SendJSON(ctx, Request{Method: http.MethodDelete, Path: "/orders", Query: q, Private: true}, &canceled); err != nil {
		return nil, err
	}
	return canceled, nil
}

func (c *Client) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: order id is required", models.ErrInvalidParameter)
	}
	var order models.Order
	if err := c.SendJSON(ctx, Request{Method: http.MethodGet, Path: "/orders/" + url.PathEscape(id), Private: true}, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// Orders pages through the profile's orders, optionally filtered by product
// and status.
func (c *Client) Orders(product string, statuses ...string) (*Pager, error) {
	q := url.Values{}
	if product != "" {
		q.Set("product_id", product)
	}
	for _, s := range statuses {
		q.Add("status", s)
	}
	return c.Paginate(Request{Path: "/orders", Query: q, Private: true})
}

// Fills pages through the profile's fills. At least one of product and
// orderID is required.
func (c *Client) Fills(product, orderID string) (*Pager, error) {
	if product == "" && orderID == "" {
		return nil, fmt.Errorf("%w: product or order id is required", models.ErrInvalidParameter)
	}
	q := url.Values{}
	if product != "" {
		q.Set("product_id", product)
	}
	if orderID != "" {
		q.Set("order_id", orderID)
	}
	return c.Paginate(Request{Path: "/fills", Query: q, Private: true})
}
