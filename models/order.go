package models

import (
	"fmt"

	"github.com/shopspring/decimal"
)

type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

type OrderType string

const (
	OrderTypeLimit  OrderType = "limit"
	OrderTypeMarket OrderType = "market"
	OrderTypeStop   OrderType = "stop"
)

// StopKind selects which side of the stop price triggers a stop order.
type StopKind string

const (
	StopLoss  StopKind = "loss"
	StopEntry StopKind = "entry"
)

// Time in force policies accepted for limit orders.
const (
	TimeInForceGTC = "GTC"
	TimeInForceGTT = "GTT"
	TimeInForceIOC = "IOC"
	TimeInForceFOK = "FOK"
)

// OrderRequest is the body of POST /orders. Optional decimals are pointers
// so that an unset field is omitted rather than sent as zero.
type OrderRequest struct {
	ProductID   string           `json:"product_id"`
	Side        Side             `json:"side"`
	Type        OrderType        `json:"type"`
	Size        *decimal.Decimal `json:"size,omitempty"`
	Funds       *decimal.Decimal `json:"funds,omitempty"`
	Price       *decimal.Decimal `json:"price,omitempty"`
	ClientOID   string           `json:"client_oid,omitempty"`
	STP         string           `json:"stp,omitempty"`
	Stop        StopKind         `json:"stop,omitempty"`
	StopPrice   *decimal.Decimal `json:"stop_price,omitempty"`
	TimeInForce string           `json:"time_in_force,omitempty"`
	CancelAfter string           `json:"cancel_after,omitempty"`
	PostOnly    bool             `json:"post_only,omitempty"`
}

// Validate checks the field combinations the exchange requires for each
// order type. Every failure wraps ErrInvalidParameter.
func (r OrderRequest) Validate() error {
	if r.ProductID == "" {
		return fmt.Errorf("%w: product_id is required", ErrInvalidParameter)
	}
	switch r.Side {
	case SideBuy, SideSell:
	default:
		return fmt.Errorf("%w: side %q must be buy or sell", ErrInvalidParameter, r.Side)
	}

	switch r.Type {
	case OrderTypeLimit:
		if r.Price == nil || r.Size == nil {
			return fmt.Errorf("%w: limit orders need price and size", ErrInvalidParameter)
		}
		if r.Funds != nil {
			return fmt.Errorf("%w: limit orders do not accept funds", ErrInvalidParameter)
		}
		if r.CancelAfter != "" && r.TimeInForce != TimeInForceGTT {
			return fmt.Errorf("%w: cancel_after requires time_in_force GTT", ErrInvalidParameter)
		}
		if r.PostOnly && (r.TimeInForce == TimeInForceIOC || r.TimeInForce == TimeInForceFOK) {
			return fmt.Errorf("%w: post_only is invalid with time_in_force %s", ErrInvalidParameter, r.TimeInForce)
		}
	case OrderTypeMarket, OrderTypeStop:
		if (r.Size == nil) == (r.Funds == nil) {
			return fmt.Errorf("%w: %s orders need exactly one of size or funds", ErrInvalidParameter, r.Type)
		}
		if r.TimeInForce != "" || r.CancelAfter != "" || r.PostOnly {
			return fmt.Errorf("%w: time_in_force, cancel_after and post_only apply to limit orders only", ErrInvalidParameter)
		}
		if r.Type == OrderTypeStop {
			if r.Stop != StopLoss && r.Stop != StopEntry {
				return fmt.Errorf("%w: stop %q must be loss or entry", ErrInvalidParameter, r.Stop)
			}
			if r.StopPrice == nil || r.Price == nil {
				return fmt.Errorf("%w: stop orders need price and stop_price", ErrInvalidParameter)
			}
		}
	default:
		return fmt.Errorf("%w: order type %q", ErrInvalidParameter, r.Type)
	}

	for name, v := range map[string]*decimal.Decimal{"size": r.Size, "funds": r.Funds, "price": r.Price, "stop_price": r.StopPrice} {
		if v != nil && !v.IsPositive() {
			return fmt.Errorf("%w: %s must be positive", ErrInvalidParameter, name)
		}
	}
	return nil
}

// Order is the exchange's view of a submitted order.
type Order struct {
	ID            string          `json:"id"`
	ClientOID     string          `json:"client_oid,omitempty"`
	ProductID     string          `json:"product_id"`
	Side          Side            `json:"side"`
	Type          OrderType       `json:"type"`
	Price         decimal.Decimal `json:"price"`
	Size          decimal.Decimal `json:"size"`
	Funds         decimal.Decimal `json:"funds"`
	STP           string          `json:"stp"`
	TimeInForce   string          `json:"time_in_force"`
	PostOnly      bool            `json:"post_only"`
	CreatedAt     string          `json:"created_at"`
	DoneAt        string          `json:"done_at,omitempty"`
	DoneReason    string          `json:"done_reason,omitempty"`
	FillFees      decimal.Decimal `json:"fill_fees"`
	FilledSize    decimal.Decimal `json:"filled_size"`
	ExecutedValue decimal.Decimal `json:"executed_value"`
	Status        string          `json:"status"`
	Settled       bool            `json:"settled"`
}

// Fill is a partial or complete match of one of the profile's orders.
type Fill struct {
	TradeID   int64           `json:"trade_id"`
	ProductID string          `json:"product_id"`
	OrderID   string          `json:"order_id"`
	Price     decimal.Decimal `json:"price"`
	Size      decimal.Decimal `json:"size"`
	Fee       decimal.Decimal `json:"fee"`
	Side      Side            `json:"side"`
	Liquidity string          `json:"liquidity"`
	Settled   bool            `json:"settled"`
	CreatedAt string          `json:"created_at"`
}
