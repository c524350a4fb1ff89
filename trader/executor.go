package trader

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"cbtrader/exchange"
	"cbtrader/internal/metrics"
	"cbtrader/logger"
	"cbtrader/models"
)

// OrderPlacer submits market orders. *exchange.Client satisfies it.
type OrderPlacer interface {
	PlaceMarketOrder(ctx context.Context, product string, side models.Side, size, funds *decimal.Decimal, clientOID string) (*models.Order, error)
}

// Executor submits fixed-size market orders, tagging each submission with a
// fresh client order id so a timed-out request can be reconciled.
type Executor struct {
	placer OrderPlacer
	newID  func() string
	log    *logger.Log
}

func NewExecutor(placer OrderPlacer) *Executor {
	return &Executor{placer: placer, newID: uuid.NewString, log: logger.GetLogger()}
}

// SubmitMarketOrder places a market order for size units of the product's
// base currency.
func (e *Executor) SubmitMarketOrder(ctx context.Context, product string, side models.Side, size decimal.Decimal) (*models.Order, error) {
	clientOID := e.newID()
	fields := logger.Fields{
		"product":    product,
		"side":       string(side),
		"size":       size.String(),
		"client_oid": clientOID,
	}
	log := e.log.WithComponent("executor").WithFields(fields)

	order, err := e.placer.PlaceMarketOrder(ctx, product, side, &size, nil, clientOID)
	if err != nil {
		metrics.IncrementOrder(string(side), "rejected")
		log.LogMetric("executor", "order_rejected", 1, "counter", logger.Fields{"side": string(side)})

		entry := log.WithError(err)
		var te *exchange.TransportError
		if errors.As(err, &te) {
			entry = entry.WithFields(logger.Fields{"status": te.StatusCode, "reason": te.Message()})
		}
		entry.Error("order rejected")
		return nil, fmt.Errorf("submit %s %s %s: %w", side, size, product, err)
	}

	metrics.IncrementOrder(string(side), "placed")
	log.LogMetric("executor", "order_placed", 1, "counter", logger.Fields{"side": string(side)})
	log.WithFields(logger.Fields{
		"order_id": order.ID,
		"status":   order.Status,
	}).Info("order placed")
	return order, nil
}
