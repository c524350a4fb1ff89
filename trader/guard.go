// Package trader holds the balance guard and the order executor of the
// hourly loop.
package trader

import (
	"context"
	"fmt"
	"strings"

	"cbtrader/logger"
	"cbtrader/models"
)

// AccountLister lists the profile's accounts. *exchange.Client satisfies it.
type AccountLister interface {
	Accounts(ctx context.Context) ([]models.Account, error)
}

// Guard answers whether the profile holds a spendable balance of a
// currency. The answer is advisory: the exchange remains the authority on
// whether an order can be filled.
type Guard struct {
	accounts AccountLister
	log      *logger.Log
}

func NewGuard(accounts AccountLister) *Guard {
	return &Guard{accounts: accounts, log: logger.GetLogger()}
}

// Balance returns the account of currency, fetching the account list fresh.
func (g *Guard) Balance(ctx context.Context, currency string) (models.Account, error) {
	accounts, err := g.accounts.Accounts(ctx)
	if err != nil {
		return models.Account{}, fmt.Errorf("list accounts: %w", err)
	}
	for _, a := range accounts {
		if strings.EqualFold(a.Currency, currency) {
			return a, nil
		}
	}
	return models.Account{}, fmt.Errorf("%w: %s", models.ErrAccountNotFound, currency)
}

// HasPositiveBalance reports whether the available balance of currency is
// above zero. A currency with no account is an error, never false.
func (g *Guard) HasPositiveBalance(ctx context.Context, currency string) (bool, error) {
	acct, err := g.Balance(ctx, currency)
	if err != nil {
		return false, err
	}
	g.log.WithComponent("guard").WithFields(logger.Fields{
		"currency":  acct.Currency,
		"available": acct.Available.String(),
	}).Debug("balance checked")
	return acct.Available.IsPositive(), nil
}
