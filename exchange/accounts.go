package exchange

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"cbtrader/models"
)

// Accounts lists one account per currency held by the profile.
func (c *Client) Accounts(ctx context.Context) ([]models.Account, error) {
	var accounts []models.Account
	if err := c.SendJSON(ctx, Request{Method: http.MethodGet, Path: "/accounts", Private: true}, &accounts); err != nil {
		return nil, err
	}
	return accounts, nil
}

func (c *Client) Account(ctx context.Context, id string) (*models.Account, error) {
	var account models.Account
	path := "/accounts/" + url.PathEscape(id)
	if err := c.SendJSON(ctx, Request{Method: http.MethodGet, Path: path, Private: true}, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

// AccountHistory pages through the ledger of an account.
func (c *Client) AccountHistory(id string, query url.Values) (*Pager, error) {
	return c.Paginate(Request{Path: fmt.Sprintf("/accounts/%s/ledger", url.PathEscape(id)), Query: query, Private: true})
}

// AccountHolds pages through the active holds of an account.
func (c *Client) AccountHolds(id string, query url.Values) (*Pager, error) {
	return c.Paginate(Request{Path: fmt.Sprintf("/accounts/%s/holds", url.PathEscape(id)), Query: query, Private: true})
}
