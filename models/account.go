package models

import "github.com/shopspring/decimal"

// Account is the balance record of one currency held by the profile.
type Account struct {
	ID        string          `json:"id"`
	Currency  string          `json:"currency"`
	Balance   decimal.Decimal `json:"balance"`
	Available decimal.Decimal `json:"available"`
	Hold      decimal.Decimal `json:"hold"`
	ProfileID string          `json:"profile_id"`
}

// LedgerEntry is one row of an account's activity history.
type LedgerEntry struct {
	ID        string                 `json:"id"`
	CreatedAt string                 `json:"created_at"`
	Amount    decimal.Decimal        `json:"amount"`
	Balance   decimal.Decimal        `json:"balance"`
	Type      string                 `json:"type"`
	Details   map[string]interface{} `json:"details"`
}

// Hold is funds reserved on an account by an open order or transfer.
type Hold struct {
	ID        string          `json:"id"`
	AccountID string          `json:"account_id"`
	CreatedAt string          `json:"created_at"`
	UpdatedAt string          `json:"updated_at"`
	Amount    decimal.Decimal `json:"amount"`
	Type      string          `json:"type"`
	Ref       string          `json:"ref"`
}
