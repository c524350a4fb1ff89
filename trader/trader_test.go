package trader

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"cbtrader/config"
	"cbtrader/exchange"
	"cbtrader/models"
)

type stubAccounts struct {
	accounts []models.Account
	err      error
	calls    int
}

func (s *stubAccounts) Accounts(context.Context) ([]models.Account, error) {
	s.calls++
	return s.accounts, s.err
}

func account(currency, available string) models.Account {
	return models.Account{ID: strings.ToLower(currency), Currency: currency, Available: decimal.RequireFromString(available)}
}

func TestHasPositiveBalance(t *testing.T) {
	src := &stubAccounts{accounts: []models.Account{
		account("BTC", "0.00000000"),
		account("USD", "0.00100000"),
	}}
	g := NewGuard(src)
	ctx := context.Background()

	tests := []struct {
		currency string
		want     bool
	}{
		{"BTC", false},
		{"USD", true},
		{"usd", true},
	}
	for _, tt := range tests {
		got, err := g.HasPositiveBalance(ctx, tt.currency)
		if err != nil {
			t.Fatalf("%s: %v", tt.currency, err)
		}
		if got != tt.want {
			t.Errorf("%s: got %v, want %v", tt.currency, got, tt.want)
		}
	}
	if src.calls != len(tests) {
		t.Fatalf("balances must be fetched per call, got %d fetches", src.calls)
	}
}

func TestHasPositiveBalanceMissingAccount(t *testing.T) {
	g := NewGuard(&stubAccounts{accounts: []models.Account{account("USD", "10")}})
	ok, err := g.HasPositiveBalance(context.Background(), "ETH")
	if !errors.Is(err, models.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
	if ok || !strings.Contains(err.Error(), "ETH") {
		t.Fatalf("unexpected result %v, %v", ok, err)
	}
}

func TestHasPositiveBalanceTransportError(t *testing.T) {
	boom := errors.New("connection reset")
	g := NewGuard(&stubAccounts{err: boom})
	if _, err := g.HasPositiveBalance(context.Background(), "USD"); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

type stubPlacer struct {
	order *models.Order
	err   error

	size, funds *decimal.Decimal
	side        models.Side
	clientOIDs  []string
}

func (s *stubPlacer) PlaceMarketOrder(_ context.Context, product string, side models.Side, size, funds *decimal.Decimal, clientOID string) (*models.Order, error) {
	s.side, s.size, s.funds = side, size, funds
	s.clientOIDs = append(s.clientOIDs, clientOID)
	return s.order, s.err
}

func TestSubmitMarketOrder(t *testing.T) {
	p := &stubPlacer{order: &models.Order{ID: "o1", Status: "pending"}}
	e := NewExecutor(p)

	size := decimal.RequireFromString("0.001")
	for i := 0; i < 2; i++ {
		order, err := e.SubmitMarketOrder(context.Background(), "BTC-USD", models.SideSell, size)
		if err != nil {
			t.Fatalf("SubmitMarketOrder: %v", err)
		}
		if order.ID != "o1" {
			t.Fatalf("unexpected order %+v", order)
		}
	}
	if p.side != models.SideSell || p.funds != nil || !p.size.Equal(size) {
		t.Fatalf("unexpected submission: side=%s size=%v funds=%v", p.side, p.size, p.funds)
	}
	if len(p.clientOIDs) != 2 || p.clientOIDs[0] == p.clientOIDs[1] {
		t.Fatalf("client order ids must be unique per submission: %v", p.clientOIDs)
	}
	for _, id := range p.clientOIDs {
		if _, err := uuid.Parse(id); err != nil {
			t.Fatalf("client order id %q is not a UUID", id)
		}
	}
}

func TestSubmitMarketOrderRejected(t *testing.T) {
	rejected := &exchange.TransportError{Method: http.MethodPost, Path: "/orders", StatusCode: http.StatusBadRequest, Body: `{"message":"Insufficient funds"}`}
	e := NewExecutor(&stubPlacer{err: rejected})

	_, err := e.SubmitMarketOrder(context.Background(), "BTC-USD", models.SideBuy, decimal.RequireFromString("1"))
	var te *exchange.TransportError
	if !errors.As(err, &te) || te.Message() != "Insufficient funds" {
		t.Fatalf("expected rejection to surface, got %v", err)
	}
}

func TestExecutorAgainstExchange(t *testing.T) {
	var body map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(exchange.HeaderAccessSign) == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		fmt.Fprintf(w, `{"id":"srv-1","client_oid":%q,"product_id":"BTC-USD","side":"buy","type":"market","status":"pending"}`, body["client_oid"])
	}))
	defer srv.Close()

	creds := config.Credentials{Key: "k", Secret: base64.StdEncoding.EncodeToString([]byte("s")), Passphrase: "p"}
	client, err := exchange.NewClient(config.ExchangeConfig{BaseURL: srv.URL, Timeout: 5 * time.Second}, exchange.WithCredentials(creds))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	order, err := NewExecutor(client).SubmitMarketOrder(context.Background(), "BTC-USD", models.SideBuy, decimal.RequireFromString("0.001"))
	if err != nil {
		t.Fatalf("SubmitMarketOrder: %v", err)
	}
	if body["type"] != "market" || body["size"] != "0.001" || body["funds"] != "" {
		t.Fatalf("unexpected body %v", body)
	}
	if order.ClientOID == "" || order.ClientOID != body["client_oid"] {
		t.Fatalf("client_oid not sent: %+v", order)
	}
}
