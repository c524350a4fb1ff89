package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"cbtrader/exchange"
	"cbtrader/models"
)

func TestExitCode(t *testing.T) {
	authErr := fmt.Errorf("tick: %w", &exchange.TransportError{Method: http.MethodGet, Path: "/accounts", StatusCode: http.StatusForbidden})
	tests := []struct {
		err  error
		want int
	}{
		{nil, exitOK},
		{errors.New("failed to read config file"), exitConfig},
		{authErr, exitAuth},
		{&exchange.TransportError{Method: http.MethodGet, Path: "/time", StatusCode: http.StatusBadGateway}, exitConfig},
	}
	for _, tt := range tests {
		if got := exitCode(tt.err); got != tt.want {
			t.Errorf("exitCode(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

type stubClock struct {
	st  models.ServerTime
	err error
}

func (s stubClock) ServerTime(context.Context) (*models.ServerTime, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &s.st, nil
}

func TestCheckClockSkew(t *testing.T) {
	local := time.Unix(1700000045, 0)
	skew, err := checkClockSkew(context.Background(), stubClock{st: models.ServerTime{Epoch: 1700000000}}, 30*time.Second, func() time.Time { return local })
	if err != nil {
		t.Fatalf("checkClockSkew: %v", err)
	}
	if skew != 45*time.Second {
		t.Fatalf("skew = %s", skew)
	}

	boom := errors.New("unreachable")
	if _, err := checkClockSkew(context.Background(), stubClock{err: boom}, time.Second, time.Now); !errors.Is(err, boom) {
		t.Fatalf("expected error, got %v", err)
	}
}

type stubAccounts struct {
	err error
}

func (s stubAccounts) Accounts(context.Context) ([]models.Account, error) {
	return nil, s.err
}

func TestVerifyCredentials(t *testing.T) {
	ctx := context.Background()
	if err := verifyCredentials(ctx, stubAccounts{}); err != nil {
		t.Fatalf("accepted credentials: %v", err)
	}
	if err := verifyCredentials(ctx, stubAccounts{err: errors.New("timeout")}); err != nil {
		t.Fatalf("network failure must not stop startup: %v", err)
	}
	rejected := &exchange.TransportError{Method: http.MethodGet, Path: "/accounts", StatusCode: http.StatusUnauthorized}
	if err := verifyCredentials(ctx, stubAccounts{err: rejected}); exitCode(err) != exitAuth {
		t.Fatalf("expected auth failure, got %v", err)
	}
}

func TestPrintBalances(t *testing.T) {
	var out bytes.Buffer
	cmd := balancesCmd()
	cmd.SetOut(&out)

	err := printBalances(cmd, []models.Account{
		{Currency: "BTC", Balance: decimal.RequireFromString("0.5"), Available: decimal.RequireFromString("0.4"), Hold: decimal.RequireFromString("0.1")},
	})
	if err != nil {
		t.Fatalf("printBalances: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[0], "CURRENCY") || strings.Join(strings.Fields(lines[1]), " ") != "BTC 0.5 0.4 0.1" {
		t.Fatalf("unexpected output:\n%s", out.String())
	}
}

func TestRootCommandLoadsConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	data := "trader:\n  name: cbtrader\n  version: 9.9.9\nlogging:\n  level: info\n  format: json\n  output: stdout\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("APP_ENV", "")
	t.Setenv("LOG_LEVEL", "")

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"--config", path, "--env-file", filepath.Join(dir, "missing.env"), "version"})
	if err := root.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if strings.TrimSpace(out.String()) != "cbtrader version 9.9.9" {
		t.Fatalf("unexpected output %q", out.String())
	}
}

func TestRootCommandMissingConfig(t *testing.T) {
	root := newRootCmd()
	root.SetArgs([]string{"--config", filepath.Join(t.TempDir(), "nope.yml"), "version"})
	err := root.Execute()
	if err == nil || exitCode(err) != exitConfig {
		t.Fatalf("expected config failure, got %v", err)
	}
}
