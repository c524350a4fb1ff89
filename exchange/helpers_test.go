package exchange

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cbtrader/config"
)

var (
	testSecret = []byte("test-secret-key-bytes")
	testCreds  = config.Credentials{
		Key:        "test-key",
		Secret:     base64.StdEncoding.EncodeToString(testSecret),
		Passphrase: "test-pass",
	}
)

// testExchangeConfig returns a configuration with no practical rate limit
// and millisecond retry delays.
func testExchangeConfig(baseURL string) config.ExchangeConfig {
	return config.ExchangeConfig{
		BaseURL:   baseURL,
		Timeout:   5 * time.Second,
		UserAgent: "cbtrader-test",
		RateLimit: config.RateLimitConfig{RequestsPerSecond: 1000, BurstSize: 1000},
		Retry: config.RetryConfig{
			MaxAttempts:       3,
			BaseDelay:         time.Millisecond,
			MaxDelay:          5 * time.Millisecond,
			BackoffMultiplier: 2,
		},
	}
}

func newTestClient(t *testing.T, baseURL string, opts ...Option) *Client {
	t.Helper()
	c, err := NewClient(testExchangeConfig(baseURL), opts...)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

// verifySignature recomputes the signature the way the exchange does.
func verifySignature(secret []byte, r *http.Request, body []byte) bool {
	ts := r.Header.Get(HeaderAccessTimestamp)
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(ts + r.Method + r.URL.RequestURI() + string(body)))
	want := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(want), []byte(r.Header.Get(HeaderAccessSign)))
}

// verifyingServer rejects requests whose signature does not match secret
// and hands the rest to next.
func verifyingServer(t *testing.T, secret []byte, next http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if r.Header.Get(HeaderAccessKey) != testCreds.Key || r.Header.Get(HeaderAccessPassphrase) != testCreds.Passphrase || !verifySignature(secret, r, body) {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"message":"invalid signature"}`))
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))
		next(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv
}
