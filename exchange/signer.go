package exchange

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cbtrader/config"
)

// Header names used by the exchange for API key authentication.
const (
	HeaderAccessKey        = "CB-ACCESS-KEY"
	HeaderAccessSign       = "CB-ACCESS-SIGN"
	HeaderAccessTimestamp  = "CB-ACCESS-TIMESTAMP"
	HeaderAccessPassphrase = "CB-ACCESS-PASSPHRASE"
)

// Signer derives the per-request authentication headers. The only state it
// holds is the immutable credential bundle; the timestamp is read from the
// clock on every call.
type Signer struct {
	key        string
	passphrase string
	secret     []byte
	now        func() time.Time
}

// NewSigner decodes the base64 secret once and returns a signer for creds.
func NewSigner(creds config.Credentials) (*Signer, error) {
	if creds.Key == "" || creds.Passphrase == "" {
		return nil, fmt.Errorf("signer: key and passphrase are required")
	}
	secret, err := base64.StdEncoding.DecodeString(creds.Secret)
	if err != nil {
		return nil, fmt.Errorf("signer: decode secret: %w", err)
	}
	return &Signer{
		key:        creds.Key,
		passphrase: creds.Passphrase,
		secret:     secret,
		now:        time.Now,
	}, nil
}

// Sign returns base64(HMAC-SHA256(secret, timestamp+method+requestPath+body)).
func (s *Signer) Sign(timestamp, method, requestPath, body string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(timestamp + strings.ToUpper(method) + requestPath + body))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Headers signs a request at the current time. requestPath must be the
// path and query exactly as sent.
func (s *Signer) Headers(method, requestPath, body string) http.Header {
	ts := FormatTimestamp(s.now())
	h := make(http.Header, 5)
	h.Set("Content-Type", "application/json")
	h.Set(HeaderAccessSign, s.Sign(ts, method, requestPath, body))
	h.Set(HeaderAccessTimestamp, ts)
	h.Set(HeaderAccessKey, s.key)
	h.Set(HeaderAccessPassphrase, s.passphrase)
	return h
}

// FormatTimestamp renders t as decimal seconds since the epoch with
// microsecond precision, e.g. "1700000000.123456".
func FormatTimestamp(t time.Time) string {
	return fmt.Sprintf("%d.%06d", t.Unix(), t.Nanosecond()/int(time.Microsecond))
}
