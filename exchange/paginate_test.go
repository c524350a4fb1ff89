package exchange

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"cbtrader/models"
)

type record struct {
	ID int `json:"id"`
}

// pagedServer serves three pages of two records. Pages one and two carry
// a cursor; page three does not.
func pagedServer(t *testing.T, hits *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		switch r.URL.Query().Get("after") {
		case "":
			w.Header().Set(HeaderCursorAfter, "c1")
			fmt.Fprint(w, `[{"id":1},{"id":2}]`)
		case "c1":
			w.Header().Set(HeaderCursorAfter, "c2")
			fmt.Fprint(w, `[{"id":3},{"id":4}]`)
		case "c2":
			fmt.Fprint(w, `[{"id":5},{"id":6}]`)
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestPagerFollowsCursor(t *testing.T) {
	var hits int32
	srv := pagedServer(t, &hits)
	c := newTestClient(t, srv.URL)

	p, err := c.Paginate(Request{Path: "/products/BTC-USD/trades"})
	if err != nil {
		t.Fatalf("Paginate: %v", err)
	}
	var ids []int
	for p.Next(context.Background()) {
		var r record
		if err := p.Decode(&r); err != nil {
			t.Fatalf("decode: %v", err)
		}
		ids = append(ids, r.ID)
	}
	if err := p.Err(); err != nil {
		t.Fatalf("pager error: %v", err)
	}
	if fmt.Sprint(ids) != "[1 2 3 4 5 6]" {
		t.Fatalf("unexpected records: %v", ids)
	}
	if atomic.LoadInt32(&hits) != 3 {
		t.Fatalf("expected 3 page requests, got %d", atomic.LoadInt32(&hits))
	}
	if p.Next(context.Background()) {
		t.Fatal("exhausted pager yielded again")
	}
}

func TestPagerIsLazy(t *testing.T) {
	var hits int32
	srv := pagedServer(t, &hits)
	c := newTestClient(t, srv.URL)

	p, err := c.Paginate(Request{Path: "/fills"})
	if err != nil {
		t.Fatalf("Paginate: %v", err)
	}
	if atomic.LoadInt32(&hits) != 0 {
		t.Fatal("Paginate fetched eagerly")
	}
	for i := 0; i < 3 && p.Next(context.Background()); i++ {
	}
	if atomic.LoadInt32(&hits) != 2 {
		t.Fatalf("expected 2 page requests after 3 records, got %d", atomic.LoadInt32(&hits))
	}
}

func TestPagerBeforeStopsAfterOnePage(t *testing.T) {
	var hits int32
	srv := pagedServer(t, &hits)
	c := newTestClient(t, srv.URL)

	p, err := c.Trades("BTC-USD", map[string][]string{"before": {"100"}})
	if err != nil {
		t.Fatalf("Trades: %v", err)
	}
	got, err := Collect[record](context.Background(), p)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(got) != 2 || atomic.LoadInt32(&hits) != 1 {
		t.Fatalf("expected one page of 2 records, got %d records in %d requests", len(got), atomic.LoadInt32(&hits))
	}
}

func TestPaginateBeforeAndAfter(t *testing.T) {
	c := newTestClient(t, "http://unused.invalid")
	_, err := c.Paginate(Request{Path: "/fills", Query: map[string][]string{"before": {"1"}, "after": {"2"}}})
	if !errors.Is(err, models.ErrInvalidParameter) {
		t.Fatalf("expected ErrInvalidParameter, got %v", err)
	}
}

func TestPaginateDoesNotMutateCallerQuery(t *testing.T) {
	var hits int32
	srv := pagedServer(t, &hits)
	c := newTestClient(t, srv.URL)

	q := map[string][]string{"limit": {"2"}}
	p, err := c.Paginate(Request{Path: "/orders", Query: q})
	if err != nil {
		t.Fatalf("Paginate: %v", err)
	}
	if _, err := Collect[record](context.Background(), p); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if _, ok := q["after"]; ok {
		t.Fatal("caller query was modified")
	}
}

func TestPagerStopsOnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("after") == "" {
			w.Header().Set(HeaderCursorAfter, "c1")
			fmt.Fprint(w, `[{"id":1},{"id":2}]`)
			return
		}
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"message":"bad cursor"}`)
	}))
	defer srv.Close()
	c := newTestClient(t, srv.URL)

	p, err := c.Paginate(Request{Path: "/orders"})
	if err != nil {
		t.Fatalf("Paginate: %v", err)
	}
	got, err := Collect[record](context.Background(), p)
	if len(got) != 2 {
		t.Fatalf("expected records of first page, got %v", got)
	}
	var te *TransportError
	if !errors.As(err, &te) || te.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected TransportError, got %v", err)
	}
}

func TestPagerRepeatedCursorTerminates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(HeaderCursorAfter, "same")
		fmt.Fprint(w, `[{"id":1}]`)
	}))
	defer srv.Close()
	c := newTestClient(t, srv.URL)

	p, _ := c.Paginate(Request{Path: "/orders"})
	got, err := Collect[record](context.Background(), p)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 records before the repeated cursor, got %d", len(got))
	}
}
