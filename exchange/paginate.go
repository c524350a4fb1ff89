package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"cbtrader/models"
)

// HeaderCursorAfter carries the cursor of the next (older) page.
const HeaderCursorAfter = "CB-AFTER"

// Pager walks a cursor-paginated endpoint one record at a time. Pages are
// fetched on demand; a Pager is single-pass and must not be shared between
// goroutines.
//
//	p, err := client.Fills("BTC-USD", "")
//	for p.Next(ctx) {
//		var f models.Fill
//		if err := p.Decode(&f); err != nil { ... }
//	}
//	if err := p.Err(); err != nil { ... }
type Pager struct {
	client *Client
	req    Request
	single bool

	page []json.RawMessage
	idx  int
	cur  json.RawMessage
	done bool
	err  error
}

// Paginate prepares a paginated GET. The query may carry before, after and
// limit; before and after are mutually exclusive. When before is given
// only one page is fetched.
func (c *Client) Paginate(req Request) (*Pager, error) {
	q := url.Values{}
	for k, v := range req.Query {
		q[k] = append([]string(nil), v...)
	}
	if q.Get("before") != "" && q.Get("after") != "" {
		return nil, fmt.Errorf("%w: before and after are mutually exclusive", models.ErrInvalidParameter)
	}
	req.Method = http.MethodGet
	req.Query = q
	return &Pager{client: c, req: req, single: q.Get("before") != ""}, nil
}

// Next advances to the next record, fetching a new page when the current
// one is exhausted. It returns false at the end of the sequence or on error.
func (p *Pager) Next(ctx context.Context) bool {
	for {
		if p.err != nil {
			return false
		}
		if p.idx < len(p.page) {
			p.cur = p.page[p.idx]
			p.idx++
			return true
		}
		if p.done {
			p.cur = nil
			return false
		}
		p.fetch(ctx)
	}
}

func (p *Pager) fetch(ctx context.Context) {
	raw, header, err := p.client.do(ctx, p.req)
	if err != nil {
		p.err = err
		return
	}
	var page []json.RawMessage
	if err := json.Unmarshal(raw, &page); err != nil {
		p.err = &TransportError{Method: p.req.Method, Path: p.req.Path, StatusCode: http.StatusOK, Body: string(raw), Err: fmt.Errorf("decode page: %w", err)}
		return
	}
	p.page, p.idx = page, 0

	cursor := header.Get(HeaderCursorAfter)
	if cursor == "" || p.single || len(page) == 0 || cursor == p.req.Query.Get("after") {
		p.done = true
		return
	}
	p.req.Query.Set("after", cursor)
}

// Record returns the current raw record.
func (p *Pager) Record() json.RawMessage {
	return p.cur
}

// Decode unmarshals the current record into v.
func (p *Pager) Decode(v interface{}) error {
	if p.cur == nil {
		return fmt.Errorf("pager: no current record")
	}
	return json.Unmarshal(p.cur, v)
}

// Err returns the error that stopped iteration, if any.
func (p *Pager) Err() error {
	return p.err
}

// Collect drains p into a slice of T.
func Collect[T any](ctx context.Context, p *Pager) ([]T, error) {
	var out []T
	for p.Next(ctx) {
		var v T
		if err := p.Decode(&v); err != nil {
			return out, fmt.Errorf("decode %s record: %w", p.req.Path, err)
		}
		out = append(out, v)
	}
	return out, p.Err()
}
