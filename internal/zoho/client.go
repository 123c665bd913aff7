package zoho

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Client drives the Zoho Inventory collection endpoints: paginated list
// fetches, per-record detail lookups and the single refresh-and-retry
// on an expired access token.
type Client struct {
	baseURL  string
	tokens   *TokenProvider
	http     *http.Client
	pageSize int
	workers  int
}

// ClientConfig holds client tuning.
type ClientConfig struct {
	BaseURL  string
	Timeout  time.Duration
	PageSize int
	Workers  int
}

// NewClient creates a Zoho API client.
func NewClient(cfg ClientConfig, tokens *TokenProvider) *Client {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 200
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 10
	}
	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		tokens:   tokens,
		http:     &http.Client{Timeout: cfg.Timeout},
		pageSize: cfg.PageSize,
		workers:  cfg.Workers,
	}
}

// pageContext is the pagination marker on list responses.
type pageContext struct {
	HasMorePage bool `json:"has_more_page"`
}

// pageResult is one fetched page.
type pageResult struct {
	page    int
	records []json.RawMessage
	hasMore bool
	err     error
}

// FetchItems fetches the full item collection.
func (c *Client) FetchItems(ctx context.Context, orgID string) ([]json.RawMessage, error) {
	base := url.Values{"organization_id": {orgID}}
	return c.FetchAll(ctx, c.baseURL+"/items", "items", base)
}

// FetchSalesOrders fetches the sales order collection, optionally
// restricted by date parameters (date, or date_start/date_end).
func (c *Client) FetchSalesOrders(ctx context.Context, orgID string, dateParams map[string]string) ([]json.RawMessage, error) {
	base := url.Values{"organization_id": {orgID}}
	for k, v := range dateParams {
		base.Set(k, v)
	}
	return c.FetchAll(ctx, c.baseURL+"/salesorders", "salesorders", base)
}

// FetchAll drives a paginated list endpoint to exhaustion. Page 1 is
// fetched alone so an immediately-terminal collection issues exactly
// one request; further pages go out in bounded concurrent waves. Any
// fatal error rejects the whole fetch: results from in-flight pages are
// discarded and no further pages are requested.
func (c *Client) FetchAll(ctx context.Context, endpoint, collectionKey string, base url.Values) ([]json.RawMessage, error) {
	first := c.fetchPage(ctx, endpoint, collectionKey, base, 1)
	if first.err != nil {
		return nil, first.err
	}
	out := first.records
	if !first.hasMore || len(first.records) == 0 {
		return out, nil
	}

	next := 2
	for {
		results := make([]pageResult, c.workers)
		var wg sync.WaitGroup
		for i := 0; i < c.workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i] = c.fetchPage(ctx, endpoint, collectionKey, base, next+i)
			}(i)
		}
		wg.Wait()

		var fatal error
		done := false
		for _, r := range results {
			if r.err != nil {
				if fatal == nil {
					fatal = r.err
				}
				continue
			}
			out = append(out, r.records...)
			if !r.hasMore || len(r.records) == 0 {
				done = true
			}
		}
		if fatal != nil {
			return nil, fatal
		}
		if done {
			return out, nil
		}
		next += c.workers
	}
}

// ResolveOrderDetails fetches the full detail record for each sales
// order id. Individual failures are logged and dropped; the next sync
// cycle naturally resumes them. The result is an unordered set.
func (c *Client) ResolveOrderDetails(ctx context.Context, orgID string, ids []string) []json.RawMessage {
	params := url.Values{"organization_id": {orgID}}

	jobs := make(chan string)
	var mu sync.Mutex
	var out []json.RawMessage

	var wg sync.WaitGroup
	for i := 0; i < c.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range jobs {
				record, err := c.fetchDetail(ctx, c.baseURL+"/salesorders/"+id, "salesorder", params)
				if err != nil {
					log.Printf("[ZohoClient] Dropping salesorder %s: detail fetch failed: %v", id, err)
					continue
				}
				mu.Lock()
				out = append(out, record)
				mu.Unlock()
			}
		}()
	}

feed:
	for _, id := range ids {
		select {
		case jobs <- id:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	return out
}

// fetchPage requests one list page and splits out its records.
func (c *Client) fetchPage(ctx context.Context, endpoint, collectionKey string, base url.Values, page int) pageResult {
	params := url.Values{}
	for k, v := range base {
		params[k] = v
	}
	params.Set("page", strconv.Itoa(page))
	params.Set("per_page", strconv.Itoa(c.pageSize))

	body, err := c.get(ctx, endpoint, params)
	if err != nil {
		return pageResult{page: page, err: err}
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return pageResult{page: page, err: &FetchError{
			Kind: FetchRemoteRejected, Status: http.StatusOK,
			Body: fmt.Sprintf("malformed list response: %v", err),
		}}
	}

	var records []json.RawMessage
	if raw, ok := envelope[collectionKey]; ok {
		if err := json.Unmarshal(raw, &records); err != nil {
			return pageResult{page: page, err: &FetchError{
				Kind: FetchRemoteRejected, Status: http.StatusOK,
				Body: fmt.Sprintf("malformed %q collection: %v", collectionKey, err),
			}}
		}
	}

	var pc pageContext
	if raw, ok := envelope["page_context"]; ok {
		_ = json.Unmarshal(raw, &pc)
	}

	return pageResult{page: page, records: records, hasMore: pc.HasMorePage}
}

// fetchDetail requests a single detail resource and unwraps its
// singular envelope key.
func (c *Client) fetchDetail(ctx context.Context, endpoint, singularKey string, params url.Values) (json.RawMessage, error) {
	body, err := c.get(ctx, endpoint, params)
	if err != nil {
		return nil, err
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("malformed detail response: %w", err)
	}
	record, ok := envelope[singularKey]
	if !ok {
		return nil, fmt.Errorf("detail response missing %q", singularKey)
	}
	return record, nil
}

// get performs an authorized GET. On a 401 it triggers exactly one
// coalesced token refresh and retries the same request once; a second
// 401 is fatal for the run.
func (c *Client) get(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	token, err := c.tokens.AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	body, status, err := c.do(ctx, endpoint, params, token)
	if err != nil {
		return nil, &FetchError{Kind: FetchUnreachable, Err: err}
	}

	if status == http.StatusUnauthorized {
		token, err = c.tokens.ForceRefresh(ctx)
		if err != nil {
			return nil, err
		}
		body, status, err = c.do(ctx, endpoint, params, token)
		if err != nil {
			return nil, &FetchError{Kind: FetchUnreachable, Err: err}
		}
		if status == http.StatusUnauthorized {
			return nil, &FetchError{Kind: FetchAuthExpired, Status: status, Body: string(body)}
		}
	}

	if status < 200 || status > 299 {
		return nil, &FetchError{Kind: FetchRemoteRejected, Status: status, Body: string(body)}
	}
	return body, nil
}

func (c *Client) do(ctx context.Context, endpoint string, params url.Values, token string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, 0, err
	}
	req.URL.RawQuery = params.Encode()
	req.Header.Set("Authorization", "Zoho-oauthtoken "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, 0, err
	}
	return body, resp.StatusCode, nil
}
