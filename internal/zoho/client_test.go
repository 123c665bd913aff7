package zoho

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestProvider wires a token provider against a stub accounts server
// that always issues the same access token.
func newTestProvider(t *testing.T, refreshCalls *int64) (*TokenProvider, func()) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if refreshCalls != nil {
			atomic.AddInt64(refreshCalls, 1)
		}
		json.NewEncoder(w).Encode(map[string]string{"access_token": "test-token"})
	}))
	provider := NewTokenProvider(newMemConfigStore(connectedConfig()), srv.URL, time.Second)
	return provider, srv.Close
}

func listPage(records []map[string]interface{}, hasMore bool) map[string]interface{} {
	return map[string]interface{}{
		"items":        records,
		"page_context": map[string]bool{"has_more_page": hasMore},
	}
}

func TestFetchAllSinglePage(t *testing.T) {
	var pages []string
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		pages = append(pages, r.URL.Query().Get("page"))
		mu.Unlock()

		assert.Equal(t, "700000", r.URL.Query().Get("organization_id"))
		assert.Equal(t, "200", r.URL.Query().Get("per_page"))
		json.NewEncoder(w).Encode(listPage([]map[string]interface{}{
			{"item_id": 1}, {"item_id": 2},
		}, false))
	}))
	defer srv.Close()

	provider, closeAuth := newTestProvider(t, nil)
	defer closeAuth()
	client := NewClient(ClientConfig{BaseURL: srv.URL, Timeout: time.Second, Workers: 4}, provider)

	records, err := client.FetchItems(context.Background(), "700000")
	require.NoError(t, err)
	assert.Len(t, records, 2)

	// A terminal first page must not trigger any further requests.
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"1"}, pages)
}

func TestFetchAllMultiplePages(t *testing.T) {
	const totalPages = 5
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page := r.URL.Query().Get("page")
		var n int
		fmt.Sscanf(page, "%d", &n)
		if n > totalPages {
			json.NewEncoder(w).Encode(listPage(nil, false))
			return
		}
		json.NewEncoder(w).Encode(listPage([]map[string]interface{}{
			{"item_id": n},
		}, n < totalPages))
	}))
	defer srv.Close()

	provider, closeAuth := newTestProvider(t, nil)
	defer closeAuth()
	client := NewClient(ClientConfig{BaseURL: srv.URL, Timeout: time.Second, Workers: 3}, provider)

	records, err := client.FetchItems(context.Background(), "700000")
	require.NoError(t, err)
	assert.Len(t, records, totalPages)
}

func TestFetchRetriesOnceAfterUnauthorized(t *testing.T) {
	var refreshCalls int64
	var apiCalls int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt64(&apiCalls, 1) == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(listPage([]map[string]interface{}{{"item_id": 1}}, false))
	}))
	defer srv.Close()

	provider, closeAuth := newTestProvider(t, &refreshCalls)
	defer closeAuth()
	client := NewClient(ClientConfig{BaseURL: srv.URL, Timeout: time.Second}, provider)

	// Prime the cached token so the 401 forces a real refresh.
	_, err := provider.AccessToken(context.Background())
	require.NoError(t, err)

	records, err := client.FetchItems(context.Background(), "700000")
	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Equal(t, int64(2), atomic.LoadInt64(&apiCalls))
	assert.Equal(t, int64(2), atomic.LoadInt64(&refreshCalls))
}

func TestFetchAuthExpiredAfterSecondUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	provider, closeAuth := newTestProvider(t, nil)
	defer closeAuth()
	client := NewClient(ClientConfig{BaseURL: srv.URL, Timeout: time.Second}, provider)

	_, err := client.FetchItems(context.Background(), "700000")
	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, FetchAuthExpired, fetchErr.Kind)
}

func TestFetchRemoteRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"message": "internal error"}`))
	}))
	defer srv.Close()

	provider, closeAuth := newTestProvider(t, nil)
	defer closeAuth()
	client := NewClient(ClientConfig{BaseURL: srv.URL, Timeout: time.Second}, provider)

	_, err := client.FetchItems(context.Background(), "700000")
	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, FetchRemoteRejected, fetchErr.Kind)
	assert.Equal(t, http.StatusInternalServerError, fetchErr.Status)
}

func TestFetchUnreachable(t *testing.T) {
	provider, closeAuth := newTestProvider(t, nil)
	defer closeAuth()
	client := NewClient(ClientConfig{BaseURL: "http://127.0.0.1:1", Timeout: 200 * time.Millisecond}, provider)

	_, err := client.FetchItems(context.Background(), "700000")
	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, FetchUnreachable, fetchErr.Kind)
}

func TestResolveOrderDetailsDropsFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/salesorders/901":
			json.NewEncoder(w).Encode(map[string]interface{}{
				"salesorder": map[string]interface{}{"salesorder_id": "901"},
			})
		case "/salesorders/902":
			w.WriteHeader(http.StatusNotFound)
		case "/salesorders/903":
			json.NewEncoder(w).Encode(map[string]interface{}{
				"salesorder": map[string]interface{}{"salesorder_id": "903"},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	provider, closeAuth := newTestProvider(t, nil)
	defer closeAuth()
	client := NewClient(ClientConfig{BaseURL: srv.URL, Timeout: time.Second, Workers: 2}, provider)

	records := client.ResolveOrderDetails(context.Background(), "700000", []string{"901", "902", "903"})

	ids := make(map[string]bool)
	for _, raw := range records {
		var rec struct {
			SalesOrderID string `json:"salesorder_id"`
		}
		require.NoError(t, json.Unmarshal(raw, &rec))
		ids[rec.SalesOrderID] = true
	}
	assert.Len(t, records, 2)
	assert.True(t, ids["901"])
	assert.True(t, ids["903"])
}
