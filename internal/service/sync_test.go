package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zoho-mirror-api/internal/model"
	"zoho-mirror-api/internal/repository"
	"zoho-mirror-api/internal/zoho"
)

// --- in-memory fakes ---

type fakeConfigStore struct {
	mu  sync.Mutex
	cfg model.ZohoConfig
}

func (s *fakeConfigStore) Get(_ context.Context) (*model.ZohoConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg := s.cfg
	return &cfg, nil
}

func (s *fakeConfigStore) Save(_ context.Context, cfg *model.ZohoConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = *cfg
	return nil
}

func (s *fakeConfigStore) Close() error { return nil }

type fakeItemStore struct {
	mu   sync.Mutex
	rows map[int64]model.Item
}

func newFakeItemStore() *fakeItemStore {
	return &fakeItemStore{rows: make(map[int64]model.Item)}
}

func (s *fakeItemStore) ExistingIDs(_ context.Context, ids []int64) (map[int64]time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing := make(map[int64]time.Time)
	for _, id := range ids {
		if it, ok := s.rows[id]; ok {
			var lm time.Time
			if it.LastModifiedTime != nil {
				lm = *it.LastModifiedTime
			}
			existing[id] = lm
		}
	}
	return existing, nil
}

func (s *fakeItemStore) ApplyChangeSet(_ context.Context, inserts, updates []model.Item) (repository.ApplyResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result repository.ApplyResult
	for _, it := range inserts {
		key := jsonKey(it.ItemID)
		if _, ok := s.rows[it.ItemID]; ok {
			result.SkippedIDs = append(result.SkippedIDs, key)
			continue
		}
		s.rows[it.ItemID] = it
		result.InsertedIDs = append(result.InsertedIDs, key)
	}
	for _, it := range updates {
		key := jsonKey(it.ItemID)
		if _, ok := s.rows[it.ItemID]; !ok {
			result.SkippedIDs = append(result.SkippedIDs, key)
			continue
		}
		s.rows[it.ItemID] = it
		result.UpdatedIDs = append(result.UpdatedIDs, key)
	}
	return result, nil
}

func (s *fakeItemStore) DeleteStale(_ context.Context, _ time.Time) ([]model.Item, error) {
	return nil, nil
}

func (s *fakeItemStore) Stats(_ context.Context) (map[string]interface{}, error) {
	return map[string]interface{}{}, nil
}

func (s *fakeItemStore) Close() error { return nil }

func jsonKey(id int64) string {
	return strconv.FormatInt(id, 10)
}

type fakeOrderStore struct {
	mu   sync.Mutex
	rows map[string]model.SalesOrder
}

func newFakeOrderStore() *fakeOrderStore {
	return &fakeOrderStore{rows: make(map[string]model.SalesOrder)}
}

func (s *fakeOrderStore) ExistingIDs(_ context.Context, ids []string) (map[string]time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing := make(map[string]time.Time)
	for _, id := range ids {
		if so, ok := s.rows[id]; ok {
			var lm time.Time
			if so.LastModifiedTime != nil {
				lm = *so.LastModifiedTime
			}
			existing[id] = lm
		}
	}
	return existing, nil
}

func (s *fakeOrderStore) ApplyChangeSet(_ context.Context, inserts, updates []model.SalesOrder) (repository.ApplyResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result repository.ApplyResult
	for _, so := range inserts {
		if _, ok := s.rows[so.SalesOrderID]; ok {
			result.SkippedIDs = append(result.SkippedIDs, so.SalesOrderID)
			continue
		}
		s.rows[so.SalesOrderID] = so
		result.InsertedIDs = append(result.InsertedIDs, so.SalesOrderID)
	}
	for _, so := range updates {
		if _, ok := s.rows[so.SalesOrderID]; !ok {
			result.SkippedIDs = append(result.SkippedIDs, so.SalesOrderID)
			continue
		}
		s.rows[so.SalesOrderID] = so
		result.UpdatedIDs = append(result.UpdatedIDs, so.SalesOrderID)
	}
	return result, nil
}

func (s *fakeOrderStore) DeleteStale(_ context.Context, _ time.Time) ([]model.SalesOrder, error) {
	return nil, nil
}

func (s *fakeOrderStore) Stats(_ context.Context) (map[string]interface{}, error) {
	return map[string]interface{}{}, nil
}

func (s *fakeOrderStore) Close() error { return nil }

type fakeRunLog struct {
	mu   sync.Mutex
	runs []model.SyncRun
}

func (l *fakeRunLog) Insert(_ context.Context, run *model.SyncRun) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.runs = append(l.runs, *run)
	return nil
}

func (l *fakeRunLog) List(_ context.Context, limit, offset int) ([]model.SyncRun, int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]model.SyncRun(nil), l.runs...), int64(len(l.runs)), nil
}

func (l *fakeRunLog) Close() error { return nil }

type recordedEvent struct {
	Group string
	Event model.ChangeEvent
}

type fakePublisher struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (p *fakePublisher) Publish(_ context.Context, group string, event model.ChangeEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, recordedEvent{Group: group, Event: event})
	return nil
}

func (p *fakePublisher) Close() error { return nil }

func (p *fakePublisher) byType(eventType string) []recordedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []recordedEvent
	for _, e := range p.events {
		if e.Event.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

func (p *fakePublisher) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = nil
}

// --- stub remote ---

// stubZoho serves a fixed item collection plus the token endpoint.
type stubZoho struct {
	mu    sync.Mutex
	items []map[string]interface{}
}

func (z *stubZoho) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/v2/token", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"access_token": "stub-token"})
	})
	mux.HandleFunc("/items", func(w http.ResponseWriter, r *http.Request) {
		z.mu.Lock()
		items := z.items
		z.mu.Unlock()
		json.NewEncoder(w).Encode(map[string]interface{}{
			"items":        items,
			"page_context": map[string]bool{"has_more_page": false},
		})
	})
	return mux
}

func newTestSyncService(t *testing.T, srvURL string, items *fakeItemStore, orders *fakeOrderStore, pub *fakePublisher, runs *fakeRunLog) *SyncService {
	t.Helper()
	config := &fakeConfigStore{cfg: model.ZohoConfig{
		ID:           1,
		ClientID:     "client",
		ClientSecret: "secret",
		OrgID:        "700000",
		RedirectURI:  "http://localhost/callback",
		RefreshToken: "refresh",
	}}
	provider := zoho.NewTokenProvider(config, srvURL, time.Second)
	client := zoho.NewClient(zoho.ClientConfig{BaseURL: srvURL, Timeout: time.Second, Workers: 2}, provider)
	return NewSyncService(items, orders, config, runs, client, pub, time.UTC)
}

func TestSyncItemsPartitionsBatch(t *testing.T) {
	stub := &stubZoho{items: []map[string]interface{}{
		{"item_id": 1, "name": "alpha", "last_modified_time": "2024-03-01T10:00:00-0600"},
		{"item_id": 2, "name": "beta", "last_modified_time": "2024-03-01T11:00:00-0600"},
		{"item_id": 3, "name": "gamma", "last_modified_time": "2024-03-01T12:00:00-0600"},
	}}
	srv := httptest.NewServer(stub.handler())
	defer srv.Close()

	items := newFakeItemStore()
	orders := newFakeOrderStore()
	pub := &fakePublisher{}
	runs := &fakeRunLog{}
	svc := newTestSyncService(t, srv.URL, items, orders, pub, runs)

	// First run: everything is new.
	result, err := svc.SyncItems(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, result.Fetched)
	assert.Equal(t, 3, result.Inserted)
	assert.Equal(t, 0, result.Updated)
	assert.Equal(t, 0, result.Skipped)
	assert.Equal(t, result.Fetched, result.Inserted+result.Updated+result.Skipped)

	created := pub.byType(model.EventCreated)
	require.Len(t, created, 3)
	for _, e := range created {
		assert.Equal(t, model.GroupItems, e.Group)
	}
	pub.reset()

	// Second identical run: idempotent, no writes, no events.
	result, err = svc.SyncItems(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, result.Fetched)
	assert.Equal(t, 0, result.Inserted)
	assert.Equal(t, 0, result.Updated)
	assert.Equal(t, 3, result.Skipped)
	assert.Empty(t, pub.events)

	// Third run with one modified record: exactly one update event.
	stub.mu.Lock()
	stub.items[1]["name"] = "beta-renamed"
	stub.items[1]["last_modified_time"] = "2024-03-02T09:00:00-0600"
	stub.mu.Unlock()

	result, err = svc.SyncItems(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, result.Inserted)
	assert.Equal(t, 1, result.Updated)
	assert.Equal(t, 2, result.Skipped)

	updated := pub.byType(model.EventUpdated)
	require.Len(t, updated, 1)
	payload, ok := updated[0].Event.Payload.(model.ItemEventPayload)
	require.True(t, ok)
	assert.Equal(t, int64(2), payload.ItemID)
	assert.Equal(t, "beta-renamed", payload.Name)

	// Every run was logged.
	logged, total, err := runs.List(context.Background(), 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	for _, run := range logged {
		assert.Equal(t, model.RunKindItems, run.Kind)
		assert.Equal(t, model.RunStatusSuccess, run.Status)
	}
}

func TestSyncItemsDropsMalformedRecords(t *testing.T) {
	stub := &stubZoho{items: []map[string]interface{}{
		{"item_id": 1, "name": "good"},
		{"name": "no id"},
	}}
	srv := httptest.NewServer(stub.handler())
	defer srv.Close()

	items := newFakeItemStore()
	pub := &fakePublisher{}
	svc := newTestSyncService(t, srv.URL, items, newFakeOrderStore(), pub, &fakeRunLog{})

	result, err := svc.SyncItems(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Fetched)
	assert.Equal(t, 1, result.Inserted)
}

func TestSyncItemsNotConfigured(t *testing.T) {
	items := newFakeItemStore()
	pub := &fakePublisher{}
	runs := &fakeRunLog{}

	config := &fakeConfigStore{cfg: model.ZohoConfig{ID: 1}}
	provider := zoho.NewTokenProvider(config, "http://127.0.0.1:0", time.Second)
	client := zoho.NewClient(zoho.ClientConfig{BaseURL: "http://127.0.0.1:0", Timeout: time.Second}, provider)
	svc := NewSyncService(items, newFakeOrderStore(), config, runs, client, pub, time.UTC)

	_, err := svc.SyncItems(context.Background())
	assert.ErrorIs(t, err, zoho.ErrNotConfigured)

	// Failed runs are logged too.
	logged, _, _ := runs.List(context.Background(), 10, 0)
	require.Len(t, logged, 1)
	assert.Equal(t, model.RunStatusFailed, logged[0].Status)
	assert.NotEmpty(t, logged[0].Error)
}

func TestSyncOrdersResolvesDetails(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/v2/token", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"access_token": "stub-token"})
	})

	var listedDate string
	mux.HandleFunc("/salesorders", func(w http.ResponseWriter, r *http.Request) {
		listedDate = r.URL.Query().Get("date")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"salesorders": []map[string]interface{}{
				{"salesorder_id": "901", "salesorder_number": "SO-001"},
				{"salesorder_id": "902", "salesorder_number": "SO-002"},
			},
			"page_context": map[string]bool{"has_more_page": false},
		})
	})
	mux.HandleFunc("/salesorders/901", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"salesorder": map[string]interface{}{
				"salesorder_id":     "901",
				"salesorder_number": "SO-001",
				"status":            "confirmed",
				"line_items":        []map[string]interface{}{{"item_id": "1"}},
			},
		})
	})
	mux.HandleFunc("/salesorders/902", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound) // detail fetch fails, record dropped
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	orders := newFakeOrderStore()
	pub := &fakePublisher{}
	svc := newTestSyncService(t, srv.URL, newFakeItemStore(), orders, pub, &fakeRunLog{})

	result, err := svc.SyncOrders(context.Background(), DateRange{})
	require.NoError(t, err)

	// Empty range defaults to today's orders.
	assert.Equal(t, time.Now().UTC().Format("2006-01-02"), listedDate)

	assert.Equal(t, 2, result.Fetched)
	assert.Equal(t, 1, result.Inserted)

	created := pub.byType(model.EventCreated)
	require.Len(t, created, 1)
	assert.Equal(t, model.GroupSalesOrders, created[0].Group)
	payload, ok := created[0].Event.Payload.(model.SalesOrderEventPayload)
	require.True(t, ok)
	assert.Equal(t, "901", payload.SalesOrderID)
	assert.Equal(t, "SO-001", payload.SalesOrderNumber)
	assert.JSONEq(t, `[{"item_id": "1"}]`, string(payload.LineItems))
}

func TestSyncOrdersExplicitRange(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/v2/token", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"access_token": "stub-token"})
	})

	var start, end string
	mux.HandleFunc("/salesorders", func(w http.ResponseWriter, r *http.Request) {
		start = r.URL.Query().Get("date_start")
		end = r.URL.Query().Get("date_end")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"salesorders":  []map[string]interface{}{},
			"page_context": map[string]bool{"has_more_page": false},
		})
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	svc := newTestSyncService(t, srv.URL, newFakeItemStore(), newFakeOrderStore(), &fakePublisher{}, &fakeRunLog{})

	result, err := svc.SyncOrders(context.Background(), DateRange{Start: "2024-03-01", End: "2024-03-15"})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Fetched)
	assert.Equal(t, "2024-03-01", start)
	assert.Equal(t, "2024-03-15", end)
}
