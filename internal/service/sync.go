package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"zoho-mirror-api/internal/model"
	"zoho-mirror-api/internal/pubsub"
	"zoho-mirror-api/internal/repository"
	"zoho-mirror-api/internal/zoho"
	"zoho-mirror-api/pkg/uid"
)

// ErrStorageUnavailable wraps mirror store failures so handlers can
// distinguish them from remote API failures.
var ErrStorageUnavailable = errors.New("mirror store unavailable")

// SyncResult summarizes one completed sync run.
type SyncResult struct {
	Fetched  int `json:"fetched"`
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
	Skipped  int `json:"skipped"`
}

// DateRange restricts a sales order sync. Date wins over Start/End; an
// empty range defaults to today in the configured time zone.
type DateRange struct {
	Date  string `json:"date"`
	Start string `json:"date_start"`
	End   string `json:"date_end"`
}

// SyncService runs the fetch/normalize/reconcile pipeline: pull the
// remote collection, map it into the typed local form, diff it against
// the mirror and apply only effective changes, then publish one change
// event per effective record.
type SyncService struct {
	items  repository.ItemStore
	orders repository.SalesOrderStore
	config repository.ConfigStore
	runs   repository.RunLogStore
	client *zoho.Client
	pub    pubsub.Publisher
	loc    *time.Location
}

// NewSyncService creates the synchronization engine.
func NewSyncService(
	items repository.ItemStore,
	orders repository.SalesOrderStore,
	config repository.ConfigStore,
	runs repository.RunLogStore,
	client *zoho.Client,
	pub pubsub.Publisher,
	loc *time.Location,
) *SyncService {
	if loc == nil {
		loc = time.UTC
	}
	return &SyncService{
		items:  items,
		orders: orders,
		config: config,
		runs:   runs,
		client: client,
		pub:    pub,
		loc:    loc,
	}
}

// SyncItems mirrors the full item collection.
func (s *SyncService) SyncItems(ctx context.Context) (*SyncResult, error) {
	return s.recordRun(ctx, model.RunKindItems, func() (*SyncResult, error) {
		return s.syncItems(ctx)
	})
}

// SyncOrders mirrors the sales order collection for the given date
// range (today when empty).
func (s *SyncService) SyncOrders(ctx context.Context, dr DateRange) (*SyncResult, error) {
	return s.recordRun(ctx, model.RunKindOrders, func() (*SyncResult, error) {
		return s.syncOrders(ctx, dr)
	})
}

// recordRun wraps a sync pass with run log bookkeeping. The run log is
// best-effort: a failed insert never fails the sync itself.
func (s *SyncService) recordRun(ctx context.Context, kind string, fn func() (*SyncResult, error)) (*SyncResult, error) {
	started := time.Now()
	result, err := fn()
	finished := time.Now()

	run := &model.SyncRun{
		ID:         uid.New(),
		Kind:       kind,
		StartedAt:  started,
		FinishedAt: finished,
		DurationMs: finished.Sub(started).Milliseconds(),
	}
	if err != nil {
		run.Status = model.RunStatusFailed
		run.Error = err.Error()
	} else {
		run.Status = model.RunStatusSuccess
		run.Fetched = result.Fetched
		run.Inserted = result.Inserted
		run.Updated = result.Updated
		run.Skipped = result.Skipped
	}

	if insertErr := s.runs.Insert(ctx, run); insertErr != nil {
		log.Printf("[SyncService] Failed to record %s run: %v", kind, insertErr)
	}

	return result, err
}

func (s *SyncService) syncItems(ctx context.Context) (*SyncResult, error) {
	cfg, err := s.config.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	if !cfg.Connected() {
		return nil, zoho.ErrNotConfigured
	}

	raws, err := s.client.FetchItems(ctx, cfg.OrgID)
	if err != nil {
		return nil, err
	}
	log.Printf("[SyncService] Fetched %d items", len(raws))

	// Normalize; malformed records are dropped, not fatal.
	byID := make(map[int64]model.Item, len(raws))
	order := make([]int64, 0, len(raws))
	for _, raw := range raws {
		it, err := zoho.NormalizeItem(raw, s.loc)
		if err != nil {
			log.Printf("[SyncService] Dropping malformed item record: %v", err)
			continue
		}
		if _, seen := byID[it.ItemID]; !seen {
			order = append(order, it.ItemID)
		}
		byID[it.ItemID] = it // last occurrence wins
	}

	existing, err := s.items.ExistingIDs(ctx, order)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	var inserts, updates []model.Item
	skippedUnchanged := 0
	for _, id := range order {
		it := byID[id]
		stored, ok := existing[id]
		if !ok {
			inserts = append(inserts, it)
			continue
		}
		if !stored.IsZero() && it.LastModifiedTime != nil && stored.Equal(*it.LastModifiedTime) {
			skippedUnchanged++
			continue
		}
		updates = append(updates, it)
	}

	applied, err := s.items.ApplyChangeSet(ctx, inserts, updates)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	for _, key := range applied.InsertedIDs {
		s.publishItem(ctx, model.EventCreated, byID, key)
	}
	for _, key := range applied.UpdatedIDs {
		s.publishItem(ctx, model.EventUpdated, byID, key)
	}

	s.touchLastSync(ctx)

	return &SyncResult{
		Fetched:  len(raws),
		Inserted: len(applied.InsertedIDs),
		Updated:  len(applied.UpdatedIDs),
		Skipped:  skippedUnchanged + len(applied.SkippedIDs),
	}, nil
}

func (s *SyncService) syncOrders(ctx context.Context, dr DateRange) (*SyncResult, error) {
	cfg, err := s.config.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	if !cfg.Connected() {
		return nil, zoho.ErrNotConfigured
	}

	summaries, err := s.client.FetchSalesOrders(ctx, cfg.OrgID, s.dateParams(dr))
	if err != nil {
		return nil, err
	}
	log.Printf("[SyncService] Fetched %d salesorder summaries", len(summaries))

	// The list endpoint returns summaries; each order needs a detail
	// fetch before it carries line items and addresses.
	ids := make([]string, 0, len(summaries))
	for _, raw := range summaries {
		id, ok := salesOrderID(raw)
		if !ok {
			log.Printf("[SyncService] Dropping salesorder summary without id")
			continue
		}
		ids = append(ids, id)
	}

	details := s.client.ResolveOrderDetails(ctx, cfg.OrgID, ids)

	byID := make(map[string]model.SalesOrder, len(details))
	order := make([]string, 0, len(details))
	for _, raw := range details {
		so, err := zoho.NormalizeSalesOrder(raw, s.loc)
		if err != nil {
			log.Printf("[SyncService] Dropping malformed salesorder record: %v", err)
			continue
		}
		if _, seen := byID[so.SalesOrderID]; !seen {
			order = append(order, so.SalesOrderID)
		}
		byID[so.SalesOrderID] = so
	}

	existing, err := s.orders.ExistingIDs(ctx, order)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	var inserts, updates []model.SalesOrder
	skippedUnchanged := 0
	for _, id := range order {
		so := byID[id]
		stored, ok := existing[id]
		if !ok {
			inserts = append(inserts, so)
			continue
		}
		if !stored.IsZero() && so.LastModifiedTime != nil && stored.Equal(*so.LastModifiedTime) {
			skippedUnchanged++
			continue
		}
		updates = append(updates, so)
	}

	applied, err := s.orders.ApplyChangeSet(ctx, inserts, updates)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	for _, key := range applied.InsertedIDs {
		s.publishOrder(ctx, model.EventCreated, byID, key)
	}
	for _, key := range applied.UpdatedIDs {
		s.publishOrder(ctx, model.EventUpdated, byID, key)
	}

	s.touchLastSync(ctx)

	return &SyncResult{
		Fetched:  len(summaries),
		Inserted: len(applied.InsertedIDs),
		Updated:  len(applied.UpdatedIDs),
		Skipped:  skippedUnchanged + len(applied.SkippedIDs),
	}, nil
}

// dateParams maps a DateRange to the list endpoint's query parameters.
func (s *SyncService) dateParams(dr DateRange) map[string]string {
	if dr.Date != "" {
		return map[string]string{"date": dr.Date}
	}
	if dr.Start != "" || dr.End != "" {
		params := map[string]string{}
		if dr.Start != "" {
			params["date_start"] = dr.Start
		}
		if dr.End != "" {
			params["date_end"] = dr.End
		}
		return params
	}
	return map[string]string{"date": time.Now().In(s.loc).Format("2006-01-02")}
}

func (s *SyncService) publishItem(ctx context.Context, eventType string, byID map[int64]model.Item, key string) {
	id, err := strconv.ParseInt(key, 10, 64)
	if err != nil {
		return
	}
	it, ok := byID[id]
	if !ok {
		return
	}
	if err := s.pub.Publish(ctx, model.GroupItems, model.ItemEvent(eventType, &it)); err != nil {
		log.Printf("[SyncService] Failed to publish item %s event: %v", eventType, err)
	}
}

func (s *SyncService) publishOrder(ctx context.Context, eventType string, byID map[string]model.SalesOrder, key string) {
	so, ok := byID[key]
	if !ok {
		return
	}
	if err := s.pub.Publish(ctx, model.GroupSalesOrders, model.SalesOrderEvent(eventType, &so)); err != nil {
		log.Printf("[SyncService] Failed to publish salesorder %s event: %v", eventType, err)
	}
}

// touchLastSync stamps the credential record. Best-effort.
func (s *SyncService) touchLastSync(ctx context.Context) {
	cfg, err := s.config.Get(ctx)
	if err != nil {
		log.Printf("[SyncService] Failed to load credential record for sync stamp: %v", err)
		return
	}
	now := time.Now()
	cfg.LastSyncTime = &now
	if err := s.config.Save(ctx, cfg); err != nil {
		log.Printf("[SyncService] Failed to stamp last sync time: %v", err)
	}
}

// salesOrderID extracts the id from a summary record, tolerating both
// string and numeric encodings.
func salesOrderID(raw json.RawMessage) (string, bool) {
	var summary struct {
		SalesOrderID json.RawMessage `json:"salesorder_id"`
	}
	if err := json.Unmarshal(raw, &summary); err != nil || len(summary.SalesOrderID) == 0 {
		return "", false
	}

	var asString string
	if err := json.Unmarshal(summary.SalesOrderID, &asString); err == nil && asString != "" {
		return asString, true
	}
	var asNumber int64
	if err := json.Unmarshal(summary.SalesOrderID, &asNumber); err == nil {
		return strconv.FormatInt(asNumber, 10), true
	}
	return "", false
}
