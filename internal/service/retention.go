package service

import (
	"context"
	"log"
	"sync"
	"time"

	"zoho-mirror-api/internal/model"
	"zoho-mirror-api/internal/pubsub"
	"zoho-mirror-api/internal/repository"
)

// RetentionConfig holds configuration for the stale-record sweep.
type RetentionConfig struct {
	// Threshold is how long a record may go unseen by a sync before it
	// is considered gone from the remote. Default: 30 days.
	Threshold time.Duration

	// Interval is how often the sweep runs. Default: 24 hours.
	Interval time.Duration
}

// RetentionScheduler periodically removes mirror records that no sync
// has touched within the threshold, and publishes a deletion event for
// each removed record.
type RetentionScheduler struct {
	items     repository.ItemStore
	orders    repository.SalesOrderStore
	pub       pubsub.Publisher
	config    RetentionConfig
	ticker    *time.Ticker
	stopCh    chan struct{}
	stopOnce  sync.Once
	isRunning bool
	mu        sync.Mutex
}

// NewRetentionScheduler creates a new retention scheduler.
func NewRetentionScheduler(items repository.ItemStore, orders repository.SalesOrderStore, pub pubsub.Publisher, config RetentionConfig) *RetentionScheduler {
	if config.Threshold == 0 {
		config.Threshold = 30 * 24 * time.Hour
	}
	if config.Interval == 0 {
		config.Interval = 24 * time.Hour
	}

	return &RetentionScheduler{
		items:  items,
		orders: orders,
		pub:    pub,
		config: config,
		stopCh: make(chan struct{}),
	}
}

// Start begins the retention scheduler.
func (s *RetentionScheduler) Start() {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = true
	s.ticker = time.NewTicker(s.config.Interval)
	s.mu.Unlock()

	log.Printf("[RetentionScheduler] Started - Interval: %v, Threshold: %v",
		s.config.Interval, s.config.Threshold)

	go s.run()
}

// run is the main sweep loop.
func (s *RetentionScheduler) run() {
	for {
		select {
		case <-s.ticker.C:
			s.runSweep()
		case <-s.stopCh:
			log.Printf("[RetentionScheduler] Stopped")
			return
		}
	}
}

// runSweep performs the actual sweep.
func (s *RetentionScheduler) runSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	items, orders, err := s.sweep(ctx)
	if err != nil {
		log.Printf("[RetentionScheduler] Error during sweep: %v", err)
		return
	}

	if items+orders > 0 {
		log.Printf("[RetentionScheduler] Swept %d stale items, %d stale salesorders", items, orders)
	} else {
		log.Printf("[RetentionScheduler] No stale records to sweep")
	}
}

// sweep removes stale records from both mirrors and publishes deletion
// events for each.
func (s *RetentionScheduler) sweep(ctx context.Context) (int, int, error) {
	cutoff := time.Now().Add(-s.config.Threshold)

	staleItems, err := s.items.DeleteStale(ctx, cutoff)
	if err != nil {
		return 0, 0, err
	}
	for i := range staleItems {
		if err := s.pub.Publish(ctx, model.GroupItems, model.ItemEvent(model.EventDeleted, &staleItems[i])); err != nil {
			log.Printf("[RetentionScheduler] Failed to publish item deleted event: %v", err)
		}
	}

	staleOrders, err := s.orders.DeleteStale(ctx, cutoff)
	if err != nil {
		return len(staleItems), 0, err
	}
	for i := range staleOrders {
		if err := s.pub.Publish(ctx, model.GroupSalesOrders, model.SalesOrderEvent(model.EventDeleted, &staleOrders[i])); err != nil {
			log.Printf("[RetentionScheduler] Failed to publish salesorder deleted event: %v", err)
		}
	}

	return len(staleItems), len(staleOrders), nil
}

// Stop stops the retention scheduler.
func (s *RetentionScheduler) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		if s.ticker != nil {
			s.ticker.Stop()
		}
		close(s.stopCh)
		s.isRunning = false
	})
}

// RunNow triggers an immediate sweep.
func (s *RetentionScheduler) RunNow() (int, int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	return s.sweep(ctx)
}
