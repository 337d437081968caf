package events

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"work-item-svc/internal/models"
)

// OutboxStore is the slice of the store the dispatcher needs.
type OutboxStore interface {
	LeaseDueEvents(ctx context.Context, consumer string, limit int, now time.Time, leaseTTL time.Duration) ([]models.OutboxEvent, error)
	MarkEventSucceeded(ctx context.Context, id uuid.UUID, consumer string) error
	MarkEventRetry(ctx context.Context, id uuid.UUID, consumer string, nextAttemptAt time.Time, lastError string) error
	MarkEventDead(ctx context.Context, id uuid.UUID, consumer string, lastError string) error
}

// DispatcherConfig tunes the outbox drain loop.
type DispatcherConfig struct {
	Consumer     string
	PollInterval time.Duration
	LeaseTTL     time.Duration
	MaxAttempts  int
	BatchSize    int
}

// Dispatcher drains the work-item event outbox: lease due rows, publish each
// to both sinks, and settle the row. Failed deliveries retry with
// exponential backoff until MaxAttempts, then the row is parked dead.
type Dispatcher struct {
	store     OutboxStore
	publisher *Publisher
	cfg       DispatcherConfig
}

// NewDispatcher returns a dispatcher draining the outbox through publisher.
func NewDispatcher(store OutboxStore, publisher *Publisher, cfg DispatcherConfig) *Dispatcher {
	if cfg.Consumer == "" {
		cfg.Consumer = "work-item-svc"
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.LeaseTTL <= 0 {
		cfg.LeaseTTL = 30 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 8
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 20
	}
	return &Dispatcher{store: store, publisher: publisher, cfg: cfg}
}

// Run polls until the context is canceled.
func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if err := d.DrainOnce(ctx); err != nil {
			log.Printf("outbox drain: %v", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// DrainOnce leases one batch of due events and delivers them.
func (d *Dispatcher) DrainOnce(ctx context.Context) error {
	events, err := d.store.LeaseDueEvents(ctx, d.cfg.Consumer, d.cfg.BatchSize, time.Now(), d.cfg.LeaseTTL)
	if err != nil {
		return err
	}

	for _, event := range events {
		d.deliver(ctx, event)
	}
	return nil
}

func (d *Dispatcher) deliver(ctx context.Context, event models.OutboxEvent) {
	publishErr := d.publisher.Publish(event)
	if publishErr == nil {
		if err := d.store.MarkEventSucceeded(ctx, event.ID, d.cfg.Consumer); err != nil {
			log.Printf("outbox mark succeeded %s: %v", event.ID, err)
		}
		return
	}

	log.Printf("outbox deliver %s (attempt %d): %v", event.ID, event.AttemptCount+1, publishErr)

	if event.AttemptCount+1 >= d.cfg.MaxAttempts {
		if err := d.store.MarkEventDead(ctx, event.ID, d.cfg.Consumer, publishErr.Error()); err != nil {
			log.Printf("outbox mark dead %s: %v", event.ID, err)
		}
		return
	}

	nextAttemptAt := time.Now().Add(backoff(event.AttemptCount))
	if err := d.store.MarkEventRetry(ctx, event.ID, d.cfg.Consumer, nextAttemptAt, publishErr.Error()); err != nil {
		log.Printf("outbox mark retry %s: %v", event.ID, err)
	}
}

// backoff doubles per attempt from one second, capped at five minutes.
func backoff(attempts int) time.Duration {
	d := time.Second << uint(attempts)
	if d > 5*time.Minute || d <= 0 {
		return 5 * time.Minute
	}
	return d
}
