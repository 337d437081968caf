package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"work-item-svc/internal/models"
)

// EnqueueEvent inserts a pending outbox row. Called inside the create
// transaction so the event commits or rolls back with the product.
func (s *Store) EnqueueEvent(ctx context.Context, event *models.OutboxEvent) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	query := `
		INSERT INTO work_item_events (id, topic, payload, correlation_id)
		VALUES ($1, $2, $3, $4)
		RETURNING status, attempt_count, next_attempt_at, created_at, updated_at`

	err := s.queryRowxContext(ctx, query,
		event.ID, event.Topic, event.Payload, event.CorrelationID,
	).Scan(&event.Status, &event.AttemptCount, &event.NextAttemptAt,
		&event.CreatedAt, &event.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to enqueue event: %w", err)
	}
	return nil
}

// LeaseDueEvents claims up to limit due events for the named consumer. A row
// is due when it is pending with next_attempt_at in the past, or leased with
// an expired lease. SKIP LOCKED keeps concurrent dispatchers from blocking
// each other.
func (s *Store) LeaseDueEvents(ctx context.Context, consumer string, limit int, now time.Time, leaseTTL time.Duration) ([]models.OutboxEvent, error) {
	if consumer == "" {
		return nil, fmt.Errorf("consumer is required")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}
	now = now.UTC()

	query := `
		UPDATE work_item_events
		SET status = $1, lease_owner = $2, lease_expires_at = $3, updated_at = $4
		WHERE id IN (
			SELECT id FROM work_item_events
			WHERE (status = $5 AND next_attempt_at <= $4)
			   OR (status = $1 AND lease_expires_at IS NOT NULL AND lease_expires_at <= $4)
			ORDER BY next_attempt_at ASC, created_at ASC
			LIMIT $6
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, topic, payload, correlation_id, status, attempt_count,
		          next_attempt_at, lease_owner, lease_expires_at, last_error,
		          created_at, updated_at`

	var events []models.OutboxEvent
	err := s.selectContext(ctx, &events, query,
		models.OutboxStatusLeased, consumer, now.Add(leaseTTL), now,
		models.OutboxStatusPending, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to lease events: %w", err)
	}
	return events, nil
}

// MarkEventSucceeded settles a leased event after both sinks accepted it.
func (s *Store) MarkEventSucceeded(ctx context.Context, id uuid.UUID, consumer string) error {
	query := `
		UPDATE work_item_events
		SET status = $1, lease_owner = '', lease_expires_at = NULL,
		    last_error = '', updated_at = $2
		WHERE id = $3 AND status = $4 AND lease_owner = $5`

	return s.settleEvent(ctx, query,
		models.OutboxStatusSucceeded, time.Now().UTC(), id,
		models.OutboxStatusLeased, consumer)
}

// MarkEventRetry returns a leased event to pending with a future attempt time.
func (s *Store) MarkEventRetry(ctx context.Context, id uuid.UUID, consumer string, nextAttemptAt time.Time, lastError string) error {
	query := `
		UPDATE work_item_events
		SET status = $1, attempt_count = attempt_count + 1,
		    next_attempt_at = $2, lease_owner = '', lease_expires_at = NULL,
		    last_error = $3, updated_at = $4
		WHERE id = $5 AND status = $6 AND lease_owner = $7`

	return s.settleEvent(ctx, query,
		models.OutboxStatusPending, nextAttemptAt.UTC(), lastError,
		time.Now().UTC(), id, models.OutboxStatusLeased, consumer)
}

// MarkEventDead parks a leased event that exhausted its delivery attempts.
func (s *Store) MarkEventDead(ctx context.Context, id uuid.UUID, consumer string, lastError string) error {
	query := `
		UPDATE work_item_events
		SET status = $1, attempt_count = attempt_count + 1,
		    lease_owner = '', lease_expires_at = NULL,
		    last_error = $2, updated_at = $3
		WHERE id = $4 AND status = $5 AND lease_owner = $6`

	return s.settleEvent(ctx, query,
		models.OutboxStatusDead, lastError, time.Now().UTC(), id,
		models.OutboxStatusLeased, consumer)
}

func (s *Store) settleEvent(ctx context.Context, query string, args ...interface{}) error {
	result, err := s.execContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to settle event: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to settle event rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
