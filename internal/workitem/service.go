// Package workitem implements the transactional create workflow for phase
// products: linkage validation, quota enforcement, insert, and outbox
// enqueue, all in one database transaction.
package workitem

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"work-item-svc/internal/events"
	"work-item-svc/internal/models"
	"work-item-svc/internal/store"
)

// Service orchestrates work-item creation.
type Service struct {
	store                *store.Store
	maxPhaseProductCount int
}

// New returns a Service enforcing the given per-phase product limit.
func New(st *store.Store, maxPhaseProductCount int) *Service {
	return &Service{
		store:                st,
		maxPhaseProductCount: maxPhaseProductCount,
	}
}

// Create validates the project/work-stream/phase linkage, enforces the
// per-phase quota under a row lock, inserts the product, and enqueues the
// creation event, all inside one transaction. The returned view is the
// sanitized entity also carried by the event.
//
// The correlation id ties the eventual bus publishes back to the request.
func (s *Service) Create(ctx context.Context, projectID, workStreamID, phaseID int64, params models.CreatePhaseProductParams, actorID int64, correlationID string) (models.PhaseProductView, error) {
	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return models.PhaseProductView{}, err
	}
	defer tx.Rollback()

	phase, err := tx.GetPhaseWithWorkStream(ctx, phaseID, workStreamID, projectID)
	if errors.Is(err, store.ErrNotFound) {
		return models.PhaseProductView{}, &NotFoundError{
			Message: fmt.Sprintf("phase %d not found for work stream %d in project %d", phaseID, workStreamID, projectID),
		}
	}
	if err != nil {
		return models.PhaseProductView{}, err
	}

	project, err := tx.GetActiveProject(ctx, projectID)
	if errors.Is(err, store.ErrNotFound) {
		return models.PhaseProductView{}, &NotFoundError{
			Message: fmt.Sprintf("project %d not found", projectID),
		}
	}
	if err != nil {
		return models.PhaseProductView{}, err
	}

	// Serialize concurrent creates for this phase before the quota count,
	// otherwise two requests can both pass the check and overshoot the
	// limit.
	if err := tx.LockPhase(ctx, phase.ID, project.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.PhaseProductView{}, &NotFoundError{
				Message: fmt.Sprintf("phase %d not found in project %d", phaseID, projectID),
			}
		}
		return models.PhaseProductView{}, err
	}

	count, err := tx.CountActivePhaseProducts(ctx, project.ID, phase.ID)
	if err != nil {
		return models.PhaseProductView{}, err
	}
	if count >= s.maxPhaseProductCount {
		return models.PhaseProductView{}, &QuotaExceededError{Limit: s.maxPhaseProductCount}
	}

	// Project-level billing values are authoritative; caller-supplied ones
	// are discarded.
	product := models.PhaseProduct{
		ProjectID:        project.ID,
		PhaseID:          phase.ID,
		Name:             params.Name,
		Type:             params.Type,
		TemplateID:       params.TemplateID,
		DirectProjectID:  project.DirectProjectID,
		BillingAccountID: project.BillingAccountID,
		EstimatedPrice:   params.EstimatedPrice,
		ActualPrice:      params.ActualPrice,
		Details:          params.Details,
		CreatedBy:        actorID,
		UpdatedBy:        actorID,
	}

	if err := tx.InsertPhaseProduct(ctx, &product); err != nil {
		return models.PhaseProductView{}, err
	}

	view := product.View()

	payload, err := json.Marshal(events.PhaseProductAdded{
		Product:   view,
		CreatedBy: actorID,
	})
	if err != nil {
		return models.PhaseProductView{}, fmt.Errorf("failed to marshal event payload: %w", err)
	}

	if err := tx.EnqueueEvent(ctx, &models.OutboxEvent{
		Topic:         events.TopicPhaseProductAdded,
		Payload:       payload,
		CorrelationID: correlationID,
	}); err != nil {
		return models.PhaseProductView{}, err
	}

	if err := tx.Commit(); err != nil {
		return models.PhaseProductView{}, fmt.Errorf("failed to commit create: %w", err)
	}

	return view, nil
}

// Get returns the sanitized view of a live phase product.
func (s *Service) Get(ctx context.Context, projectID, phaseID, productID int64) (models.PhaseProductView, error) {
	product, err := s.store.GetPhaseProduct(ctx, productID, phaseID, projectID)
	if errors.Is(err, store.ErrNotFound) {
		return models.PhaseProductView{}, &NotFoundError{
			Message: fmt.Sprintf("phase product %d not found for phase %d in project %d", productID, phaseID, projectID),
		}
	}
	if err != nil {
		return models.PhaseProductView{}, err
	}
	return product.View(), nil
}
