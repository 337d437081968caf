// Package models holds the domain types shared by the store, the workflow
// engine, and the HTTP layer.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Project is the top of the hierarchy a work item is created under.
type Project struct {
	ID               int64      `db:"id" json:"id"`
	Name             string     `db:"name" json:"name"`
	DirectProjectID  *int64     `db:"direct_project_id" json:"directProjectId"`
	BillingAccountID *int64     `db:"billing_account_id" json:"billingAccountId"`
	CreatedBy        int64      `db:"created_by" json:"createdBy"`
	UpdatedBy        int64      `db:"updated_by" json:"updatedBy"`
	CreatedAt        time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updatedAt"`
	DeletedAt        *time.Time `db:"deleted_at" json:"-"`
	DeletedBy        *int64     `db:"deleted_by" json:"-"`
}

// ProjectPhase is the "work" a phase product attaches to. Work streams are
// checked via the linkage join in the store and never materialize here.
type ProjectPhase struct {
	ID        int64      `db:"id" json:"id"`
	ProjectID int64      `db:"project_id" json:"projectId"`
	Name      string     `db:"name" json:"name"`
	Status    string     `db:"status" json:"status"`
	CreatedBy int64      `db:"created_by" json:"createdBy"`
	UpdatedBy int64      `db:"updated_by" json:"updatedBy"`
	CreatedAt time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time  `db:"updated_at" json:"updatedAt"`
	DeletedAt *time.Time `db:"deleted_at" json:"-"`
	DeletedBy *int64     `db:"deleted_by" json:"-"`
}

// PhaseProduct is the work item created by this service. DeletedAt and
// DeletedBy never leave the store layer; see PhaseProductView.
type PhaseProduct struct {
	ID               int64      `db:"id" json:"id"`
	ProjectID        int64      `db:"project_id" json:"projectId"`
	PhaseID          int64      `db:"phase_id" json:"phaseId"`
	Name             string     `db:"name" json:"name"`
	Type             string     `db:"type" json:"type"`
	TemplateID       *int64     `db:"template_id" json:"templateId,omitempty"`
	DirectProjectID  *int64     `db:"direct_project_id" json:"directProjectId"`
	BillingAccountID *int64     `db:"billing_account_id" json:"billingAccountId"`
	EstimatedPrice   *float64   `db:"estimated_price" json:"estimatedPrice,omitempty"`
	ActualPrice      *float64   `db:"actual_price" json:"actualPrice,omitempty"`
	Details          JSONBMap   `db:"details" json:"details,omitempty"`
	CreatedBy        int64      `db:"created_by" json:"createdBy"`
	UpdatedBy        int64      `db:"updated_by" json:"updatedBy"`
	CreatedAt        time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updatedAt"`
	DeletedAt        *time.Time `db:"deleted_at" json:"deletedAt,omitempty"`
	DeletedBy        *int64     `db:"deleted_by" json:"deletedBy,omitempty"`
}

// PhaseProductView is the sanitized shape used for HTTP responses and
// published events: a plain copy of the row without the soft-delete marker
// and the deletion audit field.
type PhaseProductView struct {
	ID               int64     `json:"id"`
	ProjectID        int64     `json:"projectId"`
	PhaseID          int64     `json:"phaseId"`
	Name             string    `json:"name"`
	Type             string    `json:"type"`
	TemplateID       *int64    `json:"templateId,omitempty"`
	DirectProjectID  *int64    `json:"directProjectId"`
	BillingAccountID *int64    `json:"billingAccountId"`
	EstimatedPrice   *float64  `json:"estimatedPrice,omitempty"`
	ActualPrice      *float64  `json:"actualPrice,omitempty"`
	Details          JSONBMap  `json:"details,omitempty"`
	CreatedBy        int64     `json:"createdBy"`
	UpdatedBy        int64     `json:"updatedBy"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// View returns the sanitized copy of p.
func (p *PhaseProduct) View() PhaseProductView {
	return PhaseProductView{
		ID:               p.ID,
		ProjectID:        p.ProjectID,
		PhaseID:          p.PhaseID,
		Name:             p.Name,
		Type:             p.Type,
		TemplateID:       p.TemplateID,
		DirectProjectID:  p.DirectProjectID,
		BillingAccountID: p.BillingAccountID,
		EstimatedPrice:   p.EstimatedPrice,
		ActualPrice:      p.ActualPrice,
		Details:          p.Details,
		CreatedBy:        p.CreatedBy,
		UpdatedBy:        p.UpdatedBy,
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
	}
}

// CreatePhaseProductParams is the client-supplied payload for work-item
// creation. Path identifiers and project-level billing fields are filled in
// by the workflow, not the caller.
type CreatePhaseProductParams struct {
	Name             string   `json:"name" binding:"required"`
	Type             string   `json:"type" binding:"required"`
	TemplateID       *int64   `json:"templateId" binding:"omitempty,gt=0"`
	DirectProjectID  *int64   `json:"directProjectId" binding:"omitempty,gt=0"`
	BillingAccountID *int64   `json:"billingAccountId" binding:"omitempty,gt=0"`
	EstimatedPrice   *float64 `json:"estimatedPrice" binding:"omitempty,gt=0"`
	ActualPrice      *float64 `json:"actualPrice" binding:"omitempty,gt=0"`
	Details          JSONBMap `json:"details"`
}

// OutboxEventStatus values for work_item_events.status.
const (
	OutboxStatusPending   = "pending"
	OutboxStatusLeased    = "leased"
	OutboxStatusSucceeded = "succeeded"
	OutboxStatusDead      = "dead"
)

// OutboxEvent is a pending (or settled) work-item event row.
type OutboxEvent struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	Topic          string     `db:"topic" json:"topic"`
	Payload        []byte     `db:"payload" json:"payload"`
	CorrelationID  string     `db:"correlation_id" json:"correlationId"`
	Status         string     `db:"status" json:"status"`
	AttemptCount   int        `db:"attempt_count" json:"attemptCount"`
	NextAttemptAt  time.Time  `db:"next_attempt_at" json:"nextAttemptAt"`
	LeaseOwner     string     `db:"lease_owner" json:"leaseOwner"`
	LeaseExpiresAt *time.Time `db:"lease_expires_at" json:"leaseExpiresAt,omitempty"`
	LastError      string     `db:"last_error" json:"lastError"`
	CreatedAt      time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updatedAt"`
}
