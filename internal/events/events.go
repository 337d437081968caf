// Package events publishes work-item events to the durable bus and the
// in-process channel, draining the transactional outbox written by the
// create workflow.
package events

import "work-item-svc/internal/models"

// TopicPhaseProductAdded is the routing key for phase-product creation
// events on both sinks.
const TopicPhaseProductAdded = "project.phase.product.added"

// PhaseProductAdded is the payload carried by a creation event.
type PhaseProductAdded struct {
	Product   models.PhaseProductView `json:"product"`
	CreatedBy int64                   `json:"createdBy"`
}
