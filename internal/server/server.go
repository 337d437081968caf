// Package server exposes the work-item HTTP API using the Gin framework.
package server

import (
	"context"

	"github.com/gin-gonic/gin"

	"work-item-svc/internal/models"
)

// Version marker included in every response envelope.
const apiVersion = "v1"

// Actions gating the work-item routes.
const (
	ActionWorkItemCreate = "workItem.create"
	ActionWorkItemView   = "workItem.view"
)

// WorkItemService is the workflow engine contract the handlers call.
type WorkItemService interface {
	Create(ctx context.Context, projectID, workStreamID, phaseID int64, params models.CreatePhaseProductParams, actorID int64, correlationID string) (models.PhaseProductView, error)
	Get(ctx context.Context, projectID, phaseID, productID int64) (models.PhaseProductView, error)
}

// Authorizer decides whether a caller may perform a named action.
type Authorizer interface {
	Allow(userID int64, scopes []string, action string) bool
}

// Server holds the handler dependencies.
type Server struct {
	workItems  WorkItemService
	authorizer Authorizer
	jwtSecret  []byte
}

// New constructs a Server.
func New(workItems WorkItemService, authorizer Authorizer, jwtSecret string) *Server {
	return &Server{
		workItems:  workItems,
		authorizer: authorizer,
		jwtSecret:  []byte(jwtSecret),
	}
}

// Router builds the gin engine with the full middleware chain and routes.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger())
	r.Use(gin.Recovery())
	r.Use(corsMiddleware())
	r.Use(requestIDMiddleware())

	r.GET("/health", handleHealth)

	api := r.Group("/")
	api.Use(s.authMiddleware())
	{
		api.POST("/projects/:projectId/workstreams/:workStreamId/works/:workId/products",
			s.authorize(ActionWorkItemCreate), s.handleCreateWorkItem)
		api.GET("/projects/:projectId/works/:workId/products/:productId",
			s.authorize(ActionWorkItemView), s.handleGetWorkItem)
	}

	return r
}

func handleHealth(c *gin.Context) {
	c.JSON(200, gin.H{"status": "ok"})
}
