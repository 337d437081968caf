package server

import (
	"errors"
	"fmt"
	"log"
	"strconv"

	"github.com/gin-gonic/gin"

	"work-item-svc/internal/models"
	"work-item-svc/internal/workitem"
)

type createWorkItemBody struct {
	Param models.CreatePhaseProductParams `json:"param" binding:"required"`
}

func (s *Server) handleCreateWorkItem(c *gin.Context) {
	projectID, err := pathID(c, "projectId")
	if err != nil {
		abortWithError(c, 400, err.Error())
		return
	}
	workStreamID, err := pathID(c, "workStreamId")
	if err != nil {
		abortWithError(c, 400, err.Error())
		return
	}
	phaseID, err := pathID(c, "workId")
	if err != nil {
		abortWithError(c, 400, err.Error())
		return
	}

	var body createWorkItemBody
	if err := c.ShouldBindJSON(&body); err != nil {
		abortWithError(c, 400, "invalid payload: "+err.Error())
		return
	}

	userID := c.GetInt64(ctxKeyUserID)
	requestID := c.GetString(ctxKeyRequestID)

	view, err := s.workItems.Create(c.Request.Context(),
		projectID, workStreamID, phaseID, body.Param, userID, requestID)
	if err != nil {
		var notFound *workitem.NotFoundError
		if errors.As(err, &notFound) {
			abortWithError(c, notFound.StatusCode(), notFound.Error())
			return
		}
		var quota *workitem.QuotaExceededError
		if errors.As(err, &quota) {
			abortWithError(c, quota.StatusCode(), quota.Error())
			return
		}
		log.Printf("create work item: %v", err)
		abortWithError(c, 500, "internal server error")
		return
	}

	c.JSON(201, wrapResponse(requestID, 201, view))
}

func (s *Server) handleGetWorkItem(c *gin.Context) {
	projectID, err := pathID(c, "projectId")
	if err != nil {
		abortWithError(c, 400, err.Error())
		return
	}
	phaseID, err := pathID(c, "workId")
	if err != nil {
		abortWithError(c, 400, err.Error())
		return
	}
	productID, err := pathID(c, "productId")
	if err != nil {
		abortWithError(c, 400, err.Error())
		return
	}

	requestID := c.GetString(ctxKeyRequestID)

	view, err := s.workItems.Get(c.Request.Context(), projectID, phaseID, productID)
	if err != nil {
		var notFound *workitem.NotFoundError
		if errors.As(err, &notFound) {
			abortWithError(c, notFound.StatusCode(), notFound.Error())
			return
		}
		log.Printf("get work item: %v", err)
		abortWithError(c, 500, "internal server error")
		return
	}

	c.JSON(200, wrapResponse(requestID, 200, view))
}

// pathID parses a path parameter as a positive integer.
func pathID(c *gin.Context, name string) (int64, error) {
	raw := c.Param(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", name, raw)
	}
	return id, nil
}
