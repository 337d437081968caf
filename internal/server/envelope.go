package server

import "github.com/gin-gonic/gin"

// Envelope is the standard response wrapper: request id, version marker, and
// the result with its HTTP status repeated in the body.
type Envelope struct {
	ID      string `json:"id"`
	Version string `json:"version"`
	Result  Result `json:"result"`
}

// Result carries the outcome inside an Envelope.
type Result struct {
	Success bool        `json:"success"`
	Status  int         `json:"status"`
	Content interface{} `json:"content"`
}

func wrapResponse(requestID string, status int, content interface{}) Envelope {
	return Envelope{
		ID:      requestID,
		Version: apiVersion,
		Result: Result{
			Success: status < 400,
			Status:  status,
			Content: content,
		},
	}
}

func abortWithError(c *gin.Context, status int, message string) {
	requestID := c.GetString(ctxKeyRequestID)
	c.AbortWithStatusJSON(status, wrapResponse(requestID, status, gin.H{"message": message}))
}
