package server

import (
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"

	usagedomain "github.com/bolla-network/turion/internal/usage/domain"
)

type recordUsageRequest struct {
	RequestType     string `json:"request_type"`
	URL             string `json:"url"`
	StatusCode      *int   `json:"status_code"`
	ExecutionTimeMs *int64 `json:"execution_time_ms"`
}

// RecordUsage ingests one request observation from the data plane. The owner
// and key are taken from the authenticated credential, never from the body.
func (s *Server) RecordUsage(c *gin.Context) {
	userID, ok := s.userIDFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req recordUsageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	entry := usagedomain.Entry{
		UserID:          userID,
		RequestType:     req.RequestType,
		URL:             req.URL,
		StatusCode:      req.StatusCode,
		ExecutionTimeMs: req.ExecutionTimeMs,
	}
	if keyID := c.GetInt64(contextAPIKeyIDKey); keyID != 0 {
		id := snowflake.ID(keyID)
		entry.APIKeyID = &id
	}

	if err := s.usageSvc.Record(c.Request.Context(), entry); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) GetUsageSummary(c *gin.Context) {
	userID, ok := s.userIDFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	summary, err := s.usageSvc.Summary(c.Request.Context(), userID, time.Now())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}
