package server

import (
	"context"
	"math"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bolla-network/turion/internal/plan"
	"github.com/bolla-network/turion/internal/ratelimit"
)

const contextAPIKeyIDKey = "api_key_id"

// RequestGate admits or rejects a data-plane request under the account's plan.
// Satisfied by ratelimit.RequestLimiter.
type RequestGate interface {
	Allow(ctx context.Context, userID string, p plan.Plan) (*ratelimit.Result, error)
}

// APIKeyRequired authenticates data-plane requests with a raw API key and
// enforces the owning plan's requests-per-minute ceiling.
func (s *Server) APIKeyRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		identity, err := s.apiKeySvc.Authenticate(c.Request.Context(), token)
		if err != nil {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		p := s.planFor(c, identity.UserID)
		if s.requestLimiter != nil {
			res, err := s.requestLimiter.Allow(c.Request.Context(), identity.UserID, p)
			if err == nil && res != nil && !res.Allowed {
				c.Header("Retry-After", formatRetryAfter(res.RetryAfter))
				AbortWithError(c, ErrRateLimited)
				return
			}
		}

		c.Set(contextUserIDKey, identity.UserID)
		c.Set(contextAPIKeyIDKey, identity.KeyID.Int64())
		c.Next()
	}
}

// planFor resolves the account's current plan, falling back to free when the
// billing record cannot be read. Rate limiting is not worth failing auth over.
func (s *Server) planFor(c *gin.Context, userID string) plan.Plan {
	sub, err := s.subscriptionSvc.Get(c.Request.Context(), userID)
	if err != nil {
		p, _ := plan.ByID(plan.Free)
		return p
	}
	p, ok := plan.ByID(sub.PlanID)
	if !ok {
		p, _ = plan.ByID(plan.Free)
	}
	return p
}

func formatRetryAfter(d time.Duration) string {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}
