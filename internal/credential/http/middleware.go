package http

import (
	"log/slog"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/allisson/tierguard/internal/access"
	"github.com/allisson/tierguard/internal/clock"
	credentialDomain "github.com/allisson/tierguard/internal/credential/domain"
	"github.com/allisson/tierguard/internal/httputil"
	"github.com/allisson/tierguard/internal/ratelimit"
)

// Response headers set by AccessMiddleware.
const (
	HeaderRateLimitLimit     = "X-RateLimit-Limit"
	HeaderRateLimitRemaining = "X-RateLimit-Remaining"
	HeaderRateLimitReset     = "X-RateLimit-Reset"
	HeaderRetryAfter         = "Retry-After"
)

// AccessMiddleware authenticates the bearer credential and enforces the tier
// rate limit of the caller.
//
// Configuration:
//   - evaluator: Runs credential, revocation, tier and rate-limit checks
//   - clk: Source of the Retry-After computation
//
// Error handling:
//   - Missing, malformed, revoked or expired credential → 401 Unauthorized
//   - Rate limit exhausted → 429 Too Many Requests with Retry-After
//   - Credential or entitlement store unreachable → 503 Service Unavailable
//
// Authenticated responses carry X-RateLimit-Limit, X-RateLimit-Remaining and
// X-RateLimit-Reset (unix seconds). The decision is available to handlers via
// GetDecision.
func AccessMiddleware(evaluator access.Evaluator, clk clock.Clock, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			logger.Debug("access denied: missing or malformed authorization header")
			httputil.HandleErrorGin(c, credentialDomain.ErrInvalidCredential, logger)
			c.Abort()
			return
		}

		decision, err := evaluator.Evaluate(c.Request.Context(), access.Credential{Raw: raw})
		if err != nil {
			httputil.HandleErrorGin(c, err, logger)
			c.Abort()
			return
		}

		c.Header(HeaderRateLimitLimit, strconv.Itoa(decision.Limit))
		c.Header(HeaderRateLimitRemaining, strconv.Itoa(decision.Remaining))
		if !decision.ResetAt.IsZero() {
			c.Header(HeaderRateLimitReset, strconv.FormatInt(decision.ResetAt.Unix(), 10))
		}

		if decision.RateLimited {
			result := ratelimit.Result{ResetAt: decision.ResetAt}
			retryAfter := int(result.RetryAfter(clk.Now()).Seconds())
			c.Header(HeaderRetryAfter, strconv.Itoa(retryAfter))

			logger.Debug("access denied: rate limited",
				slog.Int64("user_id", decision.UserID),
				slog.String("tier", string(decision.EffectiveTier)),
				slog.Int("retry_after", retryAfter))
			httputil.HandleErrorGin(c, ratelimit.ErrRateLimited, logger)
			c.Abort()
			return
		}

		c.Request = c.Request.WithContext(WithDecision(c.Request.Context(), decision))
		c.Next()
	}
}

// bearerToken extracts the credential from "Bearer <token>" (case-insensitive scheme).
func bearerToken(header string) (string, bool) {
	const bearerPrefix = "bearer "
	if len(header) < len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(bearerPrefix):])
	return token, token != ""
}
