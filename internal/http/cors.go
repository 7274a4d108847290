package http

import (
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	credentialHTTP "github.com/allisson/tierguard/internal/credential/http"
)

// corsMaxAge is how long browsers may cache a preflight answer.
const corsMaxAge = 12 * time.Hour

// createCORSMiddleware returns a CORS middleware for browser clients, or nil
// when CORS is disabled or no origin is configured.
//
// Credentials travel in the Authorization header, never in cookies, so
// credentialed CORS stays off and "*" is accepted as an origin.
func createCORSMiddleware(enabled bool, allowOriginsStr string, logger *slog.Logger) gin.HandlerFunc {
	if !enabled {
		return nil
	}

	origins := parseOrigins(allowOriginsStr)
	if len(origins) == 0 {
		logger.Warn("CORS enabled but no origins configured - CORS will not be applied")
		return nil
	}

	logger.Info("CORS enabled",
		slog.Int("origin_count", len(origins)),
		slog.Any("origins", origins))

	return cors.New(corsConfig(origins))
}

func corsConfig(origins []string) cors.Config {
	config := cors.Config{
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		// Clients pace themselves from the rate limit headers.
		ExposeHeaders: []string{
			"X-Request-Id",
			credentialHTTP.HeaderRateLimitLimit,
			credentialHTTP.HeaderRateLimitRemaining,
			credentialHTTP.HeaderRateLimitReset,
			credentialHTTP.HeaderRetryAfter,
		},
		MaxAge: corsMaxAge,
	}

	if slices.Contains(origins, "*") {
		config.AllowAllOrigins = true
	} else {
		config.AllowOrigins = origins
	}

	return config
}

// parseOrigins splits a comma-separated origin list, dropping blanks.
func parseOrigins(originsStr string) []string {
	var origins []string
	for part := range strings.SplitSeq(originsStr, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}
