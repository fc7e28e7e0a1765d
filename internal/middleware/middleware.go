// Package middleware holds the gin middleware cmd/judged's HTTP surface
// wires in front of the submission endpoints: structured access logging,
// panic recovery, request IDs, and per-IP rate limiting.
package middleware

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"judge-core/internal/logging"
)

// ErrorResponse is the standardized error body every middleware and
// handler in this package returns on failure.
type ErrorResponse struct {
	Error     string                 `json:"error"`
	Code      string                 `json:"code"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	RequestID string                 `json:"request_id,omitempty"`
}

// ErrorHandler logs every request except /health, which would otherwise
// drown the log under orchestrator polling.
func ErrorHandler() gin.HandlerFunc {
	return gin.LoggerWithConfig(gin.LoggerConfig{
		Formatter: func(param gin.LogFormatterParams) string {
			return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
				param.ClientIP,
				param.TimeStamp.Format(time.RFC3339),
				param.Method,
				param.Path,
				param.Request.Proto,
				param.StatusCode,
				param.Latency,
				param.Request.UserAgent(),
				param.ErrorMessage,
			)
		},
		Output:    gin.DefaultWriter,
		SkipPaths: []string{"/health"},
	})
}

// Recovery turns a panic inside a handler into a 500 instead of a dropped
// connection, and logs the stack for the operator.
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = generateRequestID()
		}

		logging.S().Errorf("panic recovered: request_id=%s error=%v stack=%s", requestID, recovered, debug.Stack())

		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:     "internal server error",
			Code:      "INTERNAL_SERVER_ERROR",
			Timestamp: time.Now().UTC(),
			RequestID: requestID,
		})
	})
}

// RateLimiter wraps one client's token bucket plus its last-seen time, so
// the cleanup routine can evict it once idle.
type RateLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPRateLimiter hands out one token bucket per client IP.
type IPRateLimiter struct {
	limiters map[string]*RateLimiter
	mu       sync.RWMutex
	rate     rate.Limit
	burst    int
	cleanup  time.Duration
}

// NewIPRateLimiter builds an IPRateLimiter enforcing rateLimit with the
// given burst, and starts its idle-eviction goroutine.
func NewIPRateLimiter(rateLimit rate.Limit, burst int) *IPRateLimiter {
	limiter := &IPRateLimiter{
		limiters: make(map[string]*RateLimiter),
		rate:     rateLimit,
		burst:    burst,
		cleanup:  10 * time.Minute,
	}
	go limiter.cleanupRoutine()
	return limiter
}

// GetLimiter returns the token bucket for ip, creating one on first use.
func (irl *IPRateLimiter) GetLimiter(ip string) *rate.Limiter {
	irl.mu.Lock()
	defer irl.mu.Unlock()

	limiter, exists := irl.limiters[ip]
	if !exists {
		limiter = &RateLimiter{limiter: rate.NewLimiter(irl.rate, irl.burst), lastSeen: time.Now()}
		irl.limiters[ip] = limiter
	} else {
		limiter.lastSeen = time.Now()
	}
	return limiter.limiter
}

func (irl *IPRateLimiter) cleanupRoutine() {
	ticker := time.NewTicker(irl.cleanup)
	defer ticker.Stop()

	for range ticker.C {
		irl.mu.Lock()
		cutoff := time.Now().Add(-time.Hour)
		for ip, limiter := range irl.limiters {
			if limiter.lastSeen.Before(cutoff) {
				delete(irl.limiters, ip)
			}
		}
		irl.mu.Unlock()
	}
}

var globalRateLimiter *IPRateLimiter

// InitRateLimiter sets the process-wide rate limiter's rate and burst.
// Call before the first request; RateLimit lazily initializes with
// defaults otherwise.
func InitRateLimiter(requestsPerMinute int, burst int) {
	globalRateLimiter = NewIPRateLimiter(rate.Limit(requestsPerMinute)/60, burst)
}

// RateLimit rejects a client IP's request with 429 once it exceeds its
// token bucket. Submitting code triggers a compile+execute pipeline run,
// so the default is deliberately tighter than a typical read-mostly API.
func RateLimit() gin.HandlerFunc {
	if globalRateLimiter == nil {
		InitRateLimiter(60, 10)
	}

	return func(c *gin.Context) {
		clientIP := c.ClientIP()
		limiter := globalRateLimiter.GetLimiter(clientIP)

		if !limiter.Allow() {
			c.JSON(http.StatusTooManyRequests, ErrorResponse{
				Error: "rate limit exceeded",
				Code:  "RATE_LIMIT_EXCEEDED",
				Details: map[string]interface{}{
					"retry_after": "60s",
				},
				Timestamp: time.Now().UTC(),
				RequestID: c.GetHeader("X-Request-ID"),
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// RequestID stamps every request with an X-Request-ID, generating one
// when the caller didn't supply it.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = generateRequestID()
		}
		c.Header("X-Request-ID", requestID)
		c.Set("request_id", requestID)
		c.Next()
	}
}

func generateRequestID() string {
	randomBytes := make([]byte, 4)
	rand.Read(randomBytes)
	return fmt.Sprintf("%d-%s", time.Now().UnixNano(), hex.EncodeToString(randomBytes))
}
