package main

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// verifyBearer checks the bearer token minted by the external identity
// service and resolves the principal id and role claim. Identity is trusted
// once the signature checks out; this service never sees credentials. On
// failure it writes the unauthorized response and aborts. It never advances
// the handler chain itself, so callers can stack further checks before
// calling c.Next().
func verifyBearer(c *gin.Context, secret []byte) (int64, string, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "UNAUTHORIZED"})
		return 0, "", false
	}

	tokenString := strings.TrimPrefix(authHeader, "Bearer ")
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return secret, nil
	})
	if err != nil || !token.Valid {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "INVALID_TOKEN"})
		return 0, "", false
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "INVALID_CLAIMS"})
		return 0, "", false
	}

	var userID int64
	if sub, ok := claims["sub"].(float64); ok {
		userID = int64(sub)
	}
	if userID == 0 {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "INVALID_CLAIMS"})
		return 0, "", false
	}

	role, _ := claims["role"].(string)
	return userID, role, true
}

// principalAuthMiddleware resolves the authenticated competitor for the
// submission routes.
func principalAuthMiddleware(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, role, ok := verifyBearer(c, secret)
		if !ok {
			return
		}
		c.Set("role", role)
		c.Set("userID", userID)
		c.Next()
	}
}

// adminAuthMiddleware additionally requires the admin role claim before the
// chain advances. Used only for the operator log read.
func adminAuthMiddleware(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, role, ok := verifyBearer(c, secret)
		if !ok {
			return
		}
		if role != "admin" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "FORBIDDEN"})
			return
		}
		c.Set("role", role)
		c.Set("userID", userID)
		c.Next()
	}
}

// requestIDMiddleware tags each request so operator logs and responses can
// be correlated.
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := uuid.NewString()
		c.Set("requestID", id)
		c.Header("X-Request-Id", id)
		c.Next()
	}
}

// ipThrottle is a coarse per-IP token bucket in front of the durable
// per-principal rate limit. Generous on purpose: its job is to shed floods
// before they cost a database round trip, not to enforce fairness. Entries
// idle longer than limiterIdleTTL are swept so a spoofed-IP flood cannot
// grow the map for the life of the process.
type ipThrottle struct {
	mu       sync.Mutex
	limiters map[string]*ipLimiter
}

type ipLimiter struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

const limiterIdleTTL = 10 * time.Minute

func (t *ipThrottle) allow(ip string, rps rate.Limit, burst int, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.limiters[ip]
	if !ok {
		entry = &ipLimiter{lim: rate.NewLimiter(rps, burst)}
		t.limiters[ip] = entry
	}
	entry.lastSeen = now
	return entry.lim.Allow()
}

// evictIdle drops limiters not seen within ttl.
func (t *ipThrottle) evictIdle(now time.Time, ttl time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for ip, entry := range t.limiters {
		if now.Sub(entry.lastSeen) > ttl {
			delete(t.limiters, ip)
		}
	}
}

func ipThrottleMiddleware(rps rate.Limit, burst int) gin.HandlerFunc {
	t := &ipThrottle{limiters: make(map[string]*ipLimiter)}
	go func() {
		ticker := time.NewTicker(limiterIdleTTL)
		for range ticker.C {
			t.evictIdle(time.Now(), limiterIdleTTL)
		}
	}()

	return func(c *gin.Context) {
		if !t.allow(c.ClientIP(), rps, burst, time.Now()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "TOO_FAST", "retryAfter": 1})
			return
		}
		c.Next()
	}
}
