package httphelper

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// Authenticator guards the moderation API.
type Authenticator interface {
	Middleware() gin.HandlerFunc
}

// TokenAuthenticator accepts a static set of bearer tokens and applies a
// per-token rate limit. Callers present `Authorization: Bearer <token>`.
type TokenAuthenticator struct {
	tokens   []string
	limit    rate.Limit
	burst    int
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func NewTokenAuthenticator(tokens []string, limit rate.Limit, burst int) *TokenAuthenticator {
	return &TokenAuthenticator{
		tokens:   tokens,
		limit:    limit,
		burst:    burst,
		limiters: map[string]*rate.Limiter{},
	}
}

func (a *TokenAuthenticator) limiter(token string) *rate.Limiter {
	a.mu.Lock()
	defer a.mu.Unlock()

	limiter, found := a.limiters[token]
	if !found {
		limiter = rate.NewLimiter(a.limit, a.burst)
		a.limiters[token] = limiter
	}

	return limiter
}

func (a *TokenAuthenticator) valid(token string) bool {
	for _, known := range a.tokens {
		if subtle.ConstantTimeCompare([]byte(known), []byte(token)) == 1 {
			return true
		}
	}

	return false
}

func (a *TokenAuthenticator) Middleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		header := ctx.GetHeader("Authorization")

		token, found := strings.CutPrefix(header, "Bearer ")
		if !found || token == "" || !a.valid(token) {
			SetError(ctx, NewAPIError(http.StatusUnauthorized, ErrPermissionDenied))
			ctx.Abort()

			return
		}

		if !a.limiter(token).Allow() {
			SetError(ctx, NewAPIError(http.StatusTooManyRequests, ErrRateLimited))
			ctx.Abort()

			return
		}

		ctx.Next()
	}
}
