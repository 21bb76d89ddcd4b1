package middleware

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/fitwellhq/supportchat/internal/models"
)

// operatorCacheTTL bounds how long a resolved operator identity is
// reused before the backend is asked again.
const operatorCacheTTL = 5 * time.Minute

type contextKey string

const operatorContextKey contextKey = "operator"

// OperatorResolver resolves a console bearer token to an operator.
// Satisfied by the backend REST client.
type OperatorResolver interface {
	Me(ctx context.Context, token string) (*models.Operator, error)
}

// Auth authenticates console requests by delegating token validation
// to the backend and caching the resolved operator.
type Auth struct {
	resolver OperatorResolver
	logger   zerolog.Logger

	mu    sync.Mutex
	cache map[string]cachedOperator
}

type cachedOperator struct {
	operator models.Operator
	expires  time.Time
}

// NewAuth creates the auth middleware.
func NewAuth(resolver OperatorResolver, logger zerolog.Logger) *Auth {
	return &Auth{
		resolver: resolver,
		logger:   logger,
		cache:    make(map[string]cachedOperator),
	}
}

// RequireOperator rejects requests without a valid bearer token and
// attaches the resolved operator to the request context.
func (a *Auth) RequireOperator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			unauthorized(w, "authentication required")
			return
		}

		if op, ok := a.cached(token); ok {
			next.ServeHTTP(w, r.WithContext(withOperator(r.Context(), op)))
			return
		}

		op, err := a.resolver.Me(r.Context(), token)
		if err != nil {
			a.logger.Warn().Err(err).Msg("operator token rejected")
			unauthorized(w, "invalid token")
			return
		}

		a.store(token, *op)
		next.ServeHTTP(w, r.WithContext(withOperator(r.Context(), op)))
	})
}

func (a *Auth) cached(token string) (*models.Operator, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	entry, ok := a.cache[token]
	if !ok || time.Now().After(entry.expires) {
		delete(a.cache, token)
		return nil, false
	}
	op := entry.operator
	return &op, true
}

func (a *Auth) store(token string, op models.Operator) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cache[token] = cachedOperator{operator: op, expires: time.Now().Add(operatorCacheTTL)}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func withOperator(ctx context.Context, op *models.Operator) context.Context {
	return context.WithValue(ctx, operatorContextKey, op)
}

// GetOperator returns the authenticated operator from the request
// context, or nil.
func GetOperator(ctx context.Context) *models.Operator {
	op, _ := ctx.Value(operatorContextKey).(*models.Operator)
	return op
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"` + message + `"}`))
}
