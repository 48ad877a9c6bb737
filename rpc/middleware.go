package rpc

import (
	"bufio"
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"contentchain/observability"
)

type contextKey string

const (
	contextKeyCaller    contextKey = "rpc.caller"
	contextKeyRequestID contextKey = "rpc.request_id"

	headerRequestID = "X-Request-ID"
	clockSkew       = 2 * time.Minute
	visitorTTL      = 5 * time.Minute
)

var (
	errMissingToken      = errors.New("missing bearer token")
	errAuthNotConfigured = errors.New("write access is not configured")
	errInvalidSubject    = errors.New("token subject must be a hex address")
)

// AuthConfig configures bearer token verification.
type AuthConfig struct {
	Secret string
	Issuer string
}

// RateLimit bounds request throughput per client address.
type RateLimit struct {
	RequestsPerSecond float64
	Burst             int
}

// CallerFromContext returns the authenticated caller identity.
func CallerFromContext(ctx context.Context) (common.Address, bool) {
	caller, ok := ctx.Value(contextKeyCaller).(common.Address)
	return caller, ok
}

// RequestIDFromContext returns the request id assigned by the server.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(contextKeyRequestID).(string)
	return id
}

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(headerRequestID))
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(headerRequestID, id)
		ctx := context.WithValue(r.Context(), contextKeyRequestID, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// authenticator verifies HS256 bearer tokens whose subject is the caller's
// address.
type authenticator struct {
	secret []byte
	issuer string
}

func newAuthenticator(cfg AuthConfig) *authenticator {
	return &authenticator{secret: []byte(strings.TrimSpace(cfg.Secret)), issuer: strings.TrimSpace(cfg.Issuer)}
}

func (a *authenticator) require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(a.secret) == 0 {
			writeError(w, http.StatusUnauthorized, errAuthNotConfigured)
			return
		}
		tokenString := extractBearer(r.Header.Get("Authorization"))
		if tokenString == "" {
			writeError(w, http.StatusUnauthorized, errMissingToken)
			return
		}
		caller, err := a.parse(tokenString)
		if err != nil {
			slog.Default().Debug("bearer token rejected", "request_id", RequestIDFromContext(r.Context()), "error", err)
			writeError(w, http.StatusUnauthorized, errors.New("invalid token"))
			return
		}
		ctx := context.WithValue(r.Context(), contextKeyCaller, caller)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *authenticator) parse(tokenString string) (common.Address, error) {
	opts := []jwt.ParserOption{
		jwt.WithLeeway(clockSkew),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return common.Address{}, err
	}
	if !token.Valid {
		return common.Address{}, errors.New("token invalid")
	}
	subject := strings.TrimSpace(claims.Subject)
	if !common.IsHexAddress(subject) {
		return common.Address{}, errInvalidSubject
	}
	caller := common.HexToAddress(subject)
	if caller == (common.Address{}) {
		return common.Address{}, errInvalidSubject
	}
	return caller, nil
}

// IssueToken signs a caller token. It exists for operators and tests; the
// server only verifies.
func IssueToken(secret, issuer string, caller common.Address, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   caller.Hex(),
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func extractBearer(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// rateLimiter keeps one token bucket per client address.
type rateLimiter struct {
	limit    RateLimit
	mu       sync.Mutex
	visitors map[string]*visitor
	clockNow func() time.Time
}

func newRateLimiter(limit RateLimit) *rateLimiter {
	return &rateLimiter{limit: limit, visitors: make(map[string]*visitor), clockNow: time.Now}
}

func (l *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if l.limit.RequestsPerSecond <= 0 {
			next.ServeHTTP(w, r)
			return
		}
		if !l.obtain(clientID(r)).Allow() {
			observability.HTTP().RecordThrottle("rate_limit")
			writeError(w, http.StatusTooManyRequests, errors.New(http.StatusText(http.StatusTooManyRequests)))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (l *rateLimiter) obtain(id string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.clockNow()
	for key, v := range l.visitors {
		if now.Sub(v.lastSeen) > visitorTTL {
			delete(l.visitors, key)
		}
	}
	if v, ok := l.visitors[id]; ok {
		v.lastSeen = now
		return v.limiter
	}
	burst := l.limit.Burst
	if burst <= 0 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Limit(l.limit.RequestsPerSecond), burst)
	l.visitors[id] = &visitor{limiter: limiter, lastSeen: now}
	return limiter
}

func clientID(r *http.Request) string {
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if parsed := net.ParseIP(strings.TrimSpace(first)); parsed != nil {
			return parsed.String()
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

// Hijack is required by the websocket upgrade on /v1/events/stream.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("rpc: response writer cannot hijack")
	}
	r.status = http.StatusSwitchingProtocols
	return hj.Hijack()
}

func observe(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(recorder, r)
			route := "unknown"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			elapsed := time.Since(start)
			observability.HTTP().Observe(route, r.Method, recorder.status, elapsed)
			logger.Debug("request served",
				"request_id", RequestIDFromContext(r.Context()),
				"route", route,
				"method", r.Method,
				"status", recorder.status,
				"duration", elapsed)
		})
	}
}
