// Copyright (c) 2026 Ace Job Agency. All rights reserved.
// Author: platform@acejobs.sg

// Package middleware provides the HTTP middleware chain for the API server.
//
// # Architecture
//
// Middleware are ordered by the server composition root. The expected order is:
//
//  1. RequestID: tags every request for log correlation.
//  2. RealIP: resolves the true client address behind proxies.
//  3. StructuredLogger: attaches a per-request slog.Logger and emits access logs.
//  4. PanicRecovery: converts panics into 500 responses instead of crashing.
//  5. RateLimit: per-client token bucket throttling.
//  6. CORS: browser cross-origin policy.
//  7. Authenticate / RequireAuth: session resolution (see authz.go).
package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/acejobs/portal/internal/platform/apperr"
	"github.com/acejobs/portal/internal/platform/constants"
	"github.com/acejobs/portal/internal/platform/ctxutil"
	"github.com/acejobs/portal/internal/platform/respond"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// RequestID ensures every request carries an X-Request-ID, generating one
// when the client did not supply it. The ID is stored in the context and
// echoed back on the response for client-side correlation.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		requestID := request.Header.Get(constants.HeaderXRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}

		ctx := ctxutil.WithRequestID(request.Context(), requestID)
		writer.Header().Set(constants.HeaderXRequestID, requestID)

		next.ServeHTTP(writer, request.WithContext(ctx))
	})
}

// statusRecorder captures the status code written by downstream handlers.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (recorder *statusRecorder) WriteHeader(code int) {
	recorder.status = code
	recorder.ResponseWriter.WriteHeader(code)
}

// StructuredLogger attaches a request-scoped slog.Logger to the context and
// emits one structured access-log line per request.
func StructuredLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			start := time.Now()

			requestID := ctxutil.GetRequestID(request.Context())
			requestLogger := logger.With(
				slog.String("request_id", requestID),
				slog.String("method", request.Method),
				slog.String("path", request.URL.Path),
			)

			ctx := ctxutil.WithLogger(request.Context(), requestLogger)
			recorder := &statusRecorder{ResponseWriter: writer, status: http.StatusOK}

			next.ServeHTTP(recorder, request.WithContext(ctx))

			requestLogger.InfoContext(ctx, "http_request",
				slog.Int("status", recorder.status),
				slog.String("remote_addr", request.RemoteAddr),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}

// PanicRecovery converts handler panics into 500 responses and logs the panic
// value so the process survives programming errors in a single request.
func PanicRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		defer func() {
			if recovered := recover(); recovered != nil {
				logger := ctxutil.GetLogger(request.Context())
				logger.ErrorContext(request.Context(), "panic_recovered",
					slog.Any("panic", recovered),
				)
				respond.JSON(writer, http.StatusInternalServerError, respond.ErrorEnvelope{
					Error: "An internal error occurred.",
					Code:  "INTERNAL_ERROR",
				})
			}
		}()
		next.ServeHTTP(writer, request)
	})
}

// RealIP rewrites request.RemoteAddr from X-Forwarded-For / X-Real-IP when
// present, so rate limiting keys on the actual client behind a proxy.
func RealIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if forwarded := request.Header.Get(constants.HeaderXForwardedFor); forwarded != "" {
			// The first entry is the originating client.
			parts := strings.Split(forwarded, ",")
			request.RemoteAddr = strings.TrimSpace(parts[0])
		} else if realIP := request.Header.Get(constants.HeaderXRealIP); realIP != "" {
			request.RemoteAddr = realIP
		}
		next.ServeHTTP(writer, request)
	})
}

// clientLimiter tracks a per-client token bucket and its last activity time.
type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter enforces a per-client-IP token bucket across all endpoints.
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientLimiter
	rps     rate.Limit
	burst   int
}

// NewRateLimiter builds a RateLimiter and starts the stale-entry janitor.
func NewRateLimiter(requestsPerSecond float64, burst int) *RateLimiter {
	rateLimiter := &RateLimiter{
		clients: make(map[string]*clientLimiter),
		rps:     rate.Limit(requestsPerSecond),
		burst:   burst,
	}
	go rateLimiter.cleanupLoop()
	return rateLimiter
}

// cleanupLoop evicts client buckets that have been idle past the expiry window.
func (rateLimiter *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(constants.RateLimitCleanupInterval)
	defer ticker.Stop()

	for range ticker.C {
		rateLimiter.mu.Lock()
		for clientIP, client := range rateLimiter.clients {
			if time.Since(client.lastSeen) > constants.RateLimitClientTTL {
				delete(rateLimiter.clients, clientIP)
			}
		}
		rateLimiter.mu.Unlock()
	}
}

// allow reports whether the given client may proceed, creating its bucket on
// first sight.
func (rateLimiter *RateLimiter) allow(clientIP string) bool {
	rateLimiter.mu.Lock()
	defer rateLimiter.mu.Unlock()

	client, exists := rateLimiter.clients[clientIP]
	if !exists {
		client = &clientLimiter{limiter: rate.NewLimiter(rateLimiter.rps, rateLimiter.burst)}
		rateLimiter.clients[clientIP] = client
	}
	client.lastSeen = time.Now()
	return client.limiter.Allow()
}

// Handler is the middleware adapter for the rate limiter.
func (rateLimiter *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		clientIP := request.RemoteAddr
		if host, _, err := net.SplitHostPort(clientIP); err == nil {
			clientIP = host
		}

		if !rateLimiter.allow(clientIP) {
			respond.Error(writer, request, apperr.RateLimited(1))
			return
		}
		next.ServeHTTP(writer, request)
	})
}

// CORS applies the cross-origin policy for the browser frontend. Only origins
// in the allow-list receive CORS headers; preflight requests short-circuit.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	originSet := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		originSet[origin] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			origin := request.Header.Get(constants.HeaderOrigin)
			if _, allowed := originSet[origin]; allowed {
				writer.Header().Set("Access-Control-Allow-Origin", origin)
				writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
				writer.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Request-ID")
				writer.Header().Set("Access-Control-Allow-Credentials", "true")
				writer.Header().Set("Vary", "Origin")
			}

			if request.Method == http.MethodOptions {
				writer.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(writer, request)
		})
	}
}
