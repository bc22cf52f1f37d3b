// Copyright (c) 2026 Ace Job Agency. All rights reserved.
// Author: platform@acejobs.sg

package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/acejobs/portal/internal/platform/apperr"
	"github.com/acejobs/portal/internal/platform/constants"
	"github.com/acejobs/portal/internal/platform/ctxutil"
	"github.com/acejobs/portal/internal/platform/respond"
	"github.com/acejobs/portal/internal/platform/sec"
)

// SessionResolver resolves an opaque bearer token to an authenticated identity.
//
// Implementations own the liveness rules: a token for an idle-expired session,
// a session superseded by a login on another device, or an unknown token must
// all return an error rather than an identity. Resolving a token also slides
// the session's idle window forward.
type SessionResolver interface {
	ResolveSession(ctx context.Context, token string) (*sec.Identity, error)
}

// Authenticate extracts the bearer token from the Authorization header and,
// when present, resolves it to an identity stored in the request context.
//
// Requests without a token pass through unauthenticated; RequireAuth is the
// gate that rejects them. Requests with an invalid or dead token are rejected
// here so a stale client learns immediately that its session is gone.
func Authenticate(resolver SessionResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			token, present := bearerToken(request)
			if !present {
				next.ServeHTTP(writer, request)
				return
			}

			identity, err := resolver.ResolveSession(request.Context(), token)
			if err != nil {
				respond.Error(writer, request, err)
				return
			}

			ctx := ctxutil.WithIdentity(request.Context(), identity)
			next.ServeHTTP(writer, request.WithContext(ctx))
		})
	}
}

// RequireAuth rejects requests that did not authenticate.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if identity := ctxutil.GetIdentity(request.Context()); identity == nil {
			respond.Error(writer, request, apperr.Unauthorized("Authentication required."))
			return
		}
		next.ServeHTTP(writer, request)
	})
}

// bearerToken extracts the token from an "Authorization: Bearer <token>" header.
func bearerToken(request *http.Request) (string, bool) {
	header := request.Header.Get(constants.SessionTokenHeader)
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}
	return token, true
}
