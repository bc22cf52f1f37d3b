// Copyright (c) 2026 Ace Job Agency. All rights reserved.
// Author: platform@acejobs.sg

// Package request provides HTTP request parsing helpers shared by all handlers.
package request

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/acejobs/portal/internal/platform/apperr"
	"github.com/acejobs/portal/internal/platform/ctxutil"
	"github.com/acejobs/portal/internal/platform/sec"
	"github.com/acejobs/portal/internal/platform/validate"
	"github.com/go-chi/chi/v5"
)

// maxBodyBytes caps JSON request bodies to guard against oversized payloads.
const maxBodyBytes = 1 << 20 // 1 MiB

// DecodeJSON reads and decodes the request body into destination.
//
// The body is size-limited and unknown fields are rejected so that client
// typos surface as 400s instead of silently dropped data.
func DecodeJSON(writer http.ResponseWriter, httpRequest *http.Request, destination interface{}) error {
	httpRequest.Body = http.MaxBytesReader(writer, httpRequest.Body, maxBodyBytes)

	decoder := json.NewDecoder(httpRequest.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(destination); err != nil {
		return validate.ErrInvalidJSON
	}

	// Reject trailing garbage after the first JSON value.
	if decoder.More() {
		return validate.ErrInvalidJSON
	}
	return nil
}

// URLParam returns a chi route parameter by name.
func URLParam(httpRequest *http.Request, name string) string {
	return chi.URLParam(httpRequest, name)
}

// QueryInt parses an integer query parameter, falling back to defaultValue
// when the parameter is absent or malformed.
func QueryInt(httpRequest *http.Request, name string, defaultValue int) int {
	raw := httpRequest.URL.Query().Get(name)
	if raw == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return defaultValue
	}
	return parsed
}

// Identity returns the authenticated identity attached to the request context,
// or an Unauthorized error when the request carries no valid session.
func Identity(httpRequest *http.Request) (*sec.Identity, error) {
	identity := ctxutil.GetIdentity(httpRequest.Context())
	if identity == nil {
		return nil, apperr.Unauthorized("Authentication required.")
	}
	return identity, nil
}
