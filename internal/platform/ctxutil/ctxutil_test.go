// Copyright (c) 2026 Ace Job Agency. All rights reserved.
// Author: platform@acejobs.sg

package ctxutil_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acejobs/portal/internal/platform/ctxutil"
	"github.com/acejobs/portal/internal/platform/sec"
)

func TestRequestID_RoundTrip(t *testing.T) {
	ctx := ctxutil.WithRequestID(context.Background(), "req-123")
	assert.Equal(t, "req-123", ctxutil.GetRequestID(ctx))
}

func TestRequestID_Missing(t *testing.T) {
	assert.Empty(t, ctxutil.GetRequestID(context.Background()))
}

func TestLogger_RoundTrip(t *testing.T) {
	logger := slog.Default().With(slog.String("test", "value"))
	ctx := ctxutil.WithLogger(context.Background(), logger)
	assert.Same(t, logger, ctxutil.GetLogger(ctx))
}

func TestLogger_FallsBackToDefault(t *testing.T) {
	require.NotNil(t, ctxutil.GetLogger(context.Background()))
}

func TestIdentity_RoundTrip(t *testing.T) {
	identity := &sec.Identity{
		MemberID:    "mem-1",
		Email:        "jane@example.com",
		SessionID:    "sess-1",
		SessionToken: "opaque",
	}

	ctx := ctxutil.WithIdentity(context.Background(), identity)
	resolved := ctxutil.GetIdentity(ctx)

	require.NotNil(t, resolved)
	assert.Equal(t, "mem-1", resolved.MemberID)
	assert.Equal(t, "jane@example.com", resolved.Email)
}

func TestIdentity_Anonymous(t *testing.T) {
	assert.Nil(t, ctxutil.GetIdentity(context.Background()))
}
