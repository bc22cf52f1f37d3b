// Copyright (c) 2026 Ace Job Agency. All rights reserved.
// Author: platform@acejobs.sg

package audit

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acejobs/portal/pkg/pagination"
)

type memoryStore struct {
	mu      sync.Mutex
	entries []Entry

	// release, when set, blocks Insert until closed.
	release chan struct{}
}

func (store *memoryStore) Insert(_ context.Context, entry *Entry) error {
	if store.release != nil {
		<-store.release
	}
	store.mu.Lock()
	defer store.mu.Unlock()
	store.entries = append(store.entries, *entry)
	return nil
}

func (store *memoryStore) ListByMember(_ context.Context, memberID string, params pagination.Params) ([]Entry, int, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	var matched []Entry
	for _, entry := range store.entries {
		if entry.MemberID == memberID {
			matched = append(matched, entry)
		}
	}
	total := len(matched)

	offset := params.Offset()
	if offset > total {
		offset = total
	}
	end := offset + params.Limit
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

func (store *memoryStore) snapshot() []Entry {
	store.mu.Lock()
	defer store.mu.Unlock()
	return append([]Entry(nil), store.entries...)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRecorder_WritesEntries(t *testing.T) {
	store := &memoryStore{}
	recorder := NewRecorder(store, quietLogger())

	recorder.Record("member-1", ActionLoginSucceeded, "10.0.0.1", "agent")
	recorder.Record("member-1", ActionLoggedOut, "10.0.0.1", "agent")
	recorder.Close()

	entries := store.snapshot()
	require.Len(t, entries, 2)
	assert.Equal(t, ActionLoginSucceeded, entries[0].Action)
	assert.Equal(t, ActionLoggedOut, entries[1].Action)
	assert.Equal(t, "member-1", entries[0].MemberID)
	assert.NotEmpty(t, entries[0].ID)
	assert.False(t, entries[0].CreatedAt.IsZero())
}

func TestRecorder_CloseDrainsQueue(t *testing.T) {
	store := &memoryStore{}
	recorder := NewRecorder(store, quietLogger())

	for i := 0; i < 50; i++ {
		recorder.Record("member-1", ActionLoginFailed, "10.0.0.1", "agent")
	}
	recorder.Close()

	assert.Len(t, store.snapshot(), 50)
}

func TestRecorder_DropsWhenQueueFull(t *testing.T) {
	store := &memoryStore{release: make(chan struct{})}
	recorder := NewRecorder(store, quietLogger())

	// The writer blocks on the first entry, so everything beyond the buffer
	// plus the in-flight entry must be dropped rather than block the caller.
	total := queueDepth + 50
	done := make(chan struct{})
	go func() {
		for i := 0; i < total; i++ {
			recorder.Record("member-1", ActionLoginFailed, "10.0.0.1", "agent")
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Record blocked on a full queue")
	}

	close(store.release)
	recorder.Close()

	written := len(store.snapshot())
	assert.LessOrEqual(t, written, queueDepth+1)
	assert.Greater(t, written, 0)
}

func TestMemoryStore_ListByMember_Pages(t *testing.T) {
	store := &memoryStore{}
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, store.Insert(ctx, &Entry{ID: "e", MemberID: "member-1", Action: ActionLoginSucceeded}))
	}
	require.NoError(t, store.Insert(ctx, &Entry{ID: "e", MemberID: "member-2", Action: ActionLoginSucceeded}))

	page, total, err := store.ListByMember(ctx, "member-1", pagination.Params{Page: 2, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Len(t, page, 2)
}
