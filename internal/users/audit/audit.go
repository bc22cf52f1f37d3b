// Copyright (c) 2026 Ace Job Agency. All rights reserved.
// Author: platform@acejobs.sg

/*
Package audit records security-relevant account activity.

Every authentication event (logins, failures, password changes, logouts) is
written to an append-only trail that members can review from their profile.

# Architecture

Writes go through an asynchronous [Recorder] so the hot login path never
blocks on the audit table. Audit persistence failures are logged and dropped;
they must never fail the user-facing operation that triggered them.
*/
package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/acejobs/portal/pkg/pagination"
	"github.com/acejobs/portal/pkg/uuidv7"
)

// # Activity Types

const (
	ActionAccountCreated     = "Account Created"
	ActionLoginSucceeded     = "Successful Login"
	ActionLoginFailed        = "Failed Login Attempt"
	ActionLoggedOut          = "Logged Out"
	ActionPasswordChanged    = "Password Changed"
	ActionPasswordReset      = "Password Reset"
	ActionSessionDisplaced   = "Session Displaced"
	ActionAccountLocked      = "Account Locked"
	ActionPasswordResetAsked = "Password Reset Requested"
)

// Entry is one immutable row of the account activity trail.
type Entry struct {
	ID        string    `json:"id"`
	MemberID  string    `json:"-"`
	Action    string    `json:"action"`
	IPAddress string    `json:"ip_address"`
	UserAgent string    `json:"user_agent"`
	CreatedAt time.Time `json:"created_at"`
}

// Store defines the persistence contract for audit entries.
type Store interface {

	/*
		Insert appends one entry to the trail.

		Parameters:
		  - context: context.Context
		  - entry: *Entry

		Returns:
		  - error: Persistence failures
	*/
	Insert(context context.Context, entry *Entry) error

	/*
		ListByMember returns a page of entries for one member, newest first.

		Parameters:
		  - context: context.Context
		  - memberID: string
		  - params: pagination.Params

		Returns:
		  - []Entry: The requested page
		  - int: Total entry count for the member
		  - error: Database retrieval failures
	*/
	ListByMember(context context.Context, memberID string, params pagination.Params) ([]Entry, int, error)
}

// # Asynchronous Recorder

// insertTimeout bounds each background insert so a stuck database cannot
// pile up goroutine-years of pending writes.
const insertTimeout = 5 * time.Second

// queueDepth is the recorder's buffer size. Bursts beyond it are dropped.
const queueDepth = 256

// Recorder writes audit entries asynchronously through a buffered queue.
type Recorder struct {
	store  Store
	logger *slog.Logger
	queue  chan *Entry
	wg     sync.WaitGroup
}

// NewRecorder starts the background writer and returns the recorder.
func NewRecorder(store Store, logger *slog.Logger) *Recorder {
	recorder := &Recorder{
		store:  store,
		logger: logger,
		queue:  make(chan *Entry, queueDepth),
	}

	recorder.wg.Add(1)
	go recorder.run()
	return recorder
}

// Record enqueues one activity entry. It never blocks: when the queue is
// full the entry is dropped and a warning is logged.
func (recorder *Recorder) Record(memberID, action, ipAddress, userAgent string) {
	entry := &Entry{
		ID:        uuidv7.New(),
		MemberID:  memberID,
		Action:    action,
		IPAddress: ipAddress,
		UserAgent: userAgent,
		CreatedAt: time.Now().UTC(),
	}

	select {
	case recorder.queue <- entry:
	default:
		recorder.logger.Warn("audit_queue_full",
			slog.String("action", action),
			slog.String("member_id", memberID),
		)
	}
}

// Close stops accepting entries, drains the queue, and waits for the writer.
func (recorder *Recorder) Close() {
	close(recorder.queue)
	recorder.wg.Wait()
}

// run is the background writer loop.
func (recorder *Recorder) run() {
	defer recorder.wg.Done()

	for entry := range recorder.queue {
		ctx, cancel := context.WithTimeout(context.Background(), insertTimeout)
		if err := recorder.store.Insert(ctx, entry); err != nil {
			recorder.logger.Error("audit_insert_failed",
				slog.String("action", entry.Action),
				slog.String("member_id", entry.MemberID),
				slog.String("error", err.Error()),
			)
		}
		cancel()
	}
}
