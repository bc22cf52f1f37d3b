// Copyright (c) 2026 Ace Job Agency. All rights reserved.
// Author: platform@acejobs.sg

package sec

// Identity describes the member behind an authenticated request.
//
// It is resolved by the session middleware from an opaque session token and
// carried in the request context. The token itself is included so that
// handlers (logout, change-password) can act on the session that presented it.
type Identity struct {
	MemberID     string
	Email        string
	SessionID    string
	SessionToken string
}
