// Copyright (c) 2026 Ace Job Agency. All rights reserved.
// Author: platform@acejobs.sg

// PostgreSQL implementations of the auth repositories.
//
// # Error Mapping
//
// Storage-specific errors (like pgx.ErrNoRows) are mapped to domain-friendly
// [apperr.AppError] types via dberr to avoid leaking storage details.

package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/acejobs/portal/internal/platform/apperr"
	"github.com/acejobs/portal/internal/platform/dberr"
)

// memberColumns is the canonical select list for hydrating a [Member].
const memberColumns = `
	id, firstname, lastname, gender, nric, email, passwordhash, dateofbirth,
	resumekey, resumefilename, whoami, failedlogins, lockeduntil,
	passwordsetat, createdat, updatedat`

// # Member Repository

// PostgresMemberRepository implements the MemberRepository interface using pgx.
type PostgresMemberRepository struct {
	pool *pgxpool.Pool
}

// NewMemberRepository creates a new PostgreSQL implementation of the MemberRepository.
func NewMemberRepository(pool *pgxpool.Pool) *PostgresMemberRepository {
	return &PostgresMemberRepository{pool: pool}
}

/*
Create persists a new member record into the users.member table.

Parameters:
  - context: context.Context
  - member: *Member (Entity to persist)

Returns:
  - error: apperr.Conflict on duplicate email, or connectivity errors
*/
func (repository *PostgresMemberRepository) Create(context context.Context, member *Member) error {
	const query = `
		INSERT INTO users.member (
			id, firstname, lastname, gender, nric, email, passwordhash,
			dateofbirth, resumekey, resumefilename, whoami, failedlogins,
			lockeduntil, passwordsetat, createdat, updatedat
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

	now := time.Now()
	if member.CreatedAt.IsZero() {
		member.CreatedAt = now
	}
	member.UpdatedAt = now

	_, err := repository.pool.Exec(context, query,
		member.ID,
		member.FirstName,
		member.LastName,
		member.Gender,
		member.NRIC,
		member.Email,
		member.PasswordHash,
		member.DateOfBirth,
		member.ResumeKey,
		member.ResumeFileName,
		member.WhoAmI,
		member.FailedLogins,
		member.LockedUntil,
		member.PasswordSetAt,
		member.CreatedAt,
		member.UpdatedAt,
	)

	if err != nil {
		return dberr.Wrap(err)
	}

	return nil
}

/*
FindByID retrieves a member record by primary key.

Parameters:
  - context: context.Context
  - id: string

Returns:
  - *Member: Hydrated member entity
  - error: dberr.ErrNotFound or database errors
*/
func (repository *PostgresMemberRepository) FindByID(context context.Context, id string) (*Member, error) {
	query := `SELECT` + memberColumns + ` FROM users.member WHERE id = $1`
	return repository.scanMember(repository.pool.QueryRow(context, query, id))
}

/*
FindByEmail retrieves a member record by their unique email address.

Parameters:
  - context: context.Context
  - email: string

Returns:
  - *Member: Hydrated member entity
  - error: dberr.ErrNotFound or database errors
*/
func (repository *PostgresMemberRepository) FindByEmail(context context.Context, email string) (*Member, error) {
	query := `SELECT` + memberColumns + ` FROM users.member WHERE lower(email) = lower($1)`
	return repository.scanMember(repository.pool.QueryRow(context, query, email))
}

// scanMember hydrates one member row.
func (repository *PostgresMemberRepository) scanMember(row pgx.Row) (*Member, error) {
	member := &Member{}
	err := row.Scan(
		&member.ID,
		&member.FirstName,
		&member.LastName,
		&member.Gender,
		&member.NRIC,
		&member.Email,
		&member.PasswordHash,
		&member.DateOfBirth,
		&member.ResumeKey,
		&member.ResumeFileName,
		&member.WhoAmI,
		&member.FailedLogins,
		&member.LockedUntil,
		&member.PasswordSetAt,
		&member.CreatedAt,
		&member.UpdatedAt,
	)
	if err != nil {
		return nil, dberr.Wrap(err)
	}
	return member, nil
}

/*
UpdateWhoAmI replaces the member's free-text introduction.

Parameters:
  - context: context.Context
  - memberID: string
  - whoAmI: string

Returns:
  - error: Persistence failures
*/
func (repository *PostgresMemberRepository) UpdateWhoAmI(context context.Context, memberID, whoAmI string) error {
	const query = `
		UPDATE users.member
		SET whoami = $2, updatedat = $3
		WHERE id = $1`

	tag, err := repository.pool.Exec(context, query, memberID, whoAmI, time.Now())
	if err != nil {
		return dberr.Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return dberr.ErrNotFound
	}
	return nil
}

/*
UpdateResume records a newly stored resume for the member.

Parameters:
  - context: context.Context
  - memberID: string
  - resumeKey: string
  - fileName: string

Returns:
  - error: Persistence failures
*/
func (repository *PostgresMemberRepository) UpdateResume(context context.Context, memberID, resumeKey, fileName string) error {
	const query = `
		UPDATE users.member
		SET resumekey = $2, resumefilename = $3, updatedat = $4
		WHERE id = $1`

	tag, err := repository.pool.Exec(context, query, memberID, resumeKey, fileName, time.Now())
	if err != nil {
		return dberr.Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return dberr.ErrNotFound
	}
	return nil
}

/*
UpdatePassword replaces only the member's password hash and its set-time.

Parameters:
  - context: context.Context
  - memberID: string
  - newHash: string
  - setAt: time.Time

Returns:
  - error: Persistence failures
*/
func (repository *PostgresMemberRepository) UpdatePassword(context context.Context, memberID, newHash string, setAt time.Time) error {
	const query = `
		UPDATE users.member
		SET passwordhash = $2, passwordsetat = $3, updatedat = $3
		WHERE id = $1`

	tag, err := repository.pool.Exec(context, query, memberID, newHash, setAt)
	if err != nil {
		return dberr.Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return dberr.ErrNotFound
	}
	return nil
}

/*
RecordLoginFailure atomically increments the failed-login counter in a single
UPDATE so concurrent failures never lose increments. When the counter reaches
the threshold, the lockout deadline is set and the counter resets to zero.

Parameters:
  - context: context.Context
  - memberID: string
  - threshold: int
  - lockFor: time.Duration

Returns:
  - *time.Time: The lockout deadline when this failure triggered one, else nil
  - error: Persistence failures
*/
func (repository *PostgresMemberRepository) RecordLoginFailure(context context.Context, memberID string, threshold int, lockFor time.Duration) (*time.Time, error) {
	const query = `
		UPDATE users.member
		SET failedlogins = CASE WHEN failedlogins + 1 >= $2 THEN 0 ELSE failedlogins + 1 END,
		    lockeduntil  = CASE WHEN failedlogins + 1 >= $2 THEN $3::timestamptz ELSE lockeduntil END,
		    updatedat    = $4
		WHERE id = $1
		RETURNING failedlogins, lockeduntil`

	now := time.Now()
	deadline := now.Add(lockFor)

	var remaining int
	var lockedUntil *time.Time
	err := repository.pool.QueryRow(context, query, memberID, threshold, deadline, now).
		Scan(&remaining, &lockedUntil)
	if err != nil {
		return nil, dberr.Wrap(err)
	}

	// The counter resets to zero only when this failure tripped the lock.
	if remaining == 0 {
		return lockedUntil, nil
	}
	return nil, nil
}

/*
ClearLoginFailures resets the lockout state after a successful authentication.

Parameters:
  - context: context.Context
  - memberID: string

Returns:
  - error: Persistence failures
*/
func (repository *PostgresMemberRepository) ClearLoginFailures(context context.Context, memberID string) error {
	const query = `
		UPDATE users.member
		SET failedlogins = 0, lockeduntil = NULL, updatedat = $2
		WHERE id = $1`

	if _, err := repository.pool.Exec(context, query, memberID, time.Now()); err != nil {
		return dberr.Wrap(err)
	}
	return nil
}

// # Session Repository

// PostgresSessionRepository implements the SessionRepository interface using pgx.
type PostgresSessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository creates a new PostgreSQL implementation of the SessionRepository.
func NewSessionRepository(pool *pgxpool.Pool) *PostgresSessionRepository {
	return &PostgresSessionRepository{pool: pool}
}

// sessionColumns is the canonical select list for hydrating a [Session].
const sessionColumns = `
	id, memberid, tokenhash, ipaddress, useragent, createdat, lastseenat, revokedat`

/*
EvictActive revokes every unrevoked session for the member.

Description: Runs inside a transaction that locks the member row, so
concurrent logins for the same member serialize against each other. All
unrevoked rows are revoked; only the ones still inside the idle window at
`at` are returned as evicted live sessions.

Parameters:
  - context: context.Context
  - memberID: string
  - at: time.Time

Returns:
  - []Session: The evicted sessions that were still live at `at`
  - error: Persistence failures
*/
func (repository *PostgresSessionRepository) EvictActive(context context.Context, memberID string, at time.Time) ([]Session, error) {
	transaction, err := repository.pool.Begin(context)
	if err != nil {
		return nil, fmt.Errorf("postgres_session_repo_begin_failed: %w", err)
	}
	defer transaction.Rollback(context)

	// Serialize concurrent logins on the member row.
	const lockQuery = `SELECT id FROM users.member WHERE id = $1 FOR UPDATE`
	var lockedID string
	if err := transaction.QueryRow(context, lockQuery, memberID).Scan(&lockedID); err != nil {
		return nil, dberr.Wrap(err)
	}

	revokeQuery := `
		UPDATE users.session
		SET revokedat = $2
		WHERE memberid = $1 AND revokedat IS NULL
		RETURNING` + sessionColumns

	rows, err := transaction.Query(context, revokeQuery, memberID, at)
	if err != nil {
		return nil, dberr.Wrap(err)
	}

	var evicted []Session
	for rows.Next() {
		var session Session
		err := rows.Scan(
			&session.ID,
			&session.MemberID,
			&session.TokenHash,
			&session.IPAddress,
			&session.UserAgent,
			&session.CreatedAt,
			&session.LastSeenAt,
			&session.RevokedAt,
		)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("postgres_session_repo_scan_failed: %w", err)
		}
		// Stale rows are cleaned up silently; only live ones count as evicted.
		if at.Sub(session.LastSeenAt) <= SessionIdleTimeout {
			evicted = append(evicted, session)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres_session_repo_rows_failed: %w", err)
	}

	if err := transaction.Commit(context); err != nil {
		return nil, fmt.Errorf("postgres_session_repo_commit_failed: %w", err)
	}
	return evicted, nil
}

/*
Create installs a new session for the member.

Description: Runs inside a transaction that locks the member row. If a live
session already exists the insert is rejected with a conflict, so two logins
racing past the eviction gate cannot both end up signed in. Stale unrevoked
rows are revoked rather than blocking the insert.

Parameters:
  - context: context.Context
  - session: *Session

Returns:
  - error: apperr.Conflict when a live session exists, or persistence failures
*/
func (repository *PostgresSessionRepository) Create(context context.Context, session *Session) error {
	transaction, err := repository.pool.Begin(context)
	if err != nil {
		return fmt.Errorf("postgres_session_repo_begin_failed: %w", err)
	}
	defer transaction.Rollback(context)

	const lockQuery = `SELECT id FROM users.member WHERE id = $1 FOR UPDATE`
	var lockedID string
	if err := transaction.QueryRow(context, lockQuery, session.MemberID).Scan(&lockedID); err != nil {
		return dberr.Wrap(err)
	}

	const liveQuery = `
		SELECT lastseenat FROM users.session
		WHERE memberid = $1 AND revokedat IS NULL`
	var lastSeenAt time.Time
	err = transaction.QueryRow(context, liveQuery, session.MemberID).Scan(&lastSeenAt)
	switch {
	case err == pgx.ErrNoRows:
		// No unrevoked session; proceed.
	case err != nil:
		return dberr.Wrap(err)
	case session.CreatedAt.Sub(lastSeenAt) <= SessionIdleTimeout:
		return apperr.Conflict(MsgSessionDisplaced).WithCode("SESSION_COLLISION")
	default:
		// Stale unrevoked row; revoke it so the live-session index accepts the insert.
		const reapQuery = `
			UPDATE users.session
			SET revokedat = $2
			WHERE memberid = $1 AND revokedat IS NULL`
		if _, err := transaction.Exec(context, reapQuery, session.MemberID, session.CreatedAt); err != nil {
			return dberr.Wrap(err)
		}
	}

	const insertQuery = `
		INSERT INTO users.session (
			id, memberid, tokenhash, ipaddress, useragent, createdat, lastseenat
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err = transaction.Exec(context, insertQuery,
		session.ID,
		session.MemberID,
		session.TokenHash,
		session.IPAddress,
		session.UserAgent,
		session.CreatedAt,
		session.LastSeenAt,
	)
	if err != nil {
		return dberr.Wrap(err)
	}

	if err := transaction.Commit(context); err != nil {
		return fmt.Errorf("postgres_session_repo_commit_failed: %w", err)
	}
	return nil
}

/*
FindByTokenHash retrieves a session by its token digest.

Parameters:
  - context: context.Context
  - tokenHash: string

Returns:
  - *Session: Hydrated entity, revoked or not
  - error: dberr.ErrNotFound or database errors
*/
func (repository *PostgresSessionRepository) FindByTokenHash(context context.Context, tokenHash string) (*Session, error) {
	query := `SELECT` + sessionColumns + ` FROM users.session WHERE tokenhash = $1`

	session := &Session{}
	err := repository.pool.QueryRow(context, query, tokenHash).Scan(
		&session.ID,
		&session.MemberID,
		&session.TokenHash,
		&session.IPAddress,
		&session.UserAgent,
		&session.CreatedAt,
		&session.LastSeenAt,
		&session.RevokedAt,
	)
	if err != nil {
		return nil, dberr.Wrap(err)
	}
	return session, nil
}

/*
Touch slides the session's idle window forward.

Parameters:
  - context: context.Context
  - sessionID: string
  - seenAt: time.Time

Returns:
  - error: Persistence failures
*/
func (repository *PostgresSessionRepository) Touch(context context.Context, sessionID string, seenAt time.Time) error {
	const query = `
		UPDATE users.session
		SET lastseenat = $2
		WHERE id = $1 AND revokedat IS NULL`

	if _, err := repository.pool.Exec(context, query, sessionID, seenAt); err != nil {
		return dberr.Wrap(err)
	}
	return nil
}

/*
RevokeAllForMember terminates every live session for the member, sparing the
given session when exceptSessionID is non-empty.

Parameters:
  - context: context.Context
  - memberID: string
  - exceptSessionID: string
  - at: time.Time

Returns:
  - error: Persistence failures
*/
func (repository *PostgresSessionRepository) RevokeAllForMember(context context.Context, memberID, exceptSessionID string, at time.Time) error {
	const query = `
		UPDATE users.session
		SET revokedat = $3
		WHERE memberid = $1 AND revokedat IS NULL AND ($2 = '' OR id <> $2)`

	if _, err := repository.pool.Exec(context, query, memberID, exceptSessionID, at); err != nil {
		return dberr.Wrap(err)
	}
	return nil
}

/*
Revoke terminates the session. Revoking an already revoked session is a no-op.

Parameters:
  - context: context.Context
  - sessionID: string
  - at: time.Time

Returns:
  - error: Persistence failures
*/
func (repository *PostgresSessionRepository) Revoke(context context.Context, sessionID string, at time.Time) error {
	const query = `
		UPDATE users.session
		SET revokedat = $2
		WHERE id = $1 AND revokedat IS NULL`

	if _, err := repository.pool.Exec(context, query, sessionID, at); err != nil {
		return dberr.Wrap(err)
	}
	return nil
}

// # Password History Repository

// PostgresPasswordHistoryRepository implements PasswordHistoryRepository using pgx.
type PostgresPasswordHistoryRepository struct {
	pool *pgxpool.Pool
}

// NewPasswordHistoryRepository creates a new PostgreSQL implementation of the
// PasswordHistoryRepository.
func NewPasswordHistoryRepository(pool *pgxpool.Pool) *PostgresPasswordHistoryRepository {
	return &PostgresPasswordHistoryRepository{pool: pool}
}

/*
RecentHashes returns up to limit retired hashes for the member, newest first.

Parameters:
  - context: context.Context
  - memberID: string
  - limit: int

Returns:
  - []string: Retired bcrypt hashes
  - error: Database retrieval failures
*/
func (repository *PostgresPasswordHistoryRepository) RecentHashes(context context.Context, memberID string, limit int) ([]string, error) {
	const query = `
		SELECT passwordhash
		FROM users.passwordhistory
		WHERE memberid = $1
		ORDER BY retiredat DESC
		LIMIT $2`

	rows, err := repository.pool.Query(context, query, memberID, limit)
	if err != nil {
		return nil, dberr.Wrap(err)
	}
	defer rows.Close()

	hashes := make([]string, 0, limit)
	for rows.Next() {
		var hash string
		if err := rows.Scan(&hash); err != nil {
			return nil, fmt.Errorf("postgres_history_repo_scan_failed: %w", err)
		}
		hashes = append(hashes, hash)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres_history_repo_rows_failed: %w", err)
	}
	return hashes, nil
}

/*
Append records a retired hash. The ledger is append-only; reuse checks bound
how many rows they consult, not how many exist.

Parameters:
  - context: context.Context
  - memberID: string
  - hash: string
  - retiredAt: time.Time

Returns:
  - error: Persistence failures
*/
func (repository *PostgresPasswordHistoryRepository) Append(context context.Context, memberID, hash string, retiredAt time.Time) error {
	const query = `
		INSERT INTO users.passwordhistory (memberid, passwordhash, retiredat)
		VALUES ($1, $2, $3)`
	if _, err := repository.pool.Exec(context, query, memberID, hash, retiredAt); err != nil {
		return dberr.Wrap(err)
	}
	return nil
}
