// Copyright (c) 2026 Ace Job Agency. All rights reserved.
// Author: platform@acejobs.sg

package audit

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/acejobs/portal/internal/platform/dberr"
	"github.com/acejobs/portal/pkg/pagination"
)

// PostgresStore implements the [Store] interface using pgx.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL implementation of the audit [Store].
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

/*
Insert appends one entry to the users.auditlog table.

Parameters:
  - context: context.Context
  - entry: *Entry

Returns:
  - error: Database constraint violations or connectivity errors
*/
func (store *PostgresStore) Insert(context context.Context, entry *Entry) error {
	const query = `
		INSERT INTO users.auditlog (
			id, memberid, action, ipaddress, useragent, createdat
		) VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := store.pool.Exec(context, query,
		entry.ID,
		entry.MemberID,
		entry.Action,
		entry.IPAddress,
		entry.UserAgent,
		entry.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("postgres_audit_insert_failed: %w", err)
	}

	return nil
}

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
func (store *PostgresStore) ListByMember(context context.Context, memberID string, params pagination.Params) ([]Entry, int, error) {
	const countQuery = `
		SELECT COUNT(*)
		FROM users.auditlog
		WHERE memberid = $1`

	var total int
	if err := store.pool.QueryRow(context, countQuery, memberID).Scan(&total); err != nil {
		return nil, 0, dberr.Wrap(err)
	}

	const listQuery = `
		SELECT id, memberid, action, ipaddress, useragent, createdat
		FROM users.auditlog
		WHERE memberid = $1
		ORDER BY createdat DESC
		LIMIT $2 OFFSET $3`

	rows, err := store.pool.Query(context, listQuery, memberID, params.Limit, params.Offset())
	if err != nil {
		return nil, 0, dberr.Wrap(err)
	}
	defer rows.Close()

	entries := make([]Entry, 0, params.Limit)
	for rows.Next() {
		var entry Entry
		if err := rows.Scan(
			&entry.ID,
			&entry.MemberID,
			&entry.Action,
			&entry.IPAddress,
			&entry.UserAgent,
			&entry.CreatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("postgres_audit_scan_failed: %w", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("postgres_audit_rows_failed: %w", err)
	}

	return entries, total, nil
}
