// Package sqlite provides a durable audit store backed by SQLite.
// It implements the same audit.Store interface as the in-memory
// adapter so deployments can swap it in without touching the engine.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/aegis-gate/aegis/internal/domain/audit"
)

// schema creates the audit table and its query indexes. seq preserves
// append order for entries sharing a timestamp.
const schema = `
CREATE TABLE IF NOT EXISTS audit_entries (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	id         TEXT NOT NULL UNIQUE,
	tenant_id  TEXT NOT NULL DEFAULT '',
	actor_id   TEXT NOT NULL,
	actor_type TEXT NOT NULL,
	action     TEXT NOT NULL,
	resource   TEXT NOT NULL,
	result     TEXT NOT NULL,
	details    TEXT NOT NULL DEFAULT '{}',
	ts_unix_ns INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_audit_tenant_ts ON audit_entries (tenant_id, ts_unix_ns);
CREATE INDEX IF NOT EXISTS idx_audit_actor ON audit_entries (actor_id);
CREATE INDEX IF NOT EXISTS idx_audit_result ON audit_entries (result);
`

// AuditStore implements audit.Store on a SQLite database file.
type AuditStore struct {
	db *sql.DB
}

// Open opens (creating if needed) the SQLite database at path and
// applies the schema.
func Open(path string) (*AuditStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// modernc sqlite serializes writes; a single connection avoids
	// SQLITE_BUSY on concurrent appends.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply audit schema: %w", err)
	}
	return &AuditStore{db: db}, nil
}

// Append stores entries in one transaction.
func (s *AuditStore) Append(ctx context.Context, entries ...audit.Entry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin audit append: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO audit_entries
		(id, tenant_id, actor_id, actor_type, action, resource, result, details, ts_unix_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare audit insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		details, err := json.Marshal(e.Details)
		if err != nil {
			return fmt.Errorf("encode audit details: %w", err)
		}
		if _, err := stmt.ExecContext(ctx,
			e.ID, e.TenantID, e.ActorID, e.ActorType, e.Action,
			e.Resource, e.Result, string(details), e.Timestamp.UnixNano(),
		); err != nil {
			return fmt.Errorf("insert audit entry %s: %w", e.ID, err)
		}
	}
	return tx.Commit()
}

// Query returns entries matching the filter, most recent first.
func (s *AuditStore) Query(ctx context.Context, filter audit.Filter) ([]audit.Entry, error) {
	var (
		where []string
		args  []any
	)
	addEq := func(col, val string) {
		if val != "" {
			where = append(where, col+" = ?")
			args = append(args, val)
		}
	}
	addEq("tenant_id", filter.TenantID)
	addEq("actor_id", filter.ActorID)
	addEq("actor_type", filter.ActorType)
	addEq("action", filter.Action)
	addEq("resource", filter.Resource)
	addEq("result", filter.Result)
	if !filter.From.IsZero() {
		where = append(where, "ts_unix_ns >= ?")
		args = append(args, filter.From.UnixNano())
	}
	if !filter.To.IsZero() {
		where = append(where, "ts_unix_ns <= ?")
		args = append(args, filter.To.UnixNano())
	}

	query := `SELECT id, tenant_id, actor_id, actor_type, action, resource, result, details, ts_unix_ns
		FROM audit_entries`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY ts_unix_ns DESC, seq DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	} else if filter.Offset > 0 {
		// SQLite requires a LIMIT clause before OFFSET.
		query += " LIMIT -1 OFFSET ?"
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	var result []audit.Entry
	for rows.Next() {
		var (
			e       audit.Entry
			details string
			tsNanos int64
		)
		if err := rows.Scan(&e.ID, &e.TenantID, &e.ActorID, &e.ActorType,
			&e.Action, &e.Resource, &e.Result, &details, &tsNanos); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		if details != "" && details != "null" {
			if err := json.Unmarshal([]byte(details), &e.Details); err != nil {
				return nil, fmt.Errorf("decode audit details for %s: %w", e.ID, err)
			}
		}
		e.Timestamp = time.Unix(0, tsNanos).UTC()
		result = append(result, e)
	}
	return result, rows.Err()
}

// PurgeBefore deletes entries older than the cutoff.
func (s *AuditStore) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM audit_entries WHERE ts_unix_ns < ?", cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("purge audit entries: %w", err)
	}
	return res.RowsAffected()
}

// Close closes the underlying database.
func (s *AuditStore) Close() error {
	return s.db.Close()
}

// Compile-time interface verification.
var _ audit.Store = (*AuditStore)(nil)
