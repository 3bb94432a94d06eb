package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"

	"github.com/platinummonkey/warden/pkg/permission"
)

// DBLogger writes audit records to PostgreSQL
type DBLogger struct {
	db *sql.DB
}

// NewDBLogger creates a new database-backed audit sink
func NewDBLogger(db *sql.DB) (*DBLogger, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	logger := &DBLogger{
		db: db,
	}

	if err := logger.ensureTable(); err != nil {
		return nil, fmt.Errorf("failed to ensure audit_records table: %w", err)
	}

	return logger, nil
}

// ensureTable creates the audit_records table if it doesn't exist
func (l *DBLogger) ensureTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS audit_records (
		id VARCHAR(36) PRIMARY KEY,
		timestamp TIMESTAMP WITH TIME ZONE NOT NULL,
		kind VARCHAR(64) NOT NULL,
		actor_user_id VARCHAR(255) NOT NULL DEFAULT '',
		organization_id VARCHAR(255) NOT NULL DEFAULT '',
		request_id VARCHAR(100) NOT NULL DEFAULT '',
		resource VARCHAR(100) NOT NULL DEFAULT '',
		action VARCHAR(100) NOT NULL DEFAULT '',
		scope VARCHAR(20) NOT NULL DEFAULT '',
		resource_organization_id VARCHAR(255) NOT NULL DEFAULT '',
		allowed BOOLEAN,
		reason_code VARCHAR(64) NOT NULL DEFAULT '',
		target VARCHAR(255) NOT NULL DEFAULT '',
		message TEXT NOT NULL DEFAULT '',
		decision JSONB,
		metadata JSONB,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_audit_records_timestamp ON audit_records(timestamp DESC);
	CREATE INDEX IF NOT EXISTS idx_audit_records_kind ON audit_records(kind);
	CREATE INDEX IF NOT EXISTS idx_audit_records_actor ON audit_records(actor_user_id);
	CREATE INDEX IF NOT EXISTS idx_audit_records_organization ON audit_records(organization_id);
	`

	_, err := l.db.Exec(query)
	return err
}

// Log inserts one record
func (l *DBLogger) Log(ctx context.Context, record *Record) error {
	var decisionJSON, metadataJSON []byte
	var err error

	if record.Decision != nil {
		decisionJSON, err = json.Marshal(record.Decision)
		if err != nil {
			return fmt.Errorf("failed to marshal decision: %w", err)
		}
	}

	if record.Metadata != nil {
		metadataJSON, err = json.Marshal(record.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
	}

	var resource, action, scope string
	if record.Request != nil {
		resource, action, scope = record.Request.Resource, record.Request.Action, string(record.Request.Scope)
	}

	var reasonCode string
	if record.Decision != nil {
		reasonCode = string(record.Decision.Code)
	}

	query := `
		INSERT INTO audit_records (
			id, timestamp, kind,
			actor_user_id, organization_id, request_id,
			resource, action, scope, resource_organization_id,
			allowed, reason_code, target, message,
			decision, metadata
		) VALUES (
			$1, $2, $3,
			$4, $5, $6,
			$7, $8, $9, $10,
			$11, $12, $13, $14,
			$15, $16
		)
	`

	_, err = l.db.ExecContext(ctx, query,
		record.ID, record.Timestamp, string(record.Kind),
		record.ActorUserID, record.OrganizationID, record.RequestID,
		resource, action, scope, record.ResourceOrganizationID,
		record.Allowed(), reasonCode, record.Target, record.Message,
		jsonArg(decisionJSON), jsonArg(metadataJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit record: %w", err)
	}

	return nil
}

// Search returns records matching filter, newest first
func (l *DBLogger) Search(ctx context.Context, filter SearchFilter) ([]*Record, error) {
	query := `
		SELECT
			id, timestamp, kind,
			actor_user_id, organization_id, request_id,
			resource, action, scope, resource_organization_id,
			target, message, decision, metadata
		FROM audit_records
		WHERE 1=1
	`

	args := []interface{}{}
	argCount := 1

	if filter.StartTime != nil {
		query += fmt.Sprintf(" AND timestamp >= $%d", argCount)
		args = append(args, *filter.StartTime)
		argCount++
	}

	if filter.EndTime != nil {
		query += fmt.Sprintf(" AND timestamp <= $%d", argCount)
		args = append(args, *filter.EndTime)
		argCount++
	}

	if filter.ActorUserID != "" {
		query += fmt.Sprintf(" AND actor_user_id = $%d", argCount)
		args = append(args, filter.ActorUserID)
		argCount++
	}

	if filter.OrganizationID != "" {
		query += fmt.Sprintf(" AND organization_id = $%d", argCount)
		args = append(args, filter.OrganizationID)
		argCount++
	}

	if len(filter.Kinds) > 0 {
		query += fmt.Sprintf(" AND kind = ANY($%d)", argCount)
		kinds := make([]string, len(filter.Kinds))
		for i, k := range filter.Kinds {
			kinds[i] = string(k)
		}
		args = append(args, pq.Array(kinds))
		argCount++
	}

	if filter.Allowed != nil {
		query += fmt.Sprintf(" AND allowed = $%d", argCount)
		args = append(args, *filter.Allowed)
		argCount++
	}

	query += " ORDER BY timestamp DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argCount)
		args = append(args, filter.Limit)
		argCount++
	}

	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argCount)
		args = append(args, filter.Offset)
	}

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search audit records: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		var (
			rec                        Record
			kind                       string
			resource, action, scope    string
			decisionJSON, metadataJSON []byte
		)

		if err := rows.Scan(
			&rec.ID, &rec.Timestamp, &kind,
			&rec.ActorUserID, &rec.OrganizationID, &rec.RequestID,
			&resource, &action, &scope, &rec.ResourceOrganizationID,
			&rec.Target, &rec.Message, &decisionJSON, &metadataJSON,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit record: %w", err)
		}

		rec.Kind = Kind(kind)
		if resource != "" {
			rec.Request = &permission.Request{Resource: resource, Action: action, Scope: permission.Scope(scope)}
		}
		if len(decisionJSON) > 0 {
			var d permission.Decision
			if err := json.Unmarshal(decisionJSON, &d); err != nil {
				return nil, fmt.Errorf("failed to unmarshal decision: %w", err)
			}
			rec.Decision = &d
		}
		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &rec.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
			}
		}

		records = append(records, &rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit records: %w", err)
	}

	return records, nil
}

// jsonArg maps an empty payload to SQL NULL
func jsonArg(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return b
}

// Close is a no-op; the database handle is owned by the caller
func (l *DBLogger) Close() error {
	return nil
}
