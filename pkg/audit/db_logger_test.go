package audit

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/warden/pkg/permission"
)

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return db, mock
}

func TestNewDBLogger(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		db, mock := setupMockDB(t)
		defer db.Close()

		mock.ExpectExec("CREATE TABLE IF NOT EXISTS audit_records").WillReturnResult(sqlmock.NewResult(0, 0))

		logger, err := NewDBLogger(db)
		require.NoError(t, err)
		assert.NotNil(t, logger)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("nil database", func(t *testing.T) {
		logger, err := NewDBLogger(nil)
		assert.Error(t, err)
		assert.Nil(t, logger)
		assert.Contains(t, err.Error(), "database connection is required")
	})

	t.Run("table creation error", func(t *testing.T) {
		db, mock := setupMockDB(t)
		defer db.Close()

		mock.ExpectExec("CREATE TABLE IF NOT EXISTS audit_records").WillReturnError(errors.New("table creation failed"))

		logger, err := NewDBLogger(db)
		assert.Error(t, err)
		assert.Nil(t, logger)
		assert.Contains(t, err.Error(), "failed to ensure audit_records table")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestDBLogger_Log(t *testing.T) {
	t.Run("decision record", func(t *testing.T) {
		db, mock := setupMockDB(t)
		defer db.Close()

		logger := &DBLogger{db: db}
		d := permission.Deny(permission.CodeCrossTenant, "Supervisor", testTime)
		rec := NewDecisionRecord("u-1", "org-a", permission.Request{Resource: "users", Action: "read", Scope: permission.ScopeOrganization}, "org-b", d)
		rec.ID = "rec-1"

		mock.ExpectExec("INSERT INTO audit_records").
			WithArgs(
				"rec-1", testTime, "authz.decision",
				"u-1", "org-a", "",
				"users", "read", "organization", "org-b",
				false, "cross_tenant", "", "",
				sqlmock.AnyArg(), nil,
			).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, logger.Log(context.Background(), &rec))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("admin record has no outcome", func(t *testing.T) {
		db, mock := setupMockDB(t)
		defer db.Close()

		logger := &DBLogger{db: db}
		rec := NewAdminRecord(KindUserStatusChange, "mgr", "org-a", "u-2", "user deactivated")
		rec.ID = "rec-2"
		rec.Timestamp = testTime
		rec.Metadata = map[string]interface{}{"active": false}

		mock.ExpectExec("INSERT INTO audit_records").
			WithArgs(
				"rec-2", testTime, "admin.user_status_change",
				"mgr", "org-a", "",
				"", "", "", "",
				nil, "", "u-2", "user deactivated",
				nil, []byte(`{"active":false}`),
			).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, logger.Log(context.Background(), &rec))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("insert error", func(t *testing.T) {
		db, mock := setupMockDB(t)
		defer db.Close()

		logger := &DBLogger{db: db}
		rec := NewAdminRecord(KindCatalogReload, "root", "", "", "")

		mock.ExpectExec("INSERT INTO audit_records").WillReturnError(errors.New("connection lost"))

		err := logger.Log(context.Background(), &rec)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to insert audit record")
	})
}

func TestDBLogger_Search(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()

	logger := &DBLogger{db: db}
	allowed := false

	columns := []string{
		"id", "timestamp", "kind",
		"actor_user_id", "organization_id", "request_id",
		"resource", "action", "scope", "resource_organization_id",
		"target", "message", "decision", "metadata",
	}
	rows := sqlmock.NewRows(columns).
		AddRow("rec-1", testTime, "authz.decision",
			"u-1", "org-a", "req-9",
			"users", "read", "organization", "org-b",
			"", "", []byte(`{"allowed":false,"role_name":"Supervisor","reason":"cross-tenant access denied","code":"cross_tenant","evaluated_at":"2024-03-01T12:00:00Z"}`), nil).
		AddRow("rec-2", testTime, "admin.org_create",
			"root", "org-a", "",
			"", "", "", "",
			"org-a", "organization created", nil, []byte(`{"plan":"pro"}`))

	mock.ExpectQuery(`SELECT (.+) FROM audit_records WHERE 1=1 AND organization_id = \$1 AND kind = ANY\(\$2\) AND allowed = \$3 ORDER BY timestamp DESC LIMIT \$4`).
		WithArgs("org-a", sqlmock.AnyArg(), false, 50).
		WillReturnRows(rows)

	records, err := logger.Search(context.Background(), SearchFilter{
		OrganizationID: "org-a",
		Kinds:          []Kind{KindDecision, KindOrgCreate},
		Allowed:        &allowed,
		Limit:          50,
	})
	require.NoError(t, err)
	require.Len(t, records, 2)

	require.NotNil(t, records[0].Request)
	assert.Equal(t, permission.ScopeOrganization, records[0].Request.Scope)
	require.NotNil(t, records[0].Decision)
	assert.Equal(t, permission.CodeCrossTenant, records[0].Decision.Code)

	assert.Nil(t, records[1].Request)
	assert.Nil(t, records[1].Decision)
	assert.Equal(t, "pro", records[1].Metadata["plan"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDBLogger_Close(t *testing.T) {
	logger := &DBLogger{}
	assert.NoError(t, logger.Close())
}
