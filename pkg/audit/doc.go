// Package audit records authorization decisions and administrative mutations.
//
// # Overview
//
// Every evaluation produces an authz.decision record carrying the request, the
// resource organization and the full decision with its specific internal reason.
// Administrative actions (organization and user creation or status change, catalog
// reload) produce admin.* records. Records are write-once; sinks only append.
//
// # Recorder
//
// The Recorder sits between the evaluator and the sinks. Record is a bounded,
// non-blocking enqueue: a full queue or a closed recorder drops the record and
// increments a counter, so an audit outage never changes a decision and never adds
// latency beyond the enqueue.
//
//	recorder := audit.NewRecorder(sink, audit.RecorderConfig{QueueSize: 4096, Metrics: metrics})
//	defer recorder.Close(ctx)
//	recorder.RecordDecision(ctx, user.ID, user.OrgID(), req, resourceOrgID, decision)
//
// # Sinks
//
//	FileLogger   - JSON lines in audit.log with size rotation
//	DBLogger     - PostgreSQL audit_records table, JSONB decision payloads, Search
//	MultiLogger  - fan-out to several sinks
//	MemoryLogger - in-process, for development and tests
//	NoOpLogger   - discards everything
//
// Search audit records:
//
//	records, err := dbLogger.Search(ctx, audit.SearchFilter{
//		OrganizationID: "org-a",
//		Kinds:          []audit.Kind{audit.KindDecision},
//		Limit:          100,
//	})
//
// # Related Packages
//
//   - pkg/rbac: Emits decision records
//   - pkg/admin: Emits admin records
package audit
