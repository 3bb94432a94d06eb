package audit

import (
	"encoding/json"
	"time"

	"github.com/platinummonkey/warden/pkg/permission"
)

// Kind represents the category of audit record
type Kind string

const (
	// Authorization decisions
	KindDecision Kind = "authz.decision"

	// Administrative mutations
	KindOrgCreate        Kind = "admin.org_create"
	KindOrgStatusChange  Kind = "admin.org_status_change"
	KindUserCreate       Kind = "admin.user_create"
	KindUserStatusChange Kind = "admin.user_status_change"
	KindCatalogReload    Kind = "admin.catalog_reload"
)

// Record is a single write-once audit entry
type Record struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	Timestamp time.Time `json:"timestamp"`

	// Actor information
	ActorUserID    string `json:"actor_user_id,omitempty"`
	OrganizationID string `json:"organization_id,omitempty"`
	RequestID      string `json:"request_id,omitempty"`

	// Authorization decisions
	Request                *permission.Request  `json:"request,omitempty"`
	ResourceOrganizationID string               `json:"resource_organization_id,omitempty"`
	Decision               *permission.Decision `json:"decision,omitempty"`

	// Administrative mutations
	Target  string `json:"target,omitempty"`
	Message string `json:"message,omitempty"`

	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Allowed reports the outcome of a decision record. Admin records return nil.
func (r *Record) Allowed() *bool {
	if r.Decision == nil {
		return nil
	}
	allowed := r.Decision.Allowed
	return &allowed
}

// ToJSON converts the record to JSON
func (r *Record) ToJSON() ([]byte, error) {
	return json.Marshal(r)
}

// FromJSON parses a record from JSON
func FromJSON(data []byte) (*Record, error) {
	var rec Record
	err := json.Unmarshal(data, &rec)
	return &rec, err
}

// NewDecisionRecord builds the record for one evaluation. The decision keeps
// its specific internal reason.
func NewDecisionRecord(actorUserID, orgID string, req permission.Request, resourceOrgID string, decision permission.Decision) Record {
	r := req
	d := decision
	return Record{
		Kind:                   KindDecision,
		Timestamp:              decision.EvaluatedAt,
		ActorUserID:            actorUserID,
		OrganizationID:         orgID,
		Request:                &r,
		ResourceOrganizationID: resourceOrgID,
		Decision:               &d,
	}
}

// NewAdminRecord builds the record for an administrative mutation
func NewAdminRecord(kind Kind, actorUserID, orgID, target, message string) Record {
	return Record{
		Kind:           kind,
		ActorUserID:    actorUserID,
		OrganizationID: orgID,
		Target:         target,
		Message:        message,
	}
}

// SearchFilter represents filters for searching audit records
type SearchFilter struct {
	// Time range
	StartTime *time.Time
	EndTime   *time.Time

	// Actor filters
	ActorUserID    string
	OrganizationID string

	// Record filters
	Kinds   []Kind
	Allowed *bool

	// Pagination
	Limit  int
	Offset int
}
