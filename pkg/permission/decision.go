package permission

import (
	"time"
)

// ReasonCode classifies why a decision was reached
type ReasonCode string

const (
	CodeGranted               ReasonCode = "granted"
	CodeInvalidRequest        ReasonCode = "invalid_request"
	CodeUserInactive          ReasonCode = "user_inactive"
	CodeUnknownUser           ReasonCode = "unknown_user"
	CodeOrganizationSuspended ReasonCode = "organization_suspended"
	CodeUnknownOrganization   ReasonCode = "unknown_organization"
	CodeUnknownRole           ReasonCode = "unknown_role"
	CodeCrossTenant           ReasonCode = "cross_tenant"
	CodeNoMatchingPermission  ReasonCode = "no_matching_permission"
)

// PublicDenyReason is the only denial reason exposed outside the engine
const PublicDenyReason = "access denied"

var denyReasons = map[ReasonCode]string{
	CodeInvalidRequest:        "invalid request shape",
	CodeUserInactive:          "user inactive",
	CodeUnknownUser:           "unknown user",
	CodeOrganizationSuspended: "organization suspended",
	CodeUnknownOrganization:   "unknown organization",
	CodeUnknownRole:           "unknown role",
	CodeCrossTenant:           "cross-tenant access denied",
}

// Decision is the outcome of one evaluation
type Decision struct {
	Allowed           bool        `json:"allowed"`
	MatchedPermission *Permission `json:"matched_permission,omitempty"`
	RoleName          string      `json:"role_name"`
	Reason            string      `json:"reason"`
	Code              ReasonCode  `json:"code"`
	EvaluatedAt       time.Time   `json:"evaluated_at"`
	FromCache         bool        `json:"from_cache,omitempty"`
}

// PublicDecision is the externally visible shape of a decision
type PublicDecision struct {
	Allowed  bool   `json:"allowed"`
	RoleName string `json:"role_name"`
	Reason   string `json:"reason"`
}

// Allow builds an ALLOW decision granted by p
func Allow(p Permission, roleName string, at time.Time) Decision {
	matched := p
	return Decision{
		Allowed:           true,
		MatchedPermission: &matched,
		RoleName:          roleName,
		Reason:            "granted by " + p.String(),
		Code:              CodeGranted,
		EvaluatedAt:       at,
	}
}

// Deny builds a DENY decision for the given code
func Deny(code ReasonCode, roleName string, at time.Time) Decision {
	reason, ok := denyReasons[code]
	if !ok {
		reason = "no matching permission for role " + roleName
		code = CodeNoMatchingPermission
	}
	return Decision{
		Allowed:     false,
		RoleName:    roleName,
		Reason:      reason,
		Code:        code,
		EvaluatedAt: at,
	}
}

// Public strips internal denial detail so that responses never reveal
// whether another organization's resource exists.
func (d Decision) Public() PublicDecision {
	if d.Allowed {
		return PublicDecision{Allowed: true, RoleName: d.RoleName, Reason: d.Reason}
	}
	return PublicDecision{Allowed: false, RoleName: d.RoleName, Reason: PublicDenyReason}
}
