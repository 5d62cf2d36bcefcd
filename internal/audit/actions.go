// Sentinel - Security Telemetry Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package audit

import "context"

// Authentication actions accepted by LogAuth.
const (
	AuthLogin          = "login"
	AuthLogout         = "logout"
	AuthTokenRefresh   = "token_refresh"
	AuthPasswordChange = "password_change"
)

// ResourceOp is a CRUD operation on a resource.
type ResourceOp string

// Resource operations.
const (
	OpCreate ResourceOp = "create"
	OpRead   ResourceOp = "read"
	OpUpdate ResourceOp = "update"
	OpDelete ResourceOp = "delete"
)

// Severity returns the severity recorded for the operation.
func (op ResourceOp) Severity() Severity {
	switch op {
	case OpDelete:
		return SeverityHigh
	case OpUpdate:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// Privacy actions accepted by LogPrivacyAction.
const (
	PrivacyDataExport    = "data_export"
	PrivacyDataDeletion  = "data_deletion"
	PrivacyConsentUpdate = "consent_update"
)

// LogAuth records an authentication outcome as user_<action> on the
// authentication target. Password changes are medium, everything else low.
func (l *Logger) LogAuth(ctx context.Context, src Source, action string) {
	severity := SeverityLow
	if action == AuthPasswordChange {
		severity = SeverityMedium
	}
	l.LogUserAction(ctx, src, Action{
		Name:       "user_" + action,
		TargetType: "authentication",
		Severity:   severity,
	})
}

// LogResourceAccess records a CRUD operation as <resource>_<op>.
func (l *Logger) LogResourceAccess(ctx context.Context, src Source, resource string, op ResourceOp, resourceID string, changes map[string]interface{}) {
	l.LogUserAction(ctx, src, Action{
		Name:       resource + "_" + string(op),
		TargetType: resource,
		TargetID:   resourceID,
		Changes:    changes,
		Severity:   op.Severity(),
	})
}

// LogAdminAction records an administrative action. Always high severity.
func (l *Logger) LogAdminAction(ctx context.Context, src Source, action, targetType, targetID string, changes map[string]interface{}) {
	l.LogUserAction(ctx, src, Action{
		Name:       action,
		TargetType: targetType,
		TargetID:   targetID,
		Changes:    changes,
		Severity:   SeverityHigh,
	})
}

// LogFinancialAction records a financial transaction against an order.
// The amount and order reference are merged into the details. Always high.
func (l *Logger) LogFinancialAction(ctx context.Context, src Source, action, orderID string, amount float64, details map[string]interface{}) {
	changes := make(map[string]interface{}, len(details)+2)
	for k, v := range details {
		changes[k] = v
	}
	changes["amount"] = amount
	changes["order_id"] = orderID

	l.LogUserAction(ctx, src, Action{
		Name:       action,
		TargetType: "financial",
		TargetID:   orderID,
		Changes:    changes,
		Severity:   SeverityHigh,
	})
}

// LogPrivacyAction records a data export, deletion or consent update.
// Always high.
func (l *Logger) LogPrivacyAction(ctx context.Context, src Source, action string, details map[string]interface{}) {
	l.LogUserAction(ctx, src, Action{
		Name:       action,
		TargetType: "privacy",
		Changes:    details,
		Severity:   SeverityHigh,
	})
}

// LogFailedLogin records a failed_login security event. userID may be
// empty when the attempted account is unknown.
func (l *Logger) LogFailedLogin(ctx context.Context, userID string, src Source, reason string) {
	src.ActorID = userID
	details := map[string]interface{}{}
	if reason != "" {
		details["reason"] = reason
	}
	l.LogSecurityEvent(ctx, EventFailedLogin, src, details)
}

// LogAccountLocked records an account_locked security event.
func (l *Logger) LogAccountLocked(ctx context.Context, userID string, src Source, failedAttempts int) {
	src.ActorID = userID
	l.LogSecurityEvent(ctx, EventAccountLocked, src, map[string]interface{}{
		"failed_attempts": failedAttempts,
	})
}
