// Package access resolves the current user's dashboard capability from the
// record store's site-group membership.
package access

import (
	"context"
	"log/slog"

	"obsdash/internal/application/configload"
	"obsdash/internal/domain/report"
)

// MembershipChecker probes site-group membership. Both probes return nil iff
// the user is a member.
type MembershipChecker interface {
	GroupMember(ctx context.Context, groupName string, userID int) error
	OwnerGroupMember(ctx context.Context, userID int) error
}

// Resolve determines the user's capability. When the configuration names an
// admin group, membership of that group is probed; otherwise the site's
// default owner group is used.
//
// Fail-closed: any probe failure (unknown group, network error, not a
// member) resolves to CapabilityViewer. Ambiguous membership must never
// grant edit rights, so this function cannot return an error.
// PRE: membership is non-nil; userID identifies the session user
// POST: Always returns a capability, never an error
func Resolve(ctx context.Context, cfg configload.Configuration, userID int, membership MembershipChecker) report.Capability {
	var err error
	if cfg.AdminGroupName != "" {
		err = membership.GroupMember(ctx, cfg.AdminGroupName, userID)
	} else {
		err = membership.OwnerGroupMember(ctx, userID)
	}
	if err != nil {
		slog.Info("access_event", "event", "admin_probe_negative", "user_id", userID,
			"group", groupLabel(cfg), "error", err)
		return report.CapabilityViewer
	}
	slog.Info("access_event", "event", "admin_probe_positive", "user_id", userID,
		"group", groupLabel(cfg))
	return report.CapabilityEditor
}

func groupLabel(cfg configload.Configuration) string {
	if cfg.AdminGroupName != "" {
		return cfg.AdminGroupName
	}
	return "(default owners)"
}
