// internal/app/features/auditlog/types.go
package auditlog

import (
	"time"

	"github.com/dalemusser/collabhub/internal/app/store/audit"
)

// eventView is one row of the audit trail with user ids resolved to names.
// A user that no longer exists is shown by id.
type eventView struct {
	ID         string            `json:"id"`
	Timestamp  time.Time         `json:"timestamp"`
	Category   string            `json:"category"`
	EventType  string            `json:"event_type"`
	ActorID    string            `json:"actor_id,omitempty"`
	ActorName  string            `json:"actor_name,omitempty"`
	TargetID   string            `json:"target_id,omitempty"`
	TargetName string            `json:"target_name,omitempty"`
	Success    bool              `json:"success"`
	Reason     string            `json:"failure_reason,omitempty"`
	RequestID  string            `json:"request_id,omitempty"`
	Details    map[string]string `json:"details,omitempty"`
}

// projectEventTypes lists the event types that can appear in a project's
// trail, by category.
var projectEventTypes = map[string][]string{
	audit.CategoryMembership: {
		audit.EventProjectCreated,
		audit.EventProjectDeleted,
		audit.EventRoleAssigned,
		audit.EventMemberRemoved,
		audit.EventMemberLeft,
		audit.EventMemberJoined,
		audit.EventInviteIssued,
		audit.EventInvitesDisabled,
		audit.EventSettingsUpdated,
		audit.EventMembershipDenied,
	},
	audit.CategoryProject: {
		audit.EventTaskCreated,
		audit.EventTaskUpdated,
		audit.EventTaskDeleted,
	},
}

func validCategory(c string) bool {
	_, ok := projectEventTypes[c]
	return ok
}

func validEventType(category, eventType string) bool {
	for c, types := range projectEventTypes {
		if category != "" && c != category {
			continue
		}
		for _, t := range types {
			if t == eventType {
				return true
			}
		}
	}
	return false
}
