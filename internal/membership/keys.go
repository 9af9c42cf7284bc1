package membership

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/arloliu/streamgroup/types"
)

// NewMemberID returns a unique member ID for a thread of a client.
//
// Format: "{clientID}-StreamThread-{threadID}-consumer-{uuid}".
func NewMemberID(clientID string, threadID int) string {
	return fmt.Sprintf("%s-StreamThread-%d-consumer-%s", SanitizeToken(clientID), threadID, uuid.NewString())
}

// InstanceID returns the static group instance ID of a thread, or "" when the
// client uses dynamic membership.
func InstanceID(groupInstanceID string, threadID int) string {
	if groupInstanceID == "" {
		return ""
	}

	return fmt.Sprintf("%s-%d", groupInstanceID, threadID)
}

// MemberKey returns the KV key of a member record.
func MemberKey(rec types.MemberRecord) string {
	member := rec.MemberID
	if rec.GroupInstanceID != "" {
		member = rec.GroupInstanceID
	}

	return SanitizeToken(rec.GroupID) + "." + SanitizeToken(member)
}

// GroupFilter returns the KV key filter matching every member of a group.
func GroupFilter(group string) string {
	return SanitizeToken(group) + ".*"
}

// SanitizeToken maps s onto the characters allowed inside a single KV key token.
//
// NATS KV keys accept [-/_=.a-zA-Z0-9]; dots separate tokens and slashes are
// avoided, so everything outside [-_=a-zA-Z0-9] becomes an underscore.
func SanitizeToken(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '=':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}

	return b.String()
}
