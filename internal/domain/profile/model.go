package profile

import "time"

// Roles assignable to a CareLink user. The identity provider owns
// authentication; the role here drives directory filtering and routing.
const (
	RoleDoctor  = "doctor"
	RolePatient = "patient"
	RoleAdmin   = "admin"
)

// EventPresence is published when a user's online flag flips.
const EventPresence = "presence"

// PresenceTopic is the broadcast topic for online/offline changes.
const PresenceTopic = "presence"

// User is a CareLink profile. ID is the identity provider's stable subject,
// so chat participants and profiles join on the same identifier.
type User struct {
	ID          string     `db:"id" json:"id"`
	DisplayName string     `db:"display_name" json:"display_name"`
	AvatarURL   string     `db:"avatar_url" json:"avatar_url,omitempty"`
	Role        string     `db:"role" json:"role"`
	Online      bool       `db:"online" json:"online"`
	LastSeenAt  *time.Time `db:"last_seen_at" json:"last_seen_at,omitempty"`
}

// ValidRole reports whether role is one of the assignable roles.
func ValidRole(role string) bool {
	switch role {
	case RoleDoctor, RolePatient, RoleAdmin:
		return true
	}
	return false
}

// PresencePayload is the event payload for an online/offline flip.
type PresencePayload struct {
	UserID     string     `json:"user_id"`
	Online     bool       `json:"online"`
	LastSeenAt *time.Time `json:"last_seen_at,omitempty"`
}
