package profile

import (
	"testing"
	"time"
)

// fakeRow assigns a fixed column tuple the way a pgx row would, including
// nil for SQL NULL in pointer destinations.
type fakeRow struct {
	id          string
	displayName string
	avatarURL   *string
	role        string
	online      bool
	lastSeenAt  *time.Time
}

func (r fakeRow) Scan(dest ...any) error {
	*(dest[0].(*string)) = r.id
	*(dest[1].(*string)) = r.displayName
	*(dest[2].(**string)) = r.avatarURL
	*(dest[3].(*string)) = r.role
	*(dest[4].(*bool)) = r.online
	*(dest[5].(**time.Time)) = r.lastSeenAt
	return nil
}

func TestScanUser_NullAvatarAndLastSeen(t *testing.T) {
	u, err := scanUser(fakeRow{
		id:          "alice",
		displayName: "Alice Doe",
		role:        RoleDoctor,
		online:      true,
	})
	if err != nil {
		t.Fatalf("scanUser: %v", err)
	}

	if u.AvatarURL != "" {
		t.Errorf("expected empty avatar for NULL column, got %q", u.AvatarURL)
	}
	if u.LastSeenAt != nil {
		t.Errorf("expected nil last_seen_at, got %v", u.LastSeenAt)
	}
	if u.ID != "alice" || u.DisplayName != "Alice Doe" || u.Role != RoleDoctor || !u.Online {
		t.Errorf("unexpected user fields: %+v", u)
	}
}

func TestScanUser_PopulatedColumns(t *testing.T) {
	avatar := "https://cdn.example.com/alice.png"
	seen := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	u, err := scanUser(fakeRow{
		id:          "alice",
		displayName: "Alice Doe",
		avatarURL:   &avatar,
		role:        RoleDoctor,
		online:      false,
		lastSeenAt:  &seen,
	})
	if err != nil {
		t.Fatalf("scanUser: %v", err)
	}

	if u.AvatarURL != avatar {
		t.Errorf("expected avatar %q, got %q", avatar, u.AvatarURL)
	}
	if u.LastSeenAt == nil || !u.LastSeenAt.Equal(seen) {
		t.Errorf("expected last_seen_at %v, got %v", seen, u.LastSeenAt)
	}
}
