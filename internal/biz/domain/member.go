package domain

// Discord permission bits relevant to moderation targeting.
const (
	PermissionAdministrator   int64 = 1 << 3
	PermissionModerateMembers int64 = 1 << 40
)

// Member represents a resolved guild member.
type Member struct {
	ID          string
	Username    string
	DisplayName string
	IsBot       bool
	Permissions int64 // resolved permission bits from the member's roles
}

// IsAdmin reports whether the member holds the administrator permission.
func (m *Member) IsAdmin() bool {
	return m.Permissions&PermissionAdministrator != 0
}

// CanModerate reports whether the member can moderate other members.
func (m *Member) CanModerate() bool {
	return m.Permissions&PermissionModerateMembers != 0
}

// IsProtected reports whether the member must never be targeted by
// automated moderation: bots, administrators, and moderators are off limits.
func (m *Member) IsProtected() bool {
	return m.IsBot || m.IsAdmin() || m.CanModerate()
}
