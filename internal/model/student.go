package model

import "time"

// Student statuses.  Blacklisted students may not log in or be booked for;
// whitelisted students are exempt from violation tracking.
const (
	StudentStatusNormal    = "normal"
	StudentStatusBlacklist = "blacklist"
	StudentStatusWhitelist = "whitelist"
)

// Student roles.  Managers may submit multi-seat batches and book further
// ahead; admin is the operator role behind the /v1/admin surface.
const (
	RoleUser    = "user"
	RoleManager = "manager"
	RoleAdmin   = "admin"
)

// Student mirrors the 'students' table.  The email address is never stored:
// it is derived from the student number and the configured mail domain.
//
// Fields:
//
//	ID             - primary key identifier.
//	StudentNo      - campus-issued student number, unique.
//	PasswordHash   - bcrypt hash; empty for fresh placeholder accounts.
//	Status         - normal, blacklist or whitelist.
//	Role           - user, manager or admin.
//	ViolationCount - accumulated no-show/abuse strikes.
//	AutoCreated    - true while the account is an admin-made placeholder
//	                 whose password is set on first login.
type Student struct {
	ID             uint64
	StudentNo      string
	PasswordHash   string
	Status         string
	Role           string
	ViolationCount int
	AutoCreated    bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Email derives the student's address from the given mail domain.
func (s Student) Email(domain string) string {
	return s.StudentNo + "@" + domain
}
