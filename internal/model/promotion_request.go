package model

import "time"

// PromotionRequest tracks a student's application to become a manager.
// A student may hold at most one pending request, and a rejected request
// permanently blocks re-application.
//
// Fields:
//
//	ID         - primary key identifier.
//	StudentID  - applicant.
//	Reason     - free-text motivation shown to the administrator.
//	Status     - pending, approved or rejected.
//	ReviewedAt - decision timestamp (nullable).
//	Reviewer   - identifier of whoever clicked the decision link.
type PromotionRequest struct {
	ID         uint64
	StudentID  uint64
	Reason     string
	Status     string
	CreatedAt  time.Time
	ReviewedAt *time.Time
	Reviewer   string
}
