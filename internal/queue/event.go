// Package queue defines the mail messages exchanged over the broker and
// the publisher/consumer pair moving them.  Every notification the system
// sends goes through the outbound.mail queue so a slow or flapping SMTP
// relay never blocks an HTTP request.
package queue

// Mail kinds, carried so the consumer can log delivery per category.
const (
	MailApprovalRequest = "approval_request"
	MailDecision        = "decision"
	MailCancellation    = "cancellation"
	MailAccessCode      = "access_code"
	MailPromotion       = "promotion"
	MailPasswordReset   = "password_reset"
)

// MailMessage is one email waiting for delivery.
type MailMessage struct {
	Kind     string   `json:"kind"`
	To       []string `json:"to"`
	Subject  string   `json:"subject"`
	Body     string   `json:"body"`
	QueuedAt string   `json:"queued_at"`
}
