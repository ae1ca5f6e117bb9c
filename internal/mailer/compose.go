package mailer

import (
	"fmt"
	"strings"
	"time"

	"github.com/campushub/classroom-reservation/internal/model"
	"github.com/campushub/classroom-reservation/internal/queue"
)

// Session describes the classroom sitting a mail is about.
type Session struct {
	Classroom string
	Date      time.Time
	SlotLabel string
}

func (s Session) line() string {
	return fmt.Sprintf("%s, %s %s", s.Classroom, s.Date.Format("2006-01-02"), s.SlotLabel)
}

func seatLines(seats []model.Reservation) string {
	var b strings.Builder
	for _, r := range seats {
		fmt.Fprintf(&b, "  - %s\n", r.SeatLabel())
	}
	return b.String()
}

// ApprovalRequest asks the administrator to decide a freshly submitted
// batch via the signed approve/reject links.
func ApprovalRequest(adminEmail, studentNo string, sess Session, seats []model.Reservation, approveURL, rejectURL string) queue.MailMessage {
	body := fmt.Sprintf(`A new seat reservation is waiting for review.

Student:  %s
Session:  %s
Seats:
%s
Approve:  %s
Reject:   %s

The links are valid for 24 hours. Undecided requests expire on their own.
`, studentNo, sess.line(), seatLines(seats), approveURL, rejectURL)

	return queue.MailMessage{
		Kind:    queue.MailApprovalRequest,
		To:      []string{adminEmail},
		Subject: fmt.Sprintf("Reservation request from %s (%s)", studentNo, sess.line()),
		Body:    body,
	}
}

// ReservationDecision tells the student how their batch was decided.
func ReservationDecision(to string, sess Session, approved, rejected []model.Reservation) queue.MailMessage {
	var b strings.Builder
	fmt.Fprintf(&b, "Your reservation for %s has been reviewed.\n\n", sess.line())
	if len(approved) > 0 {
		fmt.Fprintf(&b, "Approved seats:\n%s", seatLines(approved))
	}
	if len(rejected) > 0 {
		fmt.Fprintf(&b, "Not granted:\n%s", seatLines(rejected))
	}
	b.WriteString("\nThe door access code will be mailed shortly before the session starts.\n")

	return queue.MailMessage{
		Kind:    queue.MailDecision,
		To:      []string{to},
		Subject: fmt.Sprintf("Reservation decision for %s", sess.line()),
		Body:    b.String(),
	}
}

// CancellationNotice tells the student an administrator cancelled seats.
func CancellationNotice(to string, sess Session, seats []model.Reservation) queue.MailMessage {
	body := fmt.Sprintf(`The following seats of your reservation for %s were cancelled by an administrator:

%s
If you still need a seat, please book again.
`, sess.line(), seatLines(seats))

	return queue.MailMessage{
		Kind:    queue.MailCancellation,
		To:      []string{to},
		Subject: fmt.Sprintf("Reservation cancelled for %s", sess.line()),
		Body:    body,
	}
}

// AccessCodeNotice mails the door code to an approved holder.
func AccessCodeNotice(to string, sess Session, code string, seats []model.Reservation) queue.MailMessage {
	body := fmt.Sprintf(`Your session %s starts soon.

Door access code: %s

Your seats:
%s`, sess.line(), code, seatLines(seats))

	return queue.MailMessage{
		Kind:    queue.MailAccessCode,
		To:      []string{to},
		Subject: fmt.Sprintf("Access code for %s", sess.line()),
		Body:    body,
	}
}

// PromotionRequestMail asks the administrator to decide a role upgrade.
func PromotionRequestMail(adminEmail, studentNo, reason, approveURL, rejectURL string) queue.MailMessage {
	body := fmt.Sprintf(`Student %s asks to be upgraded to manager.

Reason given:
  %s

Approve:  %s
Reject:   %s
`, studentNo, reason, approveURL, rejectURL)

	return queue.MailMessage{
		Kind:    queue.MailPromotion,
		To:      []string{adminEmail},
		Subject: fmt.Sprintf("Manager upgrade request from %s", studentNo),
		Body:    body,
	}
}

// PromotionDecision tells the student the outcome of their upgrade request.
func PromotionDecision(to string, approved bool) queue.MailMessage {
	subject := "Your manager upgrade was declined"
	body := "Your request to become a manager was declined. You may not apply again.\n"
	if approved {
		subject = "You are now a manager"
		body = "Your request was approved. You can now book several seats per session and further ahead.\n"
	}
	return queue.MailMessage{
		Kind:    queue.MailPromotion,
		To:      []string{to},
		Subject: subject,
		Body:    body,
	}
}

// PasswordReset mails the one-time confirmation link for a reset request.
func PasswordReset(to, confirmURL string) queue.MailMessage {
	body := fmt.Sprintf(`A password reset was requested for your account.

Confirm within 10 minutes to apply the new password:
  %s

If you did not request this, ignore this mail; nothing changes until the
link is opened.
`, confirmURL)

	return queue.MailMessage{
		Kind:    queue.MailPasswordReset,
		To:      []string{to},
		Subject: "Password reset confirmation",
		Body:    body,
	}
}
