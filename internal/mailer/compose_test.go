package mailer

import (
	"strings"
	"testing"
	"time"

	"github.com/campushub/classroom-reservation/internal/model"
	"github.com/campushub/classroom-reservation/internal/queue"
)

var testSession = Session{
	Classroom: "D201",
	Date:      time.Date(2026, 9, 3, 0, 0, 0, 0, time.Local),
	SlotLabel: "08:00-10:00",
}

func TestApprovalRequestCarriesLinksAndSeats(t *testing.T) {
	seats := []model.Reservation{
		{SeatRow: 1, SeatCol: 4},
		{SeatRow: 1, SeatCol: 5},
	}
	msg := ApprovalRequest("admin@hust.edu.cn", "U202301", testSession, seats,
		"https://site/a", "https://site/r")

	if msg.Kind != queue.MailApprovalRequest {
		t.Errorf("kind = %q", msg.Kind)
	}
	if len(msg.To) != 1 || msg.To[0] != "admin@hust.edu.cn" {
		t.Errorf("to = %v", msg.To)
	}
	for _, want := range []string{"U202301", "D201", "2026-09-03", "08:00-10:00",
		"row 2 seat 5", "row 2 seat 6", "https://site/a", "https://site/r"} {
		if !strings.Contains(msg.Body, want) {
			t.Errorf("body missing %q", want)
		}
	}
}

func TestReservationDecisionSections(t *testing.T) {
	msg := ReservationDecision("u@hust.edu.cn", testSession,
		[]model.Reservation{{SeatRow: 1, SeatCol: 1}},
		[]model.Reservation{{SeatRow: 1, SeatCol: 2}})
	if !strings.Contains(msg.Body, "Approved seats:") || !strings.Contains(msg.Body, "Not granted:") {
		t.Errorf("body missing decision sections:\n%s", msg.Body)
	}

	msg = ReservationDecision("u@hust.edu.cn", testSession,
		[]model.Reservation{{SeatRow: 1, SeatCol: 1}}, nil)
	if strings.Contains(msg.Body, "Not granted:") {
		t.Error("fully approved decision should not list rejections")
	}
}

func TestAccessCodeNoticeContainsCode(t *testing.T) {
	msg := AccessCodeNotice("u@hust.edu.cn", testSession, "4921",
		[]model.Reservation{{SeatRow: 3, SeatCol: 1}})
	if !strings.Contains(msg.Body, "4921") {
		t.Error("body missing the access code")
	}
	if msg.Kind != queue.MailAccessCode {
		t.Errorf("kind = %q", msg.Kind)
	}
}

func TestPromotionDecisionSubjects(t *testing.T) {
	if msg := PromotionDecision("u@x", true); !strings.Contains(msg.Subject, "now a manager") {
		t.Errorf("approved subject = %q", msg.Subject)
	}
	if msg := PromotionDecision("u@x", false); !strings.Contains(msg.Subject, "declined") {
		t.Errorf("declined subject = %q", msg.Subject)
	}
}
