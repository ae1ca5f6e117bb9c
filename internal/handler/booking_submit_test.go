package handler

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/campushub/classroom-reservation/internal/config"
	"github.com/campushub/classroom-reservation/internal/model"
	"github.com/campushub/classroom-reservation/internal/queue"
	"github.com/campushub/classroom-reservation/internal/utils"
)

func submitFixtures(t *testing.T) (*BookingHandler, *fakeReservations, *fakeMail) {
	t.Helper()
	res := &fakeReservations{db: newTestDB(t)}
	mail := &fakeMail{}
	h := &BookingHandler{
		Cfg: config.Config{
			AdminEmail:          "office@example.edu",
			EmailDomain:         "stu.example.edu",
			BookingWindowMin:    30,
			MaxDaysAhead:        3,
			MaxDaysAheadManager: 7,
			MaxPendingBatches:   3,
		},
		Slots: testSlots(t),
		Students: &fakeStudents{byID: map[uint64]model.Student{
			7: {ID: 7, StudentNo: "U2023001", Role: model.RoleUser, Status: model.StudentStatusNormal},
		}},
		Classrooms: &fakeClassrooms{rooms: map[uint64]model.Classroom{
			3: {ID: 3, Name: "D201", Layout: "1101\n1101", IsActive: true},
		}},
		Reservations: res,
		Links:        NewLinkBuilder(utils.NewSigner("test-secret"), "https://rooms.example.edu"),
		Mail:         mail,
		Log:          zap.NewNop(),
	}
	return h, res, mail
}

func TestSubmitCreatesPendingBatch(t *testing.T) {
	h, res, mail := submitFixtures(t)

	date := time.Now().AddDate(0, 0, 1).Format("2006-01-02")
	body := `{"classroom_id":3,"date":"` + date + `","time_slot":1,"seats":[{"row":0,"col":1}]}`
	c, rec := newJSONContext(t, http.MethodPost, "/v1/reservations", body, 7, model.RoleUser)

	if err := h.Submit(c); err != nil {
		t.Fatalf("Submit returned %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}

	if len(res.created) != 1 {
		t.Fatalf("inserted %d rows, want 1", len(res.created))
	}
	got := res.created[0]
	if got.Status != model.StatusPending || got.StudentID != 7 || got.ClassroomID != 3 ||
		got.SeatRow != 0 || got.SeatCol != 1 || got.TimeSlot != 1 {
		t.Errorf("inserted row = %+v", got)
	}
	if got.BatchID == "" {
		t.Error("inserted row has no batch id")
	}

	var resp struct {
		BatchID string   `json:"batch_id"`
		Status  string   `json:"status"`
		Seats   []string `json:"seats"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.BatchID != got.BatchID || resp.Status != model.StatusPending || len(resp.Seats) != 1 {
		t.Errorf("response = %+v", resp)
	}

	if len(mail.sent) != 1 {
		t.Fatalf("published %d mails, want 1", len(mail.sent))
	}
	msg := mail.sent[0]
	if msg.Kind != queue.MailApprovalRequest {
		t.Errorf("mail kind = %q, want %q", msg.Kind, queue.MailApprovalRequest)
	}
	if len(msg.To) != 1 || msg.To[0] != "office@example.edu" {
		t.Errorf("mail to = %v, want the admin inbox", msg.To)
	}
}

func TestSubmitRejectsHardLockedSeat(t *testing.T) {
	h, res, mail := submitFixtures(t)
	res.approvedExists = func(classroomID uint64, row, col int) (bool, error) { return true, nil }

	date := time.Now().AddDate(0, 0, 1).Format("2006-01-02")
	body := `{"classroom_id":3,"date":"` + date + `","time_slot":1,"seats":[{"row":0,"col":1}]}`
	c, rec := newJSONContext(t, http.MethodPost, "/v1/reservations", body, 7, model.RoleUser)

	if err := h.Submit(c); err != nil {
		t.Fatalf("Submit returned %v", err)
	}
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409: %s", rec.Code, rec.Body.String())
	}
	if len(mail.sent) != 0 {
		t.Errorf("published %d mails for a refused batch", len(mail.sent))
	}
}

func TestSubmitBlacklistedAccount(t *testing.T) {
	h, _, _ := submitFixtures(t)
	h.Students = &fakeStudents{byID: map[uint64]model.Student{
		7: {ID: 7, StudentNo: "U2023001", Role: model.RoleUser, Status: model.StudentStatusBlacklist},
	}}

	date := time.Now().AddDate(0, 0, 1).Format("2006-01-02")
	body := `{"classroom_id":3,"date":"` + date + `","time_slot":1,"seats":[{"row":0,"col":1}]}`
	c, rec := newJSONContext(t, http.MethodPost, "/v1/reservations", body, 7, model.RoleUser)

	if err := h.Submit(c); err != nil {
		t.Fatalf("Submit returned %v", err)
	}
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}
