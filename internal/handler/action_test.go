package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/campushub/classroom-reservation/internal/config"
	"github.com/campushub/classroom-reservation/internal/model"
	"github.com/campushub/classroom-reservation/internal/queue"
	"github.com/campushub/classroom-reservation/internal/utils"
)

func actionFixtures(t *testing.T) (*ActionHandler, *fakeReservations, *fakeMail) {
	t.Helper()
	res := &fakeReservations{db: newTestDB(t)}
	mail := &fakeMail{}
	h := &ActionHandler{
		Cfg: config.Config{
			TimeoutHours:     24,
			BookingWindowMin: 30,
			EmailDomain:      "stu.example.edu",
		},
		Signer: utils.NewSigner("test-secret"),
		Slots:  testSlots(t),
		Students: &fakeStudents{byID: map[uint64]model.Student{
			7: {ID: 7, StudentNo: "U2023001", Role: model.RoleUser, Status: model.StudentStatusNormal},
		}},
		Classrooms: &fakeClassrooms{rooms: map[uint64]model.Classroom{
			3: {ID: 3, Name: "D201", Layout: "1101\n1101", IsActive: true},
		}},
		Reservations: res,
		Mail:         mail,
		Log:          zap.NewNop(),
	}
	return h, res, mail
}

// callAction drives Handle the way the route does, with the signed token
// as the path parameter.
func callAction(t *testing.T, h *ActionHandler, ids, verb string) *httptest.ResponseRecorder {
	t.Helper()
	token := h.Signer.Sign(utils.ActionPayload(kindReservation, ids, verb))
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/admin-action/"+token, nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("token")
	c.SetParamValues(token)
	if err := h.Handle(c); err != nil {
		t.Fatalf("Handle returned %v", err)
	}
	return rec
}

func pendingRow(id uint64, date time.Time) model.Reservation {
	return model.Reservation{
		ID: id, BatchID: "2f5bfc2e-6a1e-4e89-9a57-1c94f7a3f001",
		StudentID: 7, ClassroomID: 3,
		SeatRow: 0, SeatCol: 1,
		Date: date, TimeSlot: 1,
		Status: model.StatusPending,
	}
}

func TestApproveLocksSeatAndRejectsCompetitors(t *testing.T) {
	h, res, mail := actionFixtures(t)
	tomorrow := time.Now().AddDate(0, 0, 1)
	res.getByIDs = func(ids []uint64) ([]model.Reservation, error) {
		return []model.Reservation{pendingRow(11, tomorrow)}, nil
	}

	rec := callAction(t, h, "11", actionApprove)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "1 approved, 0 rejected") {
		t.Errorf("body = %q", rec.Body.String())
	}

	want := []statusUpdate{{ID: 11, From: model.StatusPending, To: model.StatusApproved}}
	if len(res.updates) != 1 || res.updates[0] != want[0] {
		t.Errorf("status updates = %+v, want %+v", res.updates, want)
	}
	if len(res.competitorsOf) != 1 || res.competitorsOf[0].ID != 11 {
		t.Errorf("competitor reject ran for %+v, want the approved row", res.competitorsOf)
	}
	if len(mail.sent) != 1 || mail.sent[0].Kind != queue.MailDecision {
		t.Errorf("mail = %+v, want one decision notice", mail.sent)
	}
}

func TestApproveLostRaceRejectsInstead(t *testing.T) {
	h, res, _ := actionFixtures(t)
	tomorrow := time.Now().AddDate(0, 0, 1)
	res.getByIDs = func(ids []uint64) ([]model.Reservation, error) {
		return []model.Reservation{pendingRow(11, tomorrow)}, nil
	}
	res.approvedExists = func(classroomID uint64, row, col int) (bool, error) { return true, nil }

	rec := callAction(t, h, "11", actionApprove)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "0 approved, 1 rejected") {
		t.Errorf("body = %q", rec.Body.String())
	}
	want := statusUpdate{ID: 11, From: model.StatusPending, To: model.StatusRejected}
	if len(res.updates) != 1 || res.updates[0] != want {
		t.Errorf("status updates = %+v, want %+v", res.updates, want)
	}
	if len(res.competitorsOf) != 0 {
		t.Errorf("competitor reject ran for a lost race: %+v", res.competitorsOf)
	}
}

func TestDecisionPastDeadlineExpires(t *testing.T) {
	h, res, mail := actionFixtures(t)
	yesterday := time.Now().AddDate(0, 0, -1)
	res.getByIDs = func(ids []uint64) ([]model.Reservation, error) {
		return []model.Reservation{pendingRow(11, yesterday)}, nil
	}

	// Reject arriving after the window behaves like approve: the row
	// expires rather than carrying a decision it can no longer honor.
	for _, verb := range []string{actionReject, actionApprove} {
		res.updates = nil
		rec := callAction(t, h, "11", verb)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: status = %d: %s", verb, rec.Code, rec.Body.String())
		}
		want := statusUpdate{ID: 11, From: model.StatusPending, To: model.StatusExpired}
		if len(res.updates) != 1 || res.updates[0] != want {
			t.Errorf("%s: status updates = %+v, want %+v", verb, res.updates, want)
		}
	}
	if len(mail.sent) != 0 {
		t.Errorf("sent %d decision mails for expired rows", len(mail.sent))
	}
}

func TestCancelBatchWindowClosed(t *testing.T) {
	res := &fakeReservations{db: newTestDB(t), cancelledRowCount: 1}
	h := &ReservationHandler{
		Cfg:          config.Config{BookingWindowMin: 30},
		Slots:        testSlots(t),
		Reservations: res,
		Log:          zap.NewNop(),
	}
	const batchID = "2f5bfc2e-6a1e-4e89-9a57-1c94f7a3f001"

	// Pending rows lock once the window closes, same as approved ones.
	yesterday := time.Now().AddDate(0, 0, -1)
	res.batchForStudent = func(string, uint64) ([]model.Reservation, error) {
		return []model.Reservation{pendingRow(21, yesterday)}, nil
	}
	c, rec := newJSONContext(t, http.MethodPost, "/v1/my-reservations/"+batchID+"/cancel", "", 7, model.RoleUser)
	c.SetParamNames("batch_id")
	c.SetParamValues(batchID)
	if err := h.CancelBatch(c); err != nil {
		t.Fatalf("CancelBatch returned %v", err)
	}
	if rec.Code != http.StatusConflict {
		t.Fatalf("past-deadline cancel: status = %d, want 409", rec.Code)
	}
	if len(res.cancelledBatches) != 0 {
		t.Errorf("past-deadline cancel still ran: %v", res.cancelledBatches)
	}

	tomorrow := time.Now().AddDate(0, 0, 1)
	res.batchForStudent = func(string, uint64) ([]model.Reservation, error) {
		return []model.Reservation{pendingRow(21, tomorrow)}, nil
	}
	c, rec = newJSONContext(t, http.MethodPost, "/v1/my-reservations/"+batchID+"/cancel", "", 7, model.RoleUser)
	c.SetParamNames("batch_id")
	c.SetParamValues(batchID)
	if err := h.CancelBatch(c); err != nil {
		t.Fatalf("CancelBatch returned %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("in-window cancel: status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if len(res.cancelledBatches) != 1 {
		t.Errorf("in-window cancel did not run")
	}
}
