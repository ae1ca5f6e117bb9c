package handler

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/campushub/classroom-reservation/internal/utils"
)

// Action payload kinds and verbs carried inside signed links.
const (
	kindReservation = "res"
	kindStudent     = "stu"
	kindReset       = "reset"

	actionApprove = "approve"
	actionReject  = "reject"
	actionPromote = "promote"
)

// LinkBuilder mints the signed one-click URLs embedded in mail.  Links are
// plain GETs so they work from any mail client; the token in the path
// carries the whole decision.
type LinkBuilder struct {
	signer *utils.Signer
	base   string
}

func NewLinkBuilder(signer *utils.Signer, siteDomain string) *LinkBuilder {
	return &LinkBuilder{signer: signer, base: strings.TrimRight(siteDomain, "/")}
}

// ReservationAction links decide a whole batch of reservation ids at once.
func (l *LinkBuilder) ReservationAction(ids []uint64, action string) string {
	payload := utils.ActionPayload(kindReservation, joinIDs(ids), action)
	return fmt.Sprintf("%s/admin-action/%s", l.base, l.signer.Sign(payload))
}

// PromotionAction links decide a student's pending upgrade requests.
func (l *LinkBuilder) PromotionAction(studentID uint64, action string) string {
	payload := utils.ActionPayload(kindStudent, strconv.FormatUint(studentID, 10), action)
	return fmt.Sprintf("%s/admin-action/%s", l.base, l.signer.Sign(payload))
}

// ResetConfirm links apply a pending password change.  The new password
// travels inside the signed payload, never stored until confirmed.
func (l *LinkBuilder) ResetConfirm(studentID uint64, newPassword string) string {
	payload := utils.ActionPayload(kindReset, strconv.FormatUint(studentID, 10), newPassword)
	return fmt.Sprintf("%s/v1/auth/reset-confirm/%s", l.base, l.signer.Sign(payload))
}

func joinIDs(ids []uint64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatUint(id, 10)
	}
	return strings.Join(parts, ",")
}

func splitIDs(s string) ([]uint64, error) {
	parts := strings.Split(s, ",")
	out := make([]uint64, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseUint(p, 10, 64)
		if err != nil || id == 0 {
			return nil, fmt.Errorf("bad id %q", p)
		}
		out = append(out, id)
	}
	return out, nil
}
