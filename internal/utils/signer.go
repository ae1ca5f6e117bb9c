package utils

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Signer issues and verifies the timestamped tokens embedded in one-click
// email links (admin approve/reject, password reset).  A token is
// base64url(payload).base64url(unix-ts).base64url(hmac-sha256) so it is
// safe to mount as a URL path segment.  Verification enforces a maximum
// age, so a leaked link goes stale on its own.
type Signer struct {
	secret []byte
}

// ErrBadSignature is returned for tampered, malformed or expired tokens.
// Callers deliberately get one error for all three cases.
var ErrBadSignature = errors.New("invalid or expired token")

func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

// Sign wraps payload into a signed token stamped with the current time.
func (s *Signer) Sign(payload string) string {
	return s.signAt(payload, time.Now())
}

func (s *Signer) signAt(payload string, at time.Time) string {
	enc := base64.RawURLEncoding
	body := enc.EncodeToString([]byte(payload)) + "." +
		enc.EncodeToString([]byte(strconv.FormatInt(at.Unix(), 10)))
	return body + "." + enc.EncodeToString(s.mac(body))
}

// Unsign verifies the token's signature and age and returns the original
// payload.  Tokens older than maxAge are rejected.
func (s *Signer) Unsign(token string, maxAge time.Duration) (string, error) {
	return s.unsignAt(token, maxAge, time.Now())
}

func (s *Signer) unsignAt(token string, maxAge time.Duration, now time.Time) (string, error) {
	enc := base64.RawURLEncoding
	i := strings.LastIndex(token, ".")
	if i < 0 {
		return "", ErrBadSignature
	}
	body, sigPart := token[:i], token[i+1:]
	sig, err := enc.DecodeString(sigPart)
	if err != nil || !hmac.Equal(sig, s.mac(body)) {
		return "", ErrBadSignature
	}
	parts := strings.Split(body, ".")
	if len(parts) != 2 {
		return "", ErrBadSignature
	}
	payloadRaw, err := enc.DecodeString(parts[0])
	if err != nil {
		return "", ErrBadSignature
	}
	tsRaw, err := enc.DecodeString(parts[1])
	if err != nil {
		return "", ErrBadSignature
	}
	ts, err := strconv.ParseInt(string(tsRaw), 10, 64)
	if err != nil {
		return "", ErrBadSignature
	}
	issued := time.Unix(ts, 0)
	if issued.After(now) || now.Sub(issued) > maxAge {
		return "", ErrBadSignature
	}
	return string(payloadRaw), nil
}

func (s *Signer) mac(body string) []byte {
	h := hmac.New(sha256.New, s.secret)
	h.Write([]byte(body))
	return h.Sum(nil)
}

// ActionPayload composes the canonical "<kind>:<ids>:<action>" payload used
// by admin action links, e.g. "res:12,13:approve" or "stu:7:promote".
func ActionPayload(kind, ids, action string) string {
	return fmt.Sprintf("%s:%s:%s", kind, ids, action)
}

// ParseActionPayload splits an action payload back into its three parts.
// Only the first two separators split, so ids may never contain a colon but
// the trailing component may (used by password-reset payloads that carry
// the new password).
func ParseActionPayload(payload string) (kind, ids, action string, err error) {
	parts := strings.SplitN(payload, ":", 3)
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return "", "", "", ErrBadSignature
	}
	return parts[0], parts[1], parts[2], nil
}
