package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/campushub/classroom-reservation/internal/utils"
)

const testSecret = "unit-test-secret"

func doRequest(t *testing.T, mw []echo.MiddlewareFunc, authHeader string) (*httptest.ResponseRecorder, echo.Context) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/v1/me", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := func(c echo.Context) error { return c.NoContent(http.StatusOK) }
	for i := len(mw) - 1; i >= 0; i-- {
		h = mw[i](h)
	}
	if err := h(c); err != nil {
		t.Fatalf("handler: %v", err)
	}
	return rec, c
}

func TestJWTAuthAcceptsValidToken(t *testing.T) {
	tok, err := utils.NewAccessToken(testSecret, 42, "U202301234", "manager", 5)
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}

	rec, c := doRequest(t, []echo.MiddlewareFunc{JWTAuth(testSecret)}, "Bearer "+tok.Token)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if got := StudentID(c); got != 42 {
		t.Fatalf("StudentID = %d", got)
	}
	if got := Role(c); got != "manager" {
		t.Fatalf("Role = %q", got)
	}
}

func TestJWTAuthRejects(t *testing.T) {
	wrongKey, err := utils.NewAccessToken("other-secret", 1, "U1", "user", 5)
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	expired, err := utils.NewAccessToken(testSecret, 1, "U1", "user", -5)
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}

	cases := []struct {
		name   string
		header string
	}{
		{"no header", ""},
		{"not bearer", "Basic abc"},
		{"garbage", "Bearer not.a.jwt"},
		{"wrong key", "Bearer " + wrongKey.Token},
		{"expired", "Bearer " + expired.Token},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, _ := doRequest(t, []echo.MiddlewareFunc{JWTAuth(testSecret)}, tc.header)
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", rec.Code)
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	admin, err := utils.NewAccessToken(testSecret, 7, "U7", "admin", 5)
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	user, err := utils.NewAccessToken(testSecret, 8, "U8", "user", 5)
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}

	chain := []echo.MiddlewareFunc{JWTAuth(testSecret), RequireRole("admin")}

	rec, _ := doRequest(t, chain, "Bearer "+admin.Token)
	if rec.Code != http.StatusOK {
		t.Fatalf("admin status = %d", rec.Code)
	}
	rec, _ = doRequest(t, chain, "Bearer "+user.Token)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("user status = %d, want 403", rec.Code)
	}
}
