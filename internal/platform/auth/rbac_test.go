package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func roleCall(t *testing.T, mw echo.MiddlewareFunc, roles []string) error {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/users", nil)
	if roles != nil {
		ctx := context.WithValue(req.Context(), UserRolesKey, roles)
		req = req.WithContext(ctx)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}
	return mw(handler)(c)
}

func TestRequireRole(t *testing.T) {
	cases := []struct {
		name     string
		required []string
		has      []string
		allowed  bool
	}{
		{"exact match", []string{"doctor"}, []string{"doctor"}, true},
		{"one of several", []string{"doctor", "patient"}, []string{"patient"}, true},
		{"admin passes everything", []string{"doctor"}, []string{"admin"}, true},
		{"missing role", []string{"doctor"}, []string{"patient"}, false},
		{"no roles at all", []string{"doctor"}, nil, false},
		{"empty role list", []string{"doctor"}, []string{}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := roleCall(t, RequireRole(tc.required...), tc.has)
			if tc.allowed {
				if err != nil {
					t.Fatalf("expected access, got %v", err)
				}
				return
			}
			httpErr, ok := err.(*echo.HTTPError)
			if !ok {
				t.Fatalf("expected echo.HTTPError, got %v", err)
			}
			if httpErr.Code != http.StatusForbidden {
				t.Errorf("expected 403, got %d", httpErr.Code)
			}
		})
	}
}
