package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("ACCESS_POLICY_FILE", "")
	t.Setenv("APP_ENV", "")

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestAccessResolve(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{[]string{"access", "resolve", "/manager"}, "redirect_login /login?redirect=%2Fmanager"},
		{[]string{"access", "resolve", "--role", "sale-staff", "/manager"}, "redirect_home /sale"},
		{[]string{"access", "resolve", "--role", "MANAGER", "/manager/ponds"}, "allow"},
		{[]string{"access", "resolve", "--role", "customer", "/login"}, "redirect_home /"},
		{[]string{"access", "resolve", "--role", "manager", "/catalog"}, "allow"},
	}
	for _, tt := range tests {
		t.Run(strings.Join(tt.args[2:], " "), func(t *testing.T) {
			out, err := run(t, tt.args...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, strings.TrimSpace(out))
		})
	}
}

func TestAccessResolve_PolicyFlag(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rules:\n  - prefix: /breeding\n    roles: [farm-staff]\n"), 0o600))

	out, err := run(t, "access", "resolve", "--policy", path, "--role", "customer", "/breeding")
	require.NoError(t, err)
	assert.Equal(t, "redirect_home /", strings.TrimSpace(out))

	_, err = run(t, "access", "resolve", "--policy", filepath.Join(t.TempDir(), "nope.yaml"), "/")
	assert.Error(t, err)
}

func TestAccessRoutes(t *testing.T) {
	out, err := run(t, "access", "routes")
	require.NoError(t, err)

	assert.Contains(t, out, "/manager")
	assert.Contains(t, out, "manager,farm-staff")
	assert.Contains(t, out, "/sale")
	assert.Contains(t, out, "login:      /login")
	assert.Contains(t, out, "/forgot-password")
	assert.Contains(t, out, "/api/")
}

func TestBootHandler(t *testing.T) {
	b := newBootHandler(healthzHandler())

	rec := httptest.NewRecorder()
	b.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	b.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/cart", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code, "storefront routes wait for promotion")

	assert.False(t, b.promote(nil))
	assert.True(t, b.promote(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})))
	assert.False(t, b.promote(http.NotFoundHandler()), "second promotion is ignored")

	rec = httptest.NewRecorder()
	b.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/cart", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestServe_RefusesMemoryStoreOutsideLocal(t *testing.T) {
	t.Setenv("CART_STORE", "memory")
	_, err := run(t, "serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "APP_ENV=local")
}

func TestBootHandler_NilFallback(t *testing.T) {
	rec := httptest.NewRecorder()
	newBootHandler(nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
