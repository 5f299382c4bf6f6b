package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	fbauth "firebase.google.com/go/v4/auth"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"koifarm/internal/adapters/in/http/middleware"
	"koifarm/internal/adapters/out/memory"
	usecase "koifarm/internal/application/usecase"
	"koifarm/internal/domain/access"
)

type cartClient struct {
	t      *testing.T
	h      http.Handler
	cookie *http.Cookie
}

func (c *cartClient) do(method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	c.t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if c.cookie != nil {
		req.AddCookie(c.cookie)
	}
	rec := httptest.NewRecorder()
	c.h.ServeHTTP(rec, req)

	for _, ck := range rec.Result().Cookies() {
		if ck.Name == DefaultCartCookie {
			c.cookie = ck
		}
	}

	var out map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(c.t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func newCartClient(t *testing.T) (*cartClient, *usecase.CartRegistry) {
	reg := usecase.NewCartRegistry(memory.NewCartStore(), nil)
	t.Cleanup(func() { _ = reg.Close(context.Background()) })
	h := NewCartHandler(reg, nil, false)
	return &cartClient{t: t, h: h.Routes()}, reg
}

const asagiJSON = `{"id":"koi-asagi","name":"Asagi","variety":"Asagi","price":"650.00","size":"32cm","age":"2 years","image":"https://cdn.example.com/asagi.jpg"}`

func TestCartHandler_Flow(t *testing.T) {
	c, _ := newCartClient(t)

	rec, body := c.do(http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, c.cookie, "reading an empty cart issues no session")
	assert.Equal(t, "", body["cartId"])
	assert.Equal(t, float64(0), body["totalItems"])
	assert.Equal(t, "0", body["totalPrice"])
	assert.Equal(t, false, body["isOpen"])

	c.do(http.MethodPost, "/items", asagiJSON)
	require.NotNil(t, c.cookie, "first write issues a cart session cookie")
	rec, body = c.do(http.MethodPost, "/items", asagiJSON)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, c.cookie.Value, body["cartId"])
	assert.Equal(t, float64(2), body["totalItems"])
	assert.Equal(t, "1300", body["totalPrice"])
	lines := body["lines"].([]any)
	require.Len(t, lines, 1)
	assert.Equal(t, float64(2), lines[0].(map[string]any)["quantity"])

	_, body = c.do(http.MethodGet, "/items/koi-asagi/count", "")
	assert.Equal(t, float64(2), body["count"])

	_, body = c.do(http.MethodPut, "/items/koi-asagi", `{"quantity":5}`)
	assert.Equal(t, float64(5), body["totalItems"])

	_, body = c.do(http.MethodPut, "/items/koi-asagi", `{"quantity":0}`)
	assert.Equal(t, float64(0), body["totalItems"])
	assert.Empty(t, body["lines"])

	c.do(http.MethodPost, "/items", asagiJSON)
	_, body = c.do(http.MethodDelete, "/items/koi-asagi", "")
	assert.Equal(t, float64(0), body["totalItems"])

	_, body = c.do(http.MethodDelete, "/items/never-added", "")
	assert.Equal(t, float64(0), body["totalItems"])

	c.do(http.MethodPost, "/items", asagiJSON)
	_, body = c.do(http.MethodDelete, "/", "")
	assert.Equal(t, float64(0), body["totalItems"])
	assert.Equal(t, "0", body["totalPrice"])
}

func TestCartHandler_Visibility(t *testing.T) {
	c, _ := newCartClient(t)

	_, body := c.do(http.MethodPost, "/toggle", "")
	assert.Equal(t, true, body["isOpen"])
	_, body = c.do(http.MethodPut, "/open", `{"isOpen":false}`)
	assert.Equal(t, false, body["isOpen"])

	rec, _ := c.do(http.MethodPut, "/open", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCartHandler_BadRequests(t *testing.T) {
	c, _ := newCartClient(t)

	rec, body := c.do(http.MethodPost, "/items", `{"name":"no id"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "id is required", body["error"])

	rec, _ = c.do(http.MethodPost, "/items", `{`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = c.do(http.MethodPut, "/items/x", `{"qty":1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCartHandler_MalformedCookieGetsNewSession(t *testing.T) {
	c, _ := newCartClient(t)
	c.cookie = &http.Cookie{Name: DefaultCartCookie, Value: "../../etc"}

	_, body := c.do(http.MethodGet, "/", "")
	assert.Equal(t, "", body["cartId"])

	_, body = c.do(http.MethodPost, "/items", asagiJSON)
	assert.NotEqual(t, "../../etc", c.cookie.Value)
	assert.Equal(t, c.cookie.Value, body["cartId"])
}

func TestCartHandler_ReadsDoNotRegisterCarts(t *testing.T) {
	c, reg := newCartClient(t)

	for i := 0; i < 20; i++ {
		anon := &cartClient{t: t, h: c.h}
		rec, _ := anon.do(http.MethodGet, "/", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Nil(t, anon.cookie)

		stale := &cartClient{t: t, h: c.h, cookie: &http.Cookie{Name: DefaultCartCookie, Value: uuid.NewString()}}
		_, body := stale.do(http.MethodGet, "/items/koi-asagi/count", "")
		assert.Equal(t, float64(0), body["count"])
	}
	assert.Equal(t, 0, reg.Len())

	c.do(http.MethodPost, "/items", asagiJSON)
	assert.Equal(t, 1, reg.Len())

	_, body := c.do(http.MethodGet, "/items/koi-asagi/count", "")
	assert.Equal(t, float64(1), body["count"])
	_, body = c.do(http.MethodGet, "/", "")
	assert.Equal(t, float64(1), body["totalItems"])
}

func TestCartHandler_SessionsAreIsolated(t *testing.T) {
	reg := usecase.NewCartRegistry(memory.NewCartStore(), nil)
	t.Cleanup(func() { _ = reg.Close(context.Background()) })
	h := NewCartHandler(reg, nil, false).Routes()

	a := &cartClient{t: t, h: h}
	b := &cartClient{t: t, h: h}

	a.do(http.MethodPost, "/items", asagiJSON)
	_, body := b.do(http.MethodGet, "/", "")
	assert.Equal(t, float64(0), body["totalItems"])
}

// -------------------------
// session
// -------------------------

type fakeVerifier struct {
	tokens map[string]*fbauth.Token
}

func (f fakeVerifier) VerifyIDToken(_ context.Context, idToken string) (*fbauth.Token, error) {
	if t, ok := f.tokens[idToken]; ok {
		return t, nil
	}
	return nil, errors.New("invalid")
}

type fakeRoles map[string]access.Role

func (f fakeRoles) RoleByUID(_ context.Context, uid string) (access.Role, error) {
	if r, ok := f[uid]; ok {
		return r, nil
	}
	return access.RoleGuest, nil
}

func newSessionHandler() (*SessionHandler, *middleware.RoleMarker) {
	marker := &middleware.RoleMarker{Secret: []byte("test-secret")}
	return &SessionHandler{
		Verifier: fakeVerifier{tokens: map[string]*fbauth.Token{
			"tok-manager":  {UID: "u-1", Claims: map[string]interface{}{"role": "manager"}},
			"tok-sale":     {UID: "u-2", Claims: map[string]interface{}{}},
			"tok-customer": {UID: "u-3", Claims: map[string]interface{}{"role": "nonsense"}},
		}},
		Roles:  fakeRoles{"u-2": access.RoleSaleStaff},
		Marker: marker,
		Policy: access.DefaultPolicy(),
	}, marker
}

func signIn(h http.Handler, token, target string) *httptest.ResponseRecorder {
	path := "/api/auth/session"
	if target != "" {
		path += "?redirect=" + target
	}
	req := httptest.NewRequest(http.MethodPost, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func markerRole(t *testing.T, marker *middleware.RoleMarker, rec *httptest.ResponseRecorder) access.Role {
	t.Helper()
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == middleware.DefaultRoleCookie {
			return marker.Decode(ck.Value)
		}
	}
	t.Fatalf("role marker not written")
	return access.RoleGuest
}

func TestSessionHandler_SignIn(t *testing.T) {
	h, marker := newSessionHandler()

	t.Run("role from claim, redirect honored", func(t *testing.T) {
		rec := signIn(h, "tok-manager", "%2Fmanager%2Fponds")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, access.RoleManager, markerRole(t, marker, rec))
		uid, _ := marker.Identity(rec.Result().Cookies()[0].Value)
		assert.Equal(t, "u-1", uid, "marker is bound to the signed-in user")
		assert.JSONEq(t, `{"uid":"u-1","role":"manager","redirect":"/manager/ponds"}`, rec.Body.String())
	})

	t.Run("role from repository", func(t *testing.T) {
		rec := signIn(h, "tok-sale", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, access.RoleSaleStaff, markerRole(t, marker, rec))
		assert.Contains(t, rec.Body.String(), `"redirect":"/sale"`)
	})

	t.Run("no back-office role means customer", func(t *testing.T) {
		rec := signIn(h, "tok-customer", "%2Fmanager")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, access.RoleCustomer, markerRole(t, marker, rec))
		assert.Contains(t, rec.Body.String(), `"redirect":"/"`, "forbidden redirect falls back to home")
	})

	t.Run("open redirect is refused", func(t *testing.T) {
		rec := signIn(h, "tok-manager", "%2F%2Fevil.example.com")
		assert.Contains(t, rec.Body.String(), `"redirect":"/manager"`)
	})

	t.Run("missing and invalid tokens", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, signIn(h, "", "").Code)
		assert.Equal(t, http.StatusUnauthorized, signIn(h, "forged", "").Code)
	})

	t.Run("verifier not configured", func(t *testing.T) {
		rec := signIn(&SessionHandler{Marker: marker}, "tok-manager", "")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestSessionHandler_SignOut(t *testing.T) {
	h, _ := newSessionHandler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/auth/session", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, middleware.DefaultRoleCookie, cookies[0].Name)
	assert.Equal(t, -1, cookies[0].MaxAge)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/auth/session", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestSanitizeRedirect(t *testing.T) {
	for raw, want := range map[string]string{
		"/manager":          "/manager",
		"/catalog?page=2":   "/catalog?page=2",
		"//evil.example":    "",
		"/\\evil.example":   "",
		"https://evil.test": "",
		"manager":           "",
		"":                  "",
	} {
		got, ok := sanitizeRedirect(raw)
		assert.Equal(t, want != "", ok, raw)
		assert.Equal(t, want, got, raw)
	}
}

func TestSectionHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/manager/ponds", nil)
	req = req.WithContext(middleware.WithRole(req.Context(), access.RoleFarmStaff))
	SectionHandler("manager").ServeHTTP(rec, req)

	assert.JSONEq(t, `{"section":"manager","role":"farm-staff","path":"/manager/ponds"}`, rec.Body.String())
}
