package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"koifarm/internal/domain/access"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("role=" + CurrentRole(r).String()))
	})
}

func requestAs(marker *RoleMarker, path string, role access.Role) *http.Request {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if role != "" {
		req.AddCookie(&http.Cookie{Name: DefaultRoleCookie, Value: marker.Encode("u-"+string(role), role)})
	}
	return req
}

func TestRoleMarker(t *testing.T) {
	signed := &RoleMarker{Secret: []byte("s3cret")}

	t.Run("signed round trip", func(t *testing.T) {
		v := signed.Encode("u-1", access.RoleManager)
		assert.Len(t, strings.Split(v, "."), 3)

		uid, role := signed.Identity(v)
		assert.Equal(t, "u-1", uid)
		assert.Equal(t, access.RoleManager, role)
		assert.Equal(t, access.RoleManager, signed.Decode(v))
	})

	t.Run("tampered payload reads as guest", func(t *testing.T) {
		customer := strings.Split(signed.Encode("u-1", access.RoleCustomer), ".")
		manager := strings.Split(signed.Encode("u-1", access.RoleManager), ".")
		forged := customer[0] + "." + manager[1] + "." + customer[2]

		assert.Equal(t, access.RoleGuest, signed.Decode(forged))
		assert.Equal(t, access.RoleGuest, signed.Decode("manager"))
		assert.Equal(t, access.RoleGuest, signed.Decode(""))
	})

	t.Run("different secret reads as guest", func(t *testing.T) {
		other := &RoleMarker{Secret: []byte("other")}
		assert.Equal(t, access.RoleGuest, other.Decode(signed.Encode("u-1", access.RoleManager)))
	})

	t.Run("unsigned algorithm reads as guest", func(t *testing.T) {
		claims := markerClaims{
			Role: "manager",
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "u-1",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		}
		v, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		assert.Equal(t, access.RoleGuest, signed.Decode(v))
	})

	t.Run("expired marker reads as guest", func(t *testing.T) {
		issued := time.Now().Add(-2 * time.Hour)
		old := &RoleMarker{Secret: signed.Secret, MaxAge: time.Hour, now: func() time.Time { return issued }}
		v := old.Encode("u-1", access.RoleManager)

		assert.Equal(t, access.RoleGuest, signed.Decode(v))
	})

	t.Run("marker without a user reads as guest", func(t *testing.T) {
		assert.Equal(t, access.RoleGuest, signed.Decode(signed.Encode("", access.RoleManager)))
	})

	t.Run("unsigned mode", func(t *testing.T) {
		plain := &RoleMarker{}
		assert.Equal(t, "sale-staff", plain.Encode("u-1", "SALE_STAFF"))
		assert.Equal(t, access.RoleSaleStaff, plain.Decode("sale-staff"))
		assert.Equal(t, access.RoleGuest, plain.Decode("owner"))
	})

	t.Run("write and clear", func(t *testing.T) {
		rec := httptest.NewRecorder()
		signed.Write(rec, "u-7", access.RoleFarmStaff)
		cookies := rec.Result().Cookies()
		require.Len(t, cookies, 1)
		assert.Equal(t, DefaultRoleCookie, cookies[0].Name)
		assert.True(t, cookies[0].HttpOnly)
		assert.Equal(t, int(DefaultMarkerTTL.Seconds()), cookies[0].MaxAge)

		uid, role := signed.Identity(cookies[0].Value)
		assert.Equal(t, "u-7", uid)
		assert.Equal(t, access.RoleFarmStaff, role)

		rec = httptest.NewRecorder()
		signed.Clear(rec)
		cookies = rec.Result().Cookies()
		require.Len(t, cookies, 1)
		assert.Equal(t, -1, cookies[0].MaxAge)
	})

	t.Run("missing cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		assert.Equal(t, access.RoleGuest, signed.Read(req))
	})
}

func TestAccessGate(t *testing.T) {
	marker := &RoleMarker{Secret: []byte("k")}
	gate := NewAccessGate(access.DefaultPolicy(), marker, nil).Handler(okHandler())

	cases := []struct {
		name     string
		role     access.Role
		path     string
		status   int
		location string
		body     string
	}{
		{"guest manager", "", "/manager", http.StatusTemporaryRedirect, "/login?redirect=%2Fmanager", ""},
		{"sale staff manager", access.RoleSaleStaff, "/manager", http.StatusTemporaryRedirect, "/sale", ""},
		{"manager manager", access.RoleManager, "/manager", http.StatusOK, "", "role=manager"},
		{"customer login", access.RoleCustomer, "/login", http.StatusTemporaryRedirect, "/", ""},
		{"guest login", "", "/login", http.StatusOK, "", "role=guest"},
		{"manager catalog", access.RoleManager, "/catalog", http.StatusOK, "", "role=manager"},
		{"guest asset", "", "/manager/chart.svg", http.StatusOK, "", "role=guest"},
		{"guest deep link keeps query", "", "/manager/orders?id=5&tab=koi", http.StatusTemporaryRedirect, "/login?redirect=%2Fmanager%2Forders%3Fid%3D5%26tab%3Dkoi", ""},
		{"manager with query", access.RoleManager, "/manager?tab=ponds", http.StatusOK, "", "role=manager"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			gate.ServeHTTP(rec, requestAs(marker, tc.path, tc.role))

			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.location, rec.Header().Get("Location"))
			if tc.body != "" {
				assert.Equal(t, tc.body, rec.Body.String())
			}
		})
	}
}

func TestAccessGate_ForgedCookieIsGuest(t *testing.T) {
	marker := &RoleMarker{Secret: []byte("k")}
	gate := NewAccessGate(nil, marker, nil).Handler(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/manager", nil)
	req.AddCookie(&http.Cookie{Name: DefaultRoleCookie, Value: "manager"})
	rec := httptest.NewRecorder()
	gate.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	assert.Equal(t, "/login?redirect=%2Fmanager", rec.Header().Get("Location"))
}

func TestAccessGate_CountsDecisions(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	marker := &RoleMarker{Secret: []byte("k")}
	gate := newAccessGate(nil, marker, nil, mp).Handler(okHandler())

	for _, req := range []*http.Request{
		requestAs(marker, "/manager", ""),
		requestAs(marker, "/manager/ponds", ""),
		requestAs(marker, "/manager", access.RoleManager),
		requestAs(marker, "/login", access.RoleCustomer),
	} {
		gate.ServeHTTP(httptest.NewRecorder(), req)
	}

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	byOutcome := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "access.decisions" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, dp := range sum.DataPoints {
				outcome, _ := dp.Attributes.Value(attribute.Key("outcome"))
				byOutcome[outcome.AsString()] += dp.Value
			}
		}
	}

	assert.Equal(t, map[string]int64{
		access.RedirectToLogin.String():    2,
		access.Allow.String():              1,
		access.RedirectToRoleHome.String(): 1,
	}, byOutcome)
}

func TestRequireSection(t *testing.T) {
	marker := &RoleMarker{}
	guard := RequireSection(marker, "/login", nil, access.RoleManager, access.RoleFarmStaff)(okHandler())

	t.Run("permitted", func(t *testing.T) {
		rec := httptest.NewRecorder()
		guard.ServeHTTP(rec, requestAs(marker, "/manager/varieties", access.RoleFarmStaff))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "role=farm-staff", rec.Body.String())
	})

	t.Run("authenticated but not permitted goes to login", func(t *testing.T) {
		rec := httptest.NewRecorder()
		guard.ServeHTTP(rec, requestAs(marker, "/manager", access.RoleCustomer))
		assert.Equal(t, http.StatusTemporaryRedirect, rec.Code)
		assert.Equal(t, "/login?redirect=%2Fmanager", rec.Header().Get("Location"))
	})

	t.Run("guest", func(t *testing.T) {
		rec := httptest.NewRecorder()
		guard.ServeHTTP(rec, requestAs(marker, "/manager", ""))
		assert.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	})

	t.Run("query survives the redirect", func(t *testing.T) {
		rec := httptest.NewRecorder()
		guard.ServeHTTP(rec, requestAs(marker, "/manager/varieties?page=2", ""))
		assert.Equal(t, "/login?redirect=%2Fmanager%2Fvarieties%3Fpage%3D2", rec.Header().Get("Location"))
	})
}

func TestRecover(t *testing.T) {
	h := Recover(nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("pond overflow")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal server error"}`, rec.Body.String())
}

func TestRequestLog_PassesThrough(t *testing.T) {
	h := RequestLog(nil)(okHandler())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
