package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"visitor-registry/models"
	"visitor-registry/monitoring"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeUsers map[string]*models.User

func (f fakeUsers) GetUserByToken(_ context.Context, key string) (*models.User, error) {
	if u, ok := f[key]; ok {
		return u, nil
	}
	return nil, models.ErrNotFound
}

func TestTokenFromHeader(t *testing.T) {
	assert.Equal(t, "abc", TokenFromHeader("Token abc"))
	assert.Equal(t, "abc", TokenFromHeader("bearer abc"))
	assert.Equal(t, "", TokenFromHeader("Basic abc"))
	assert.Equal(t, "", TokenFromHeader("abc"))
	assert.Equal(t, "", TokenFromHeader(""))
}

func newAuthRouter(required bool) *gin.Engine {
	users := fakeUsers{"good": {ID: 1, Username: "ana", FullName: "Ana Pérez"}}
	r := gin.New()
	r.Use(Authenticate(users))
	r.GET("/whoami", func(c *gin.Context) {
		c.String(http.StatusOK, Actor(c))
	})
	r.POST("/write", RequireUser(required), func(c *gin.Context) {
		c.String(http.StatusOK, Actor(c))
	})
	return r
}

func TestAuthenticate(t *testing.T) {
	r := newAuthRouter(true)

	tests := []struct {
		name   string
		method string
		path   string
		header map[string]string
		status int
		body   string
	}{
		{"anonymous read", http.MethodGet, "/whoami", nil, http.StatusOK, ""},
		{"actor header", http.MethodGet, "/whoami", map[string]string{ActorHeader: "recepcion"}, http.StatusOK, "recepcion"},
		{"valid token", http.MethodGet, "/whoami", map[string]string{"Authorization": "Token good"}, http.StatusOK, "Ana Pérez"},
		{"unknown token", http.MethodGet, "/whoami", map[string]string{"Authorization": "Token bad"}, http.StatusUnauthorized, ""},
		{"anonymous write", http.MethodPost, "/write", map[string]string{ActorHeader: "recepcion"}, http.StatusUnauthorized, ""},
		{"authenticated write", http.MethodPost, "/write", map[string]string{"Authorization": "Bearer good"}, http.StatusOK, "Ana Pérez"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusOK {
				assert.Equal(t, tt.body, w.Body.String())
			}
		})
	}
}

func TestRequireUserDisabled(t *testing.T) {
	r := newAuthRouter(false)
	req := httptest.NewRequest(http.MethodPost, "/write", nil)
	req.Header.Set(ActorHeader, "recepcion")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "recepcion", w.Body.String())
}

func TestMaintenanceGate(t *testing.T) {
	busy := true
	r := gin.New()
	r.Use(MaintenanceGate(func() bool { return busy }, "/api/update"))
	r.GET("/api/visitantes", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/api/update/version", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/visitantes", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/update/version", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	busy = false
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/visitantes", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestErrorHandlerWritesGenericBody(t *testing.T) {
	r := gin.New()
	r.Use(ErrorHandler(zap.NewNop()))
	r.GET("/boom", func(c *gin.Context) {
		_ = c.Error(errors.New("database exploded"))
	})
	r.GET("/handled", func(c *gin.Context) {
		_ = c.Error(errors.New("render failed"))
		c.JSON(http.StatusBadGateway, gin.H{"error": "upstream"})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"internal server error"}`, w.Body.String())
	assert.NotContains(t, w.Body.String(), "exploded")

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/handled", nil))
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestPrometheusMetricsUsesRouteTemplate(t *testing.T) {
	r := gin.New()
	r.Use(PrometheusMetrics())
	r.GET("/api/visitantes/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	counter := monitoring.RequestsTotal.WithLabelValues(http.MethodGet, "/api/visitantes/:id", "204")
	before := testutil.ToFloat64(counter)

	for _, id := range []string{"1", "2"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/visitantes/"+id, nil))
		assert.Equal(t, http.StatusNoContent, w.Code)
	}

	assert.Equal(t, before+2, testutil.ToFloat64(counter))
	assert.Zero(t, testutil.ToFloat64(monitoring.RequestsInFlight))
}

func TestRedactHeaders(t *testing.T) {
	h := http.Header{}
	h.Set("Authorization", "Token secret")
	h.Set("X-UPDATE-TOKEN", "secret")
	h.Set("X-Usuario", "ana")

	out := redactHeaders(h)
	assert.Equal(t, "[FILTERED]", out["Authorization"])
	assert.Equal(t, "[FILTERED]", out["X-Update-Token"])
	assert.Equal(t, []string{"ana"}, out["X-Usuario"])
}
