package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/campus-hub/backend/internal/auth/token"
	"github.com/campus-hub/backend/internal/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(jwtSvc *token.JWTService, roles ...string) *gin.Engine {
	return newRouterWithLookup(jwtSvc, nil, roles...)
}

func newRouterWithLookup(jwtSvc *token.JWTService, lookup RoleLookup, roles ...string) *gin.Engine {
	r := gin.New()
	chain := []gin.HandlerFunc{JWT(jwtSvc, lookup)}
	if len(roles) > 0 {
		chain = append(chain, RequireRole(roles...))
	}
	chain = append(chain, func(c *gin.Context) {
		c.String(http.StatusOK, UserID(c).String()+"|"+string(UserRole(c)))
	})
	r.GET("/private", chain...)
	return r
}

func TestJWT_CookieAndBearer(t *testing.T) {
	svc := token.NewJWTService("secret", 1)
	id := uuid.New()
	tok, err := svc.Generate(id, "s@campus.edu", "STUDENT")
	require.NoError(t, err)
	r := newRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/private", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: tok})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, id.String()+"|STUDENT", w.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/private", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestJWT_MissingAndInvalid(t *testing.T) {
	r := newRouter(token.NewJWTService("secret", 1))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/private", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "no token provided")

	req := httptest.NewRequest(http.MethodGet, "/private", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireRole(t *testing.T) {
	svc := token.NewJWTService("secret", 1)
	r := newRouter(svc, "ADMIN")

	student, _ := svc.Generate(uuid.New(), "s@campus.edu", "STUDENT")
	admin, _ := svc.Generate(uuid.New(), "a@campus.edu", "ADMIN")

	for tok, want := range map[string]int{student: http.StatusForbidden, admin: http.StatusOK} {
		req := httptest.NewRequest(http.MethodGet, "/private", nil)
		req.AddCookie(&http.Cookie{Name: CookieName, Value: tok})
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, want, w.Code)
	}
}

type roleTable struct {
	roles map[uuid.UUID]models.Role
	err   error
}

func (t roleTable) CurrentRole(_ context.Context, id uuid.UUID) (models.Role, error) {
	if t.err != nil {
		return "", t.err
	}
	role, ok := t.roles[id]
	if !ok {
		return "", ErrUserNotFound
	}
	return role, nil
}

func TestJWT_RoleComesFromLookup(t *testing.T) {
	svc := token.NewJWTService("secret", 1)
	demoted, deleted := uuid.New(), uuid.New()
	lookup := roleTable{roles: map[uuid.UUID]models.Role{demoted: models.RoleStudent}}
	r := newRouterWithLookup(svc, lookup, "ADMIN")

	get := func(r http.Handler, id uuid.UUID) int {
		tok, err := svc.Generate(id, "a@campus.edu", "ADMIN")
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/private", nil)
		req.AddCookie(&http.Cookie{Name: CookieName, Value: tok})
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusForbidden, get(r, demoted))
	assert.Equal(t, http.StatusUnauthorized, get(r, deleted))

	broken := newRouterWithLookup(svc, roleTable{err: errors.New("db down")}, "ADMIN")
	assert.Equal(t, http.StatusInternalServerError, get(broken, demoted))
}

func TestCORS(t *testing.T) {
	r := gin.New()
	r.Use(CORS("http://localhost:5100"))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/x", nil)
	req.Header.Set("Origin", "http://localhost:5100")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:5100", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "http://evil.example")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestLogger_LevelsAndUser(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	id := uuid.New()
	r := gin.New()
	r.Use(Logger(zap.New(core)))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/ok", func(c *gin.Context) {
		c.Set(ContextUserID, id)
		c.Status(http.StatusOK)
	})
	r.GET("/missing", func(c *gin.Context) { c.Status(http.StatusNotFound) })
	r.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	for _, p := range []string{"/health", "/ok?page=2", "/missing", "/boom"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, p, nil))
	}

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, id.String(), entries[0].ContextMap()["user_id"])
	assert.Equal(t, "page=2", entries[0].ContextMap()["query"])
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[2].Level)
}
