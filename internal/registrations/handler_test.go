package registrations

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-hub/backend/internal/middleware"
	"github.com/campus-hub/backend/internal/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeStore struct {
	registerErr error
	cancelErr   error
	lastInfo    map[string]string
}

func (f *fakeStore) Register(_ context.Context, userID, eventID uuid.UUID, info map[string]string, _ time.Time) (*models.Registration, error) {
	f.lastInfo = info
	if f.registerErr != nil {
		return nil, f.registerErr
	}
	return &models.Registration{ID: uuid.New(), UserID: userID, EventID: eventID, Status: models.RegistrationRegistered, AdditionalInfo: info}, nil
}

func (f *fakeStore) Cancel(context.Context, uuid.UUID, uuid.UUID) error { return f.cancelErr }

func (f *fakeStore) Get(context.Context, uuid.UUID) (*models.Registration, error) {
	return nil, ErrNotFound
}

func (f *fakeStore) ListForUser(context.Context, uuid.UUID) ([]models.Registration, error) {
	return []models.Registration{}, nil
}

func (f *fakeStore) ListForEvent(context.Context, uuid.UUID) ([]models.Registration, error) {
	return []models.Registration{}, nil
}

func router(store Store, role models.Role) *gin.Engine {
	r := gin.New()
	auth := func(c *gin.Context) {
		c.Set(middleware.ContextUserID, uuid.New())
		c.Set(middleware.ContextUserRole, string(role))
		c.Next()
	}
	NewHandler(store, nil).RegisterRoutes(r.Group("/api/registrations"), auth, middleware.RequireRole(string(models.RoleAdmin)))
	return r
}

func send(r http.Handler, method, path string, body interface{}) (int, string) {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var env struct {
		Message string `json:"message"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w.Code, env.Message
}

func TestHandler_Register(t *testing.T) {
	store := &fakeStore{}
	code, msg := send(router(store, models.RoleStudent), http.MethodPost, "/api/registrations", map[string]interface{}{
		"eventId":        uuid.New().String(),
		"additionalInfo": map[string]interface{}{"roll": "42", "year": 3, "hostel": true},
	})
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "Registered for event successfully", msg)
	assert.Equal(t, map[string]string{"roll": "42", "year": "3", "hostel": "true"}, store.lastInfo)
}

func TestHandler_RegisterErrors(t *testing.T) {
	cases := []struct {
		err  error
		code int
		msg  string
	}{
		{rejected("This event is full"), http.StatusBadRequest, "This event is full"},
		{ErrFull, http.StatusBadRequest, "This event is full"},
		{ErrAlreadyRegistered, http.StatusBadRequest, "You are already registered for this event"},
		{ErrEventNotFound, http.StatusNotFound, "Event not found"},
	}
	for _, tc := range cases {
		code, msg := send(router(&fakeStore{registerErr: tc.err}, models.RoleStudent), http.MethodPost, "/api/registrations",
			map[string]string{"eventId": uuid.New().String()})
		assert.Equal(t, tc.code, code)
		assert.Equal(t, tc.msg, msg)
	}

	code, msg := send(router(&fakeStore{}, models.RoleStudent), http.MethodPost, "/api/registrations", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "eventId is required", msg)
}

func TestHandler_Cancel(t *testing.T) {
	path := "/api/registrations/" + uuid.New().String()
	code, msg := send(router(&fakeStore{cancelErr: ErrForbidden}, models.RoleStudent), http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "You are not allowed to cancel this registration", msg)

	code, msg = send(router(&fakeStore{cancelErr: ErrAlreadyCancelled}, models.RoleStudent), http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Registration is already cancelled", msg)

	code, _ = send(router(&fakeStore{}, models.RoleStudent), http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestHandler_ListForEventAdminOnly(t *testing.T) {
	path := "/api/registrations/event/" + uuid.New().String()
	code, _ := send(router(&fakeStore{}, models.RoleStudent), http.MethodGet, path, nil)
	assert.Equal(t, http.StatusForbidden, code)
	code, _ = send(router(&fakeStore{}, models.RoleAdmin), http.MethodGet, path, nil)
	assert.Equal(t, http.StatusOK, code)
}
