package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-hub/backend/internal/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(svc *Service, userID uuid.UUID) *gin.Engine {
	r := gin.New()
	auth := func(c *gin.Context) {
		c.Set(middleware.ContextUserID, userID)
		c.Set(middleware.ContextUserRole, "STUDENT")
		c.Next()
	}
	h := NewHandler(svc, nil)
	h.RegisterRoutes(r.Group("/api/chat"), auth)
	h.RegisterMessageRoutes(r.Group("/api/message"), auth)
	return r
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func call(r http.Handler, method, path string, body interface{}) (int, envelope) {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var env envelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w.Code, env
}

func TestHandler_AccessChat(t *testing.T) {
	me := uuid.New()
	r := newRouter(NewService(newMemStore(), nil, nil), me)

	code, env := call(r, http.MethodPost, "/api/chat/accessChat", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "userId param not sent with request", env.Message)

	code, _ = call(r, http.MethodPost, "/api/chat/accessChat", map[string]string{"userId": me.String()})
	assert.Equal(t, http.StatusBadRequest, code)

	code, env = call(r, http.MethodPost, "/api/chat/accessChat", map[string]string{"userId": uuid.New().String()})
	require.Equal(t, http.StatusOK, code)
	var chat struct {
		ID    string `json:"_id"`
		Users []struct {
			ID string `json:"_id"`
		} `json:"users"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &chat))
	assert.Len(t, chat.Users, 2)
}

func TestHandler_CreateGroupAcceptsEncodedUsers(t *testing.T) {
	me := uuid.New()
	r := newRouter(NewService(newMemStore(), nil, nil), me)
	u1, u2 := uuid.New().String(), uuid.New().String()

	code, env := call(r, http.MethodPost, "/api/chat/createGroup", map[string]string{"name": "Club"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Please fill all the fields", env.Message)

	code, env = call(r, http.MethodPost, "/api/chat/createGroup", map[string]interface{}{"name": "Club", "users": []string{u1}})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "More than 2 users are required to form a group chat", env.Message)

	encoded, _ := json.Marshal([]string{u1, u2})
	code, _ = call(r, http.MethodPost, "/api/chat/createGroup", map[string]interface{}{"name": "Club", "users": string(encoded)})
	assert.Equal(t, http.StatusCreated, code)

	code, _ = call(r, http.MethodPost, "/api/chat/createGroup", map[string]interface{}{"name": "Club", "users": []string{u1, u2}})
	assert.Equal(t, http.StatusCreated, code)
}

func TestHandler_RenameMissingChat(t *testing.T) {
	r := newRouter(NewService(newMemStore(), nil, nil), uuid.New())
	code, env := call(r, http.MethodPut, "/api/chat/renameGroup", map[string]string{"chatId": uuid.New().String(), "chatName": "x"})
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "Chat Not Found", env.Message)
}

func TestHandler_MessagesFlow(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, nil, nil)
	me, other := uuid.New(), uuid.New()
	direct, err := svc.Access(context.Background(), me, other)
	require.NoError(t, err)
	r := newRouter(svc, me)

	code, env := call(r, http.MethodPost, "/api/message", map[string]string{"chatId": direct.ID.String()})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Invalid data passed into request", env.Message)

	code, _ = call(r, http.MethodPost, "/api/message", map[string]string{"chatId": direct.ID.String(), "content": "hey"})
	require.Equal(t, http.StatusCreated, code)

	code, env = call(r, http.MethodGet, "/api/message/"+direct.ID.String(), nil)
	require.Equal(t, http.StatusOK, code)
	var list []map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list, 1)
	assert.Equal(t, "hey", list[0]["content"])

	stranger := newRouter(svc, uuid.New())
	code, _ = call(stranger, http.MethodGet, "/api/message/"+direct.ID.String(), nil)
	assert.Equal(t, http.StatusForbidden, code)
}
