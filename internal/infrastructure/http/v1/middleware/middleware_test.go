package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"palmledger/internal/core/apperror"
	appctx "palmledger/internal/core/context"
	"palmledger/internal/infrastructure/storage/postgres"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubValidator struct {
	user *appctx.UserContext
}

func (v stubValidator) ValidateToken(token string) (*appctx.UserContext, error) {
	if token != "good" {
		return nil, errors.New("bad token")
	}
	return v.user, nil
}

func newEngine(mw ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(ErrorHandler())
	r.Use(mw...)
	return r
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestAuth_RejectsMissingAndInvalidTokens(t *testing.T) {
	r := newEngine(Auth(stubValidator{user: &appctx.UserContext{UserID: "u1", Role: appctx.RoleAdmin}}))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, header := range []string{"", "Basic abc", "Bearer nope"} {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code, header)
		assert.Equal(t, apperror.CodeUnauthorized, decodeError(t, w).Code)
	}
}

func TestAuth_PopulatesUserContext(t *testing.T) {
	r := newEngine(Auth(stubValidator{user: &appctx.UserContext{UserID: "u1", Role: appctx.RoleAgent}}))
	r.GET("/x", func(c *gin.Context) {
		c.String(http.StatusOK, appctx.GetUserID(c.Request.Context()))
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "Bearer good")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u1", w.Body.String())
}

func TestPasswordChangeGate(t *testing.T) {
	user := &appctx.UserContext{UserID: "u1", Role: appctx.RoleAdmin, MustChangePassword: true}
	r := newEngine(Auth(stubValidator{user: user}), PasswordChangeGate("/auth/me"))
	r.GET("/auth/me", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/agents", func(c *gin.Context) { c.Status(http.StatusOK) })

	call := func(path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Authorization", "Bearer good")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusOK, call("/auth/me").Code)

	w := call("/agents")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, apperror.CodeMustChangePassword, decodeError(t, w).Code)

	user.MustChangePassword = false
	assert.Equal(t, http.StatusOK, call("/agents").Code)
}

func TestRequireRole(t *testing.T) {
	user := &appctx.UserContext{UserID: "u1", Role: appctx.RoleAgent}
	r := newEngine(Auth(stubValidator{user: user}), RequireRole(appctx.RoleAdmin))
	r.GET("/admin", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer good")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	user.Role = appctx.RoleAdmin
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestErrorHandler_HidesInternalCause(t *testing.T) {
	r := newEngine(Trace())
	r.GET("/boom", func(c *gin.Context) {
		_ = c.Error(errors.New("pq: connection refused at 10.0.0.3"))
	})
	r.GET("/missing", func(c *gin.Context) {
		_ = c.Error(apperror.NewNotFound("agent", "a1"))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "10.0.0.3")
	body := decodeError(t, w)
	assert.Equal(t, apperror.CodeInternal, body.Code)
	assert.NotEmpty(t, body.Details["request_id"])

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/missing", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, apperror.CodeNotFound, decodeError(t, w).Code)
}

func TestRecovery_ReturnsInternalError(t *testing.T) {
	r := gin.New()
	r.Use(ErrorHandler(), Recovery())
	r.GET("/panic", func(c *gin.Context) { panic("nil map") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, apperror.CodeInternal, decodeError(t, w).Code)
}

func TestTrace_EchoesRequestID(t *testing.T) {
	r := newEngine(Trace())
	r.GET("/x", func(c *gin.Context) {
		c.String(http.StatusOK, appctx.GetRequestID(c.Request.Context()))
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(HeaderRequestID, "req-42")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "req-42", w.Body.String())
	assert.Equal(t, "req-42", w.Header().Get(HeaderRequestID))
	assert.NotEmpty(t, w.Header().Get(HeaderTraceID))
}

type memoryStore struct {
	completed map[string][]byte
	failed    map[string]int
	released  []string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{completed: map[string][]byte{}, failed: map[string]int{}}
}

func (s *memoryStore) AcquireKey(_ context.Context, key, _, _, _ string) (*postgres.IdempotencyReplay, error) {
	if body, ok := s.completed[key]; ok {
		return &postgres.IdempotencyReplay{StatusCode: http.StatusCreated, ContentType: "application/json", Body: body}, nil
	}
	return nil, nil
}

func (s *memoryStore) CompleteKey(_ context.Context, key string, _ int, _ string, body []byte) error {
	s.completed[key] = body
	return nil
}

func (s *memoryStore) FailKey(_ context.Context, key string, status int, _ string, _ []byte) error {
	s.failed[key] = status
	return nil
}

func (s *memoryStore) ReleaseKey(_ context.Context, key string) error {
	s.released = append(s.released, key)
	return nil
}

func TestIdempotency_ReplaysCompletedResponse(t *testing.T) {
	store := newMemoryStore()
	calls := 0
	r := newEngine(Idempotency(store))
	r.POST("/payments", func(c *gin.Context) {
		calls++
		CompleteIdempotency(c, http.StatusCreated, "application/json", []byte(`{"id":"p1"}`))
		c.Data(http.StatusCreated, "application/json", []byte(`{"id":"p1"}`))
	})

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/payments", strings.NewReader(`{"amount":"10"}`))
		req.Header.Set(HeaderIdempotencyKey, "k1")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	first := send()
	second := send()

	assert.Equal(t, 1, calls)
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.JSONEq(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replay"))
}

func TestIdempotency_FailuresAreRecordedOrReleased(t *testing.T) {
	store := newMemoryStore()
	r := newEngine(Idempotency(store))
	r.POST("/bad", func(c *gin.Context) {
		_ = c.Error(apperror.NewBusinessRule(apperror.CodeOverpayment, "too much"))
	})
	r.POST("/down", func(c *gin.Context) {
		_ = c.Error(errors.New("db down"))
	})

	for _, path := range []string{"/bad", "/down"} {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(`{}`))
		req.Header.Set(HeaderIdempotencyKey, "key"+path)
		r.ServeHTTP(httptest.NewRecorder(), req)
	}

	assert.Equal(t, http.StatusUnprocessableEntity, store.failed["key/bad"])
	assert.Equal(t, []string{"key/down"}, store.released)
}

func TestIdempotency_IgnoresReadsAndMissingHeader(t *testing.T) {
	store := newMemoryStore()
	r := newEngine(Idempotency(store))
	r.GET("/x", func(c *gin.Context) {
		_, _, ok := idempotencyOf(c)
		assert.False(t, ok)
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(HeaderIdempotencyKey, "k")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
