package middleware

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qa-smart-go/internal/model"
	"qa-smart-go/pkg/token"
)

type fakeUsers struct {
	users     map[string]*model.User
	revoked   map[string]bool
	revokeErr error
}

func (f *fakeUsers) Register(string, string) (*model.User, error) { return nil, errors.New("unused") }
func (f *fakeUsers) Login(string, string) (string, string, error) {
	return "", "", errors.New("unused")
}
func (f *fakeUsers) GetProfile(username string) (*model.User, error) {
	if u, ok := f.users[username]; ok {
		return u, nil
	}
	return nil, errors.New("not found")
}
func (f *fakeUsers) Logout(context.Context, string) error { return nil }
func (f *fakeUsers) IsRevoked(_ context.Context, tok string) (bool, error) {
	return f.revoked[tok], f.revokeErr
}
func (f *fakeUsers) RefreshToken(string) (string, string, error) {
	return "", "", errors.New("unused")
}

func newRouter(jwtManager *token.JWTManager, users *fakeUsers) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestLogger())
	whoami := func(c *gin.Context) {
		if u := CurrentUser(c); u != nil {
			c.String(http.StatusOK, u.Username)
			return
		}
		c.String(http.StatusOK, "anonymous")
	}
	r.GET("/optional", OptionalAuthMiddleware(jwtManager, users), whoami)
	r.GET("/required", AuthMiddleware(jwtManager, users), whoami)
	r.GET("/admin", AuthMiddleware(jwtManager, users), AdminAuthMiddleware(), whoami)
	r.POST("/echo", func(c *gin.Context) {
		raw, _ := io.ReadAll(c.Request.Body)
		c.String(http.StatusOK, string(raw))
	})
	return r
}

func get(r *gin.Engine, path, bearer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddlewares(t *testing.T) {
	jwtManager := token.NewJWTManager("secret", 1, 7)
	users := &fakeUsers{
		users: map[string]*model.User{
			"alice": {ID: 1, Username: "alice", Role: model.RoleAdmin},
			"bob":   {ID: 2, Username: "bob", Role: model.RoleUser},
		},
		revoked: map[string]bool{},
	}
	r := newRouter(jwtManager, users)

	alice, err := jwtManager.GenerateToken(1, "alice", model.RoleAdmin)
	require.NoError(t, err)
	bob, err := jwtManager.GenerateToken(2, "bob", model.RoleUser)
	require.NoError(t, err)
	ghost, err := jwtManager.GenerateToken(3, "ghost", model.RoleUser)
	require.NoError(t, err)

	w := get(r, "/optional", "")
	assert.Equal(t, "anonymous", w.Body.String())
	w = get(r, "/optional", alice)
	assert.Equal(t, "alice", w.Body.String())
	w = get(r, "/optional", "garbage")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = get(r, "/required", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = get(r, "/required", ghost)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = get(r, "/admin", bob)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = get(r, "/admin", alice)
	assert.Equal(t, http.StatusOK, w.Code)

	users.revoked[alice] = true
	w = get(r, "/required", alice)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// 黑名单不可用时拒绝，已登出的 token 不能借机通过
	users.revokeErr = errors.New("redis down")
	w = get(r, "/required", alice)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	w = get(r, "/optional", bob)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	w = get(r, "/optional", "")
	assert.Equal(t, "anonymous", w.Body.String())

	users.revokeErr = nil
	w = get(r, "/required", bob)
	assert.Equal(t, "bob", w.Body.String())
}

func TestRequestLogger_PreservesBody(t *testing.T) {
	r := newRouter(token.NewJWTManager("secret", 1, 7), &fakeUsers{})
	body := strings.Repeat("x", maxLoggedBody+10)

	req := httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, body, w.Body.String())
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short"))
	long := truncate(strings.Repeat("y", maxLoggedBody*2))
	assert.True(t, strings.HasSuffix(long, "...(truncated)"))
	assert.Len(t, long, maxLoggedBody+len("...(truncated)"))
}

func TestRedacted(t *testing.T) {
	assert.True(t, redacted("/api/v1/users/login"))
	assert.True(t, redacted("/api/v1/auth/refreshToken"))
	assert.False(t, redacted("/api/v1/categories/add"))
}
