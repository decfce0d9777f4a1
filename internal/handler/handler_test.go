package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"qa-smart-go/internal/config"
	"qa-smart-go/internal/model"
	"qa-smart-go/internal/repository"
	"qa-smart-go/internal/service"
	"qa-smart-go/internal/testutil"
	"qa-smart-go/pkg/token"
)

const anonymous = ""

type testServer struct {
	*testutil.Fixture
	db       *gorm.DB
	router   *gin.Engine
	jwt      *token.JWTManager
	users    service.UserService
	settings service.SettingsService
	bearer   map[string]string
}

func newTestServer(t *testing.T, seed bool) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.NewDB(t)
	client, _ := testutil.NewRedis(t)

	s := &testServer{
		db:     db,
		jwt:    token.NewJWTManager("test-secret", 1, 7),
		bearer: make(map[string]string),
	}
	if seed {
		s.Fixture = testutil.SeedTree(t, db)
	} else {
		s.Fixture = &testutil.Fixture{Admin: testutil.MustUser(t, db, "admin", model.RoleAdmin)}
	}
	mod := testutil.MustUser(t, db, "mod", model.RoleModerator)
	plain := testutil.MustUser(t, db, "user", model.RoleUser)
	for _, u := range []*model.User{s.Admin, mod, plain} {
		tok, err := s.jwt.GenerateToken(u.ID, u.Username, u.Role)
		require.NoError(t, err)
		s.bearer[u.Username] = tok
	}

	userRepo := repository.NewUserRepository(db)
	categoryRepo := repository.NewCategoryRepository(db)
	tagRepo := repository.NewTagRepository(db)
	questionRepo := repository.NewQuestionRepository(db)

	s.users = service.NewUserService(userRepo, s.jwt, client)
	s.settings = service.NewSettingsService(
		config.CategoriesConfig{Enabled: true, MaxTreeDepth: 4},
		repository.NewSettingsRepository(client),
	)
	categories := service.NewCategoryService(categoryRepo, tagRepo,
		repository.NewTreeCacheRepository(client, 0), s.settings,
		token.NewCategoryTokenGenerator("test-secret"), nil)
	filter := service.NewFilterService(categoryRepo, tagRepo, questionRepo, s.settings)

	s.router = gin.New()
	RegisterRoutes(s.router, Services{
		JWT:      s.jwt,
		User:     s.users,
		Admin:    service.NewAdminService(userRepo),
		Settings: s.settings,
		Category: categories,
		Filter:   filter,
		Question: service.NewQuestionService(questionRepo, tagRepo, nil),
	})
	return s
}

func (s *testServer) disableCategories(t *testing.T) {
	t.Helper()
	off := false
	_, err := s.settings.UpdateCategories(context.Background(), model.CategorySettingsOverride{Enabled: &off})
	require.NoError(t, err)
}

func (s *testServer) request(method, path, who string, body interface{}, ajax bool) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else {
			_ = json.NewEncoder(&buf).Encode(body)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if ajax {
		req.Header.Set("X-Requested-With", "XMLHttpRequest")
	}
	if who != anonymous {
		req.Header.Set("Authorization", "Bearer "+s.bearer[who])
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

// ajax 发起管理接口使用的 AJAX POST 请求。
func (s *testServer) ajax(path, who string, body interface{}) *httptest.ResponseRecorder {
	return s.request(http.MethodPost, path, who, body, true)
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestUserRoutes(t *testing.T) {
	s := newTestServer(t, false)

	w := s.request(http.MethodPost, "/api/v1/users/register", anonymous, gin.H{"username": "dave", "password": "pw"}, false)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.request(http.MethodPost, "/api/v1/users/register", anonymous, gin.H{"username": "dave", "password": "pw"}, false)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.request(http.MethodPost, "/api/v1/users/login", anonymous, gin.H{"username": "dave", "password": "bad"}, false)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.request(http.MethodPost, "/api/v1/users/login", anonymous, gin.H{"username": "dave", "password": "pw"}, false)
	require.Equal(t, http.StatusOK, w.Code)
	data := decode(t, w)["data"].(map[string]interface{})
	s.bearer["dave"] = data["token"].(string)

	w = s.request(http.MethodGet, "/api/v1/users/me", "dave", nil, false)
	require.Equal(t, http.StatusOK, w.Code)
	me := decode(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "dave", me["username"])
	assert.Equal(t, model.RoleUser, me["role"])

	w = s.request(http.MethodPost, "/api/v1/auth/refreshToken", anonymous, gin.H{"refreshToken": data["refreshToken"]}, false)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.request(http.MethodPost, "/api/v1/users/logout", "dave", nil, false)
	require.Equal(t, http.StatusOK, w.Code)
	w = s.request(http.MethodGet, "/api/v1/users/me", "dave", nil, false)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuth_RejectsBadTokens(t *testing.T) {
	s := newTestServer(t, true)

	s.bearer["forged"] = "not-a-token"
	w := s.ajax("/api/v1/categories/tags/categories", "forged", gin.H{"tag_id": s.Tags["tag4"].ID})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	refresh, err := s.jwt.GenerateRefreshToken(s.Admin.ID, s.Admin.Username, s.Admin.Role)
	require.NoError(t, err)
	s.bearer["refresh"] = refresh
	w = s.request(http.MethodGet, "/api/v1/users/me", "refresh", nil, false)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminRoutes(t *testing.T) {
	s := newTestServer(t, true)

	w := s.request(http.MethodGet, "/api/v1/admin/users/list?page=1&size=10", "user", nil, false)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = s.request(http.MethodGet, "/api/v1/admin/users/list", anonymous, nil, false)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.request(http.MethodGet, "/api/v1/admin/users/list?page=1&size=10", "admin", nil, false)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(3), decode(t, w)["data"].(map[string]interface{})["totalElements"])

	w = s.request(http.MethodPut, "/api/v1/admin/settings/categories", "admin", gin.H{"maxTreeDepth": 0}, false)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.request(http.MethodPut, "/api/v1/admin/settings/categories", "admin", gin.H{"enabled": false}, false)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]interface{}{"enabled": false, "maxTreeDepth": float64(4)}, decode(t, w)["data"])

	w = s.request(http.MethodPost, "/api/v1/admin/categories/export", "admin", nil, false)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	// 没有配置搜索时不注册搜索路由
	w = s.request(http.MethodGet, "/api/v1/search/questions?q=go", anonymous, nil, false)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestQuestionRoutes(t *testing.T) {
	s := newTestServer(t, true)

	w := s.request(http.MethodPost, "/api/v1/questions", anonymous, gin.H{"title": "x"}, false)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.request(http.MethodPost, "/api/v1/questions", "user", gin.H{"title": "Why?", "tags": "tagA"}, false)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	id := uint(decode(t, w)["data"].(map[string]interface{})["id"].(float64))

	w = s.request(http.MethodPost, "/api/v1/questions", "user", gin.H{"title": "<i>Why?</i>", "tags": "<b>"}, false)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	asked := decode(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "&lt;i&gt;Why?&lt;/i&gt;", asked["title"])
	assert.Equal(t, []interface{}{"&lt;b&gt;"}, asked["tags"])
	marked := itoa(uint(asked["id"].(float64)))
	w = s.request(http.MethodPut, "/api/v1/questions/"+marked+"/tags", "user", gin.H{"tags": "<u> tag2"}, false)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.ElementsMatch(t, []interface{}{"&lt;u&gt;", "tag2"}, decode(t, w)["data"].(map[string]interface{})["tags"])

	w = s.request(http.MethodGet, "/api/v1/questions/C10", anonymous, nil, false)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), decode(t, w)["data"].(map[string]interface{})["totalElements"])

	w = s.request(http.MethodPut, "/api/v1/questions/"+itoa(s.Questions["Q1"].ID)+"/tags", "user", gin.H{"tags": "tag2"}, false)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.request(http.MethodPut, "/api/v1/questions/"+itoa(id)+"/tags", "user", gin.H{"tags": "tag2"}, false)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.request(http.MethodGet, "/api/v1/questions/C10", anonymous, nil, false)
	assert.Equal(t, float64(1), decode(t, w)["data"].(map[string]interface{})["totalElements"])

	w = s.request(http.MethodPut, "/api/v1/questions/abc/tags", "user", gin.H{"tags": "tag2"}, false)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListingRoutes(t *testing.T) {
	s := newTestServer(t, true)

	w := s.request(http.MethodGet, "/api/v1/questions/C9?page=1&size=1", anonymous, nil, false)
	require.Equal(t, http.StatusOK, w.Code)
	data := decode(t, w)["data"].(map[string]interface{})
	assert.Equal(t, float64(2), data["totalElements"])
	assert.Equal(t, float64(2), data["totalPages"])
	assert.Len(t, data["content"], 1)

	w = s.request(http.MethodGet, "/api/v1/tags/C2", anonymous, nil, false)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["data"], 3)

	w = s.request(http.MethodGet, "/api/v1/questions/Nope", anonymous, nil, false)
	assert.Equal(t, http.StatusNotFound, w.Code)

	s.disableCategories(t)
	w = s.request(http.MethodGet, "/api/v1/questions/C9", anonymous, nil, false)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = s.request(http.MethodGet, "/api/v1/tags/C9", anonymous, nil, false)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = s.request(http.MethodGet, "/api/v1/questions", anonymous, nil, false)
	assert.Equal(t, http.StatusOK, w.Code)
}
