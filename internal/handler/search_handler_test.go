package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"qa-smart-go/internal/model"
	"qa-smart-go/internal/service"
)

type stubSearch struct {
	gotQuery, gotCategory string
	gotSize               int
	err                   error
}

func (s *stubSearch) IndexQuestion(context.Context, *model.Question) error { return nil }

func (s *stubSearch) SearchQuestions(_ context.Context, query, category string, size int) ([]model.QuestionHit, error) {
	s.gotQuery, s.gotCategory, s.gotSize = query, category, size
	if s.err != nil {
		return nil, s.err
	}
	return []model.QuestionHit{{QuestionID: 1, Title: "Go", Tags: []string{"tag9"}, Score: 2}}, nil
}

func TestSearchHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	stub := &stubSearch{}
	r := gin.New()
	r.GET("/search", NewSearchHandler(stub).SearchQuestions)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/search?q=go&category=C9&size=5", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "go", stub.gotQuery)
	assert.Equal(t, "C9", stub.gotCategory)
	assert.Equal(t, 5, stub.gotSize)
	assert.Contains(t, w.Body.String(), `"questionId":1`)

	stub.err = service.ErrCategoryNotFound
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/search?category=Nope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	stub.err = errors.New("es down")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/search?q=x", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
