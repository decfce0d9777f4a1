package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"qa-smart-go/internal/service"
	"qa-smart-go/pkg/log"
)

// SearchHandler 负责处理问题搜索相关的 API 请求。
type SearchHandler struct {
	searchService service.SearchService
}

// NewSearchHandler 创建一个新的 SearchHandler 实例。
func NewSearchHandler(searchService service.SearchService) *SearchHandler {
	return &SearchHandler{searchService: searchService}
}

// SearchQuestions 处理问题全文搜索请求，可用 category 参数限定分类子树。
func (h *SearchHandler) SearchQuestions(c *gin.Context) {
	query := c.Query("q")
	category := c.Query("category")
	size, _ := strconv.Atoi(c.DefaultQuery("size", "10"))

	log.Infof("[SearchHandler] 收到搜索请求, query: '%s', category: '%s', size: %d", query, category, size)
	hits, err := h.searchService.SearchQuestions(c.Request.Context(), query, category, size)
	if err != nil {
		if errors.Is(err, service.ErrFeatureDisabled) || errors.Is(err, service.ErrCategoryNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"code": http.StatusNotFound, "message": "分类不存在", "data": nil})
			return
		}
		log.Errorf("[SearchHandler] 搜索失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "搜索失败", "data": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": hits})
}
