package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"qa-smart-go/internal/service"
	"qa-smart-go/pkg/log"
)

// ListingHandler 负责问题与标签列表，路径中可带分类名以按分类子树过滤。
type ListingHandler struct {
	filterService service.FilterService
}

// NewListingHandler 创建一个新的 ListingHandler 实例。
func NewListingHandler(filterService service.FilterService) *ListingHandler {
	return &ListingHandler{filterService: filterService}
}

// Questions 分页返回问题列表。
func (h *ListingHandler) Questions(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("size", "20"))

	result, err := h.filterService.ListQuestions(c.Request.Context(), c.Param("category"), page, size)
	if err != nil {
		writeListingError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": result})
}

// Tags 返回被使用过的标签列表。
func (h *ListingHandler) Tags(c *gin.Context) {
	tags, err := h.filterService.ListTags(c.Request.Context(), c.Param("category"))
	if err != nil {
		writeListingError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": tags})
}

func writeListingError(c *gin.Context, err error) {
	if errors.Is(err, service.ErrFeatureDisabled) || errors.Is(err, service.ErrCategoryNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"code": http.StatusNotFound, "message": "分类不存在", "data": nil})
		return
	}
	log.Errorf("[ListingHandler] %s 查询失败: %v", c.Request.URL.Path, err)
	c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "获取列表失败", "data": nil})
}
