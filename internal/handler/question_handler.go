package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"qa-smart-go/internal/middleware"
	"qa-smart-go/internal/service"
	"qa-smart-go/pkg/log"
)

// QuestionHandler 负责提问与修改问题标签。
type QuestionHandler struct {
	questionService service.QuestionService
}

// NewQuestionHandler 创建一个新的 QuestionHandler 实例。
func NewQuestionHandler(questionService service.QuestionService) *QuestionHandler {
	return &QuestionHandler{questionService: questionService}
}

// AskRequest 定义了提问的请求体，tags 为空格分隔的标签名。
type AskRequest struct {
	Title string `json:"title" binding:"required"`
	Body  string `json:"body"`
	Tags  string `json:"tags"`
}

// Ask 创建一个新问题。
func (h *QuestionHandler) Ask(c *gin.Context) {
	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("Ask: Invalid request payload, error: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "无效的请求负载：标题不能为空", "data": nil})
		return
	}

	q, err := h.questionService.Ask(c.Request.Context(), middleware.CurrentUser(c), req.Title, req.Body, req.Tags)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": service.SummarizeQuestion(q)})
}

// RetagRequest 定义了修改问题标签的请求体。
type RetagRequest struct {
	Tags string `json:"tags"`
}

// Retag 替换问题的标签集合。
func (h *QuestionHandler) Retag(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "无效的问题 ID", "data": nil})
		return
	}
	var req RetagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "无效的请求负载", "data": nil})
		return
	}

	q, err := h.questionService.Retag(c.Request.Context(), middleware.CurrentUser(c), uint(id), req.Tags)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": service.SummarizeQuestion(q)})
}

// writeServiceError 将 service 层的错误映射为 {"code", "message", "data"} 响应。
func writeServiceError(c *gin.Context, err error) {
	switch {
	case service.IsValidation(err):
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": err.Error(), "data": nil})
	case service.IsPermission(err):
		c.JSON(http.StatusForbidden, gin.H{"code": http.StatusForbidden, "message": err.Error(), "data": nil})
	default:
		log.Errorf("%s %s 处理失败: %v", c.Request.Method, c.Request.URL.Path, err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "服务器内部错误", "data": nil})
	}
}
