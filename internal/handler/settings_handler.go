package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"qa-smart-go/internal/model"
	"qa-smart-go/internal/service"
	"qa-smart-go/pkg/log"
)

// SettingsHandler 负责分类功能的运行时配置。
type SettingsHandler struct {
	settings service.SettingsService
}

// NewSettingsHandler 创建一个新的 SettingsHandler 实例。
func NewSettingsHandler(settings service.SettingsService) *SettingsHandler {
	return &SettingsHandler{settings: settings}
}

// GetCategories 返回当前生效的分类配置。
func (h *SettingsHandler) GetCategories(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": h.settings.Categories(c.Request.Context())})
}

// UpdateCategories 修改分类功能开关或最大深度，未提供的字段保持不变。
func (h *SettingsHandler) UpdateCategories(c *gin.Context) {
	var req model.CategorySettingsOverride
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "无效的请求负载", "data": nil})
		return
	}
	settings, err := h.settings.UpdateCategories(c.Request.Context(), req)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	log.Infof("分类配置已更新: enabled=%t, maxTreeDepth=%d", settings.Enabled, settings.MaxTreeDepth)
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": settings})
}
