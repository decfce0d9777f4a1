package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"qa-smart-go/internal/middleware"
	"qa-smart-go/internal/service"
	"qa-smart-go/pkg/log"
)

// AdminHandler 负责处理管理员相关的 API 请求。
type AdminHandler struct {
	adminService  service.AdminService
	exportService service.ExportService
}

// NewAdminHandler 创建一个新的 AdminHandler 实例。exportService 可以为 nil，此时导出接口返回 503。
func NewAdminHandler(adminService service.AdminService, exportService service.ExportService) *AdminHandler {
	return &AdminHandler{adminService: adminService, exportService: exportService}
}

// ListUsers 处理分页获取用户列表的请求。
func (h *AdminHandler) ListUsers(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("size", "10"))

	userList, err := h.adminService.ListUsers(page, size)
	if err != nil {
		log.Error("ListUsers: Failed to list users", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "获取用户列表失败", "data": nil})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data":    userList,
	})
}

// SetUserRoleRequest 定义了修改用户角色的请求体结构。
type SetUserRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

// SetUserRole 修改指定用户的角色。
func (h *AdminHandler) SetUserRole(c *gin.Context) {
	userID, err := strconv.ParseUint(c.Param("userId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "无效的用户 ID", "data": nil})
		return
	}
	var req SetUserRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "无效的请求负载", "data": nil})
		return
	}

	if err := h.adminService.SetUserRole(uint(userID), req.Role); err != nil {
		writeServiceError(c, err)
		return
	}
	log.Infof("Admin user '%s' set role of user ID %d to %s", middleware.CurrentUser(c).Username, userID, req.Role)
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "角色修改成功", "data": nil})
}

// ExportCategoryTree 将分类树导出到对象存储并返回下载链接。
func (h *AdminHandler) ExportCategoryTree(c *gin.Context) {
	if h.exportService == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"code": http.StatusServiceUnavailable, "message": "对象存储未配置", "data": nil})
		return
	}
	result, err := h.exportService.ExportTree(c.Request.Context())
	if err != nil {
		log.Error("ExportCategoryTree: Failed to export", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "导出分类树失败", "data": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": result})
}
