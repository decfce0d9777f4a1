package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"qa-smart-go/internal/middleware"
	"qa-smart-go/internal/model"
	"qa-smart-go/internal/service"
	"qa-smart-go/pkg/log"
)

// CategoryHandler 负责分类树的查看与管理接口。
// 管理接口只接受 AJAX 发起的 POST 请求，响应统一为 {"status", "message"} 结构。
type CategoryHandler struct {
	categoryService service.CategoryService
	settings        service.SettingsService
}

// NewCategoryHandler 创建一个新的 CategoryHandler 实例。
func NewCategoryHandler(categoryService service.CategoryService, settings service.SettingsService) *CategoryHandler {
	return &CategoryHandler{categoryService: categoryService, settings: settings}
}

// access 描述一个管理接口的访问要求。
type access struct {
	featureGated bool
	// roles 为空表示允许匿名访问
	roles []string
}

var (
	adminOnly      = access{featureGated: true, roles: []string{model.RoleAdmin}}
	adminOrMod     = access{featureGated: true, roles: []string{model.RoleAdmin, model.RoleModerator}}
	anyoneUngated  = access{}
	errMustUsePost = &service.PermissionError{Message: service.MsgMustUsePost}
	errAnonymous   = &service.PermissionError{Message: service.MsgAnonymous}
	errForbidden   = &service.PermissionError{Message: service.MsgForbidden}
)

// guard 依次检查功能开关、AJAX、请求方法、登录状态与角色。返回 false 时响应已写出。
func (h *CategoryHandler) guard(c *gin.Context, a access) (*model.User, bool) {
	if a.featureGated && !h.settings.Categories(c.Request.Context()).Enabled {
		c.AbortWithStatus(http.StatusNotFound)
		return nil, false
	}
	if !isAjax(c) {
		c.Redirect(http.StatusFound, "/")
		c.Abort()
		return nil, false
	}
	if c.Request.Method != http.MethodPost {
		writeCategoryError(c, errMustUsePost)
		return nil, false
	}
	user := middleware.CurrentUser(c)
	if len(a.roles) == 0 {
		return user, true
	}
	if user == nil {
		writeCategoryError(c, errAnonymous)
		return nil, false
	}
	for _, role := range a.roles {
		if user.Role == role {
			return user, true
		}
	}
	writeCategoryError(c, errForbidden)
	return nil, false
}

// Tree 返回序列化后的分类树，没有任何分类时返回 {}。
func (h *CategoryHandler) Tree(c *gin.Context) {
	if !h.settings.Categories(c.Request.Context()).Enabled {
		c.AbortWithStatus(http.StatusNotFound)
		return
	}
	root, err := h.categoryService.GenerateTree(c.Request.Context())
	if err != nil {
		log.Errorf("[CategoryHandler] 生成分类树失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "获取分类树失败"})
		return
	}
	if root == nil {
		c.JSON(http.StatusOK, gin.H{})
		return
	}
	c.JSON(http.StatusOK, root)
}

// AddCategoryRequest 定义了新建分类的请求体。parent 为空或 0 时创建根节点。
type AddCategoryRequest struct {
	Name   string `json:"name"`
	Parent *uint  `json:"parent"`
}

// Add 新建分类。
func (h *CategoryHandler) Add(c *gin.Context) {
	user, ok := h.guard(c, adminOnly)
	if !ok {
		return
	}
	var req AddCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeCategoryError(c, &service.ValidationError{Message: service.MsgInvalidNewName})
		return
	}
	var parentID uint
	if req.Parent != nil {
		parentID = *req.Parent
	}
	if err := h.categoryService.AddCategory(c.Request.Context(), user, req.Name, parentID); err != nil {
		writeCategoryError(c, err)
		return
	}
	writeStatus(c, service.StatusSuccess)
}

// RenameCategoryRequest 定义了重命名分类的请求体。
type RenameCategoryRequest struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

// Rename 重命名分类。
func (h *CategoryHandler) Rename(c *gin.Context) {
	user, ok := h.guard(c, adminOnly)
	if !ok {
		return
	}
	var req RenameCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeCategoryError(c, &service.ValidationError{Message: service.MsgMissingOrInvalid})
		return
	}
	status, err := h.categoryService.RenameCategory(c.Request.Context(), user, req.ID, req.Name)
	if err != nil {
		writeCategoryError(c, err)
		return
	}
	writeStatus(c, status)
}

// TagCategoryRequest 定义了标签与分类关联操作的请求体。
// cat_id 为 0 视为已提供，为 null 或缺失视为未提供。
type TagCategoryRequest struct {
	TagID uint  `json:"tag_id"`
	CatID *uint `json:"cat_id"`
}

// AddTag 将标签加入分类。
func (h *CategoryHandler) AddTag(c *gin.Context) {
	user, ok := h.guard(c, adminOnly)
	if !ok {
		return
	}
	var req TagCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeCategoryError(c, &service.ValidationError{Message: service.MsgMissingParameter})
		return
	}
	if err := h.categoryService.AddTagToCategory(c.Request.Context(), user, req.TagID, req.CatID); err != nil {
		writeCategoryError(c, err)
		return
	}
	writeStatus(c, service.StatusSuccess)
}

// RemoveTag 解除标签与分类的关联，管理员与版主可用。
func (h *CategoryHandler) RemoveTag(c *gin.Context) {
	user, ok := h.guard(c, adminOrMod)
	if !ok {
		return
	}
	var req TagCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeCategoryError(c, &service.ValidationError{Message: service.MsgMissingParameter})
		return
	}
	status, err := h.categoryService.RemoveTagFromCategory(c.Request.Context(), user, req.TagID, req.CatID)
	if err != nil {
		writeCategoryError(c, err)
		return
	}
	writeStatus(c, status)
}

// TagCategoriesRequest 定义了查询标签所属分类的请求体。
type TagCategoriesRequest struct {
	TagID uint `json:"tag_id"`
}

// TagCategories 返回标签所属的分类，匿名用户也可调用。
func (h *CategoryHandler) TagCategories(c *gin.Context) {
	if _, ok := h.guard(c, anyoneUngated); !ok {
		return
	}
	var req TagCategoriesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeCategoryError(c, &service.ValidationError{Message: service.MsgMissingTagID})
		return
	}
	cats, err := h.categoryService.GetTagCategories(req.TagID)
	if err != nil {
		writeCategoryError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": service.StatusSuccess, "cats": cats})
}

// DeleteCategoryRequest 定义了删除分类的请求体。token 来自上一次 need_confirmation 响应。
type DeleteCategoryRequest struct {
	ID    uint    `json:"id"`
	Token *string `json:"token"`
}

// Delete 删除分类，关联了标签的分类需要二次确认。
func (h *CategoryHandler) Delete(c *gin.Context) {
	user, ok := h.guard(c, adminOnly)
	if !ok {
		return
	}
	var req DeleteCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeCategoryError(c, &service.ValidationError{Message: service.MsgMissingOrInvalid})
		return
	}
	result, err := h.categoryService.DeleteCategory(c.Request.Context(), user, req.ID, req.Token)
	if err != nil {
		writeCategoryError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// List 以纯文本返回全部分类，每行为 "名称|ID"，供前端自动补全使用。
func (h *CategoryHandler) List(c *gin.Context) {
	if !h.settings.Categories(c.Request.Context()).Enabled {
		c.AbortWithStatus(http.StatusNotFound)
		return
	}
	if c.Request.Method != http.MethodGet {
		c.Header("Allow", http.MethodGet)
		c.AbortWithStatus(http.StatusMethodNotAllowed)
		return
	}
	user := middleware.CurrentUser(c)
	if user == nil {
		c.String(http.StatusForbidden, service.MsgAnonymous)
		return
	}
	if !user.IsAdministrator() || !isAjax(c) {
		c.String(http.StatusForbidden, service.MsgForbidden)
		return
	}

	cats, err := h.categoryService.ListCategories()
	if err != nil {
		log.Errorf("[CategoryHandler] 获取分类列表失败: %v", err)
		c.String(http.StatusInternalServerError, service.MsgFallback)
		return
	}
	var b strings.Builder
	for _, cat := range cats {
		fmt.Fprintf(&b, "%s|%d\n", cat.Name, cat.ID)
	}
	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(b.String()))
}

func isAjax(c *gin.Context) bool {
	return c.GetHeader("X-Requested-With") == "XMLHttpRequest"
}

func writeStatus(c *gin.Context, status string) {
	c.JSON(http.StatusOK, gin.H{"status": status})
}

// writeCategoryError 将错误转换为 {"status": "error", "message": ...} 响应。
// 功能关闭与分类不存在转换为 404。
func writeCategoryError(c *gin.Context, err error) {
	if errors.Is(err, service.ErrFeatureDisabled) || errors.Is(err, service.ErrCategoryNotFound) {
		c.AbortWithStatus(http.StatusNotFound)
		return
	}

	message := err.Error()
	if !service.IsValidation(err) && !service.IsPermission(err) {
		log.Errorf("[CategoryHandler] %s %s 处理失败: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	if message == "" {
		message = service.MsgFallback
	}
	c.AbortWithStatusJSON(http.StatusOK, gin.H{"status": service.StatusError, "message": message})
}
