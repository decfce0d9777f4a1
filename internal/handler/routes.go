package handler

import (
	"github.com/gin-gonic/gin"

	"qa-smart-go/internal/middleware"
	"qa-smart-go/internal/service"
	"qa-smart-go/pkg/token"
)

// Services 汇总了注册路由所需的全部 service。
// Search 为 nil 时不注册搜索路由；Export 为 nil 时导出接口返回 503。
type Services struct {
	JWT      *token.JWTManager
	User     service.UserService
	Admin    service.AdminService
	Settings service.SettingsService
	Category service.CategoryService
	Filter   service.FilterService
	Question service.QuestionService
	Search   service.SearchService
	Export   service.ExportService
}

// RegisterRoutes 在 r 上注册 /api/v1 下的所有路由。
func RegisterRoutes(r *gin.Engine, s Services) {
	userHandler := NewUserHandler(s.User)
	categoryHandler := NewCategoryHandler(s.Category, s.Settings)
	listingHandler := NewListingHandler(s.Filter)
	questionHandler := NewQuestionHandler(s.Question)
	settingsHandler := NewSettingsHandler(s.Settings)
	adminHandler := NewAdminHandler(s.Admin, s.Export)

	authRequired := middleware.AuthMiddleware(s.JWT, s.User)
	authOptional := middleware.OptionalAuthMiddleware(s.JWT, s.User)

	apiV1 := r.Group("/api/v1")
	{
		// Auth 路由组
		auth := apiV1.Group("/auth")
		{
			auth.POST("/refreshToken", userHandler.RefreshToken)
		}

		users := apiV1.Group("/users")
		{
			// 无需认证的路由 (公开访问)
			users.POST("/register", userHandler.Register)
			users.POST("/login", userHandler.Login)

			// 需要认证的路由 (仅限登录用户访问)
			authed := users.Group("/")
			authed.Use(authRequired)
			{
				authed.GET("/me", userHandler.GetProfile)
				authed.POST("/logout", userHandler.Logout)
			}
		}

		// 分类路由组：管理接口由 handler 自己校验方法与权限，因此注册为 Any
		categories := apiV1.Group("/categories")
		categories.Use(authOptional)
		{
			categories.GET("/tree", categoryHandler.Tree)
			categories.Any("/add", categoryHandler.Add)
			categories.Any("/rename", categoryHandler.Rename)
			categories.Any("/delete", categoryHandler.Delete)
			categories.Any("/list", categoryHandler.List)
			categories.Any("/tags/add", categoryHandler.AddTag)
			categories.Any("/tags/remove", categoryHandler.RemoveTag)
			categories.Any("/tags/categories", categoryHandler.TagCategories)
		}

		// 问题与标签列表，可按分类子树过滤
		questions := apiV1.Group("/questions")
		{
			questions.GET("", listingHandler.Questions)
			questions.GET("/:category", listingHandler.Questions)
			questions.POST("", authRequired, questionHandler.Ask)
			questions.PUT("/:id/tags", authRequired, questionHandler.Retag)
		}
		tags := apiV1.Group("/tags")
		{
			tags.GET("", listingHandler.Tags)
			tags.GET("/:category", listingHandler.Tags)
		}

		if s.Search != nil {
			apiV1.GET("/search/questions", NewSearchHandler(s.Search).SearchQuestions)
		}

		admin := apiV1.Group("/admin")
		// 管理员路由组，需要同时通过认证和管理员授权两个中间件
		admin.Use(authRequired, middleware.AdminAuthMiddleware())
		{
			admin.GET("/users/list", adminHandler.ListUsers)
			admin.PUT("/users/:userId/role", adminHandler.SetUserRole)
			admin.GET("/settings/categories", settingsHandler.GetCategories)
			admin.PUT("/settings/categories", settingsHandler.UpdateCategories)
			admin.POST("/categories/export", adminHandler.ExportCategoryTree)
		}
	}
}
