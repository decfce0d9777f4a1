// Package main 是应用程序的入口点。
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"qa-smart-go/internal/config"
	"qa-smart-go/internal/handler"
	"qa-smart-go/internal/middleware"
	"qa-smart-go/internal/model"
	"qa-smart-go/internal/repository"
	"qa-smart-go/internal/service"
	"qa-smart-go/pkg/database"
	"qa-smart-go/pkg/es"
	"qa-smart-go/pkg/kafka"
	"qa-smart-go/pkg/log"
	"qa-smart-go/pkg/storage"
	"qa-smart-go/pkg/token"
)

// treeCacheTTL 是分类树缓存的兜底过期时间，正常情况下由变更事件主动失效。
const treeCacheTTL = 30 * time.Minute

func main() {
	// 1. 初始化配置
	configPath := os.Getenv("QA_CONFIG")
	if configPath == "" {
		configPath = "./configs/config.yaml"
	}
	config.Init(configPath)
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync() // 确保在程序退出时刷新所有缓冲的日志条目
	log.Info("日志记录器初始化成功")

	// 3. 初始化数据库、Redis 与外部组件
	database.InitDB(cfg.Database)
	if err := database.DB.AutoMigrate(&model.User{}, &model.Category{}, &model.Tag{}, &model.Question{}); err != nil {
		log.Fatal("数据库迁移失败", err)
	}
	database.InitRedis(cfg.Database.Redis)
	storage.InitMinIO(cfg.MinIO)
	if err := es.InitES(cfg.Elasticsearch); err != nil {
		log.Errorf("es 初始化失败 %s", err)
		return
	}
	producer := kafka.NewProducer(cfg.Kafka)
	defer producer.Close()

	// 4. 初始化 Repository
	userRepo := repository.NewUserRepository(database.DB)
	categoryRepo := repository.NewCategoryRepository(database.DB)
	tagRepo := repository.NewTagRepository(database.DB)
	questionRepo := repository.NewQuestionRepository(database.DB)
	settingsRepo := repository.NewSettingsRepository(database.RDB)
	treeCache := repository.NewTreeCacheRepository(database.RDB, treeCacheTTL)

	// 5. 初始化 Service (依赖注入)
	jwtManager := token.NewJWTManager(cfg.JWT.Secret, cfg.JWT.AccessTokenExpireHours, cfg.JWT.RefreshTokenExpireDays)
	categoryTokens := token.NewCategoryTokenGenerator(cfg.Categories.TokenSecret)
	userService := service.NewUserService(userRepo, jwtManager, database.RDB)
	adminService := service.NewAdminService(userRepo)
	settingsService := service.NewSettingsService(cfg.Categories, settingsRepo)
	categoryService := service.NewCategoryService(categoryRepo, tagRepo, treeCache, settingsService, categoryTokens, producer)
	filterService := service.NewFilterService(categoryRepo, tagRepo, questionRepo, settingsService)
	searchService := service.NewSearchService(es.ESClient, cfg.Elasticsearch.IndexName, filterService)
	questionService := service.NewQuestionService(questionRepo, tagRepo, searchService)
	exportService := service.NewExportService(categoryService, storage.NewMinIOStore(storage.MinioClient, cfg.MinIO.BucketName))

	// 6. 创建顶层分类
	if cfg.Categories.SeedRoot {
		if err := categoryService.EnsureRoot(cfg.Categories.TopLevelName); err != nil {
			log.Errorf("创建顶层分类失败: %v", err)
		}
	}

	// 7. 启动后台 Kafka 消费者：其他实例的分类变更同样需要让本实例的缓存失效
	consumerCtx, stopConsumer := context.WithCancel(context.Background())
	defer stopConsumer()
	consumer := kafka.NewConsumer(cfg.Kafka, func(ctx context.Context, event model.CategoryEvent) error {
		return treeCache.Invalidate(ctx)
	}, database.RDB)
	go consumer.Run(consumerCtx)

	// 8. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New() // 使用 New() 创建一个不带默认中间件的引擎
	// 添加我们自定义的日志中间件和 Gin 的 Recovery 中间件
	r.Use(middleware.RequestLogger(), gin.Recovery())

	// 9. 注册路由
	handler.RegisterRoutes(r, handler.Services{
		JWT:      jwtManager,
		User:     userService,
		Admin:    adminService,
		Settings: settingsService,
		Category: categoryService,
		Filter:   filterService,
		Question: questionService,
		Search:   searchService,
		Export:   exportService,
	})

	// 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	// 等待中断信号以实现优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	// 设置一个5秒的超时上下文
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// 关闭 HTTP 服务器
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("HTTP 服务器关闭失败: %v", err)
	}

	// 停止 Kafka 消费者
	stopConsumer()
	log.Info("服务已优雅关闭")
}
