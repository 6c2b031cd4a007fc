package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"agri_market_v1/internal/config"
	"agri_market_v1/internal/controller"
	"agri_market_v1/internal/middleware"
	"agri_market_v1/internal/model"
	"agri_market_v1/internal/repository"
	"agri_market_v1/internal/router"
	"agri_market_v1/internal/service"
	"agri_market_v1/internal/task"
	"agri_market_v1/pkg/database"
	"agri_market_v1/pkg/logger"
)

func main() {
	// 1. 加载配置
	cfg := config.MustLoad()

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	if cfg.Env != "local" {
		gin.SetMode(gin.ReleaseMode)
	}

	// 2. 初始化数据库
	db, err := database.InitDB(cfg.Database.DSN, database.Options{Debug: cfg.Env == "local"}, log,
		&model.Listing{}, &model.Category{}, &model.Favorite{},
	)
	if err != nil {
		log.Fatal("数据库初始化失败", zap.Error(err))
	}

	// 3. 初始化依赖
	ctx := context.Background()
	deps, err := initDependencies(ctx, cfg, db, log)
	if err != nil {
		log.Fatal("依赖初始化失败", zap.Error(err))
	}
	defer deps.Close()

	// 4. 启动定时任务
	tm := initTasks(cfg, deps, log)

	// 5. 初始化路由
	opts := router.Options{
		Logger:        log,
		StartCooldown: cfg.Session.StartCooldown,
		TaskStatus:    tm.Status,
	}
	if cfg.Storage.Provider == "local" {
		opts.UploadDir = cfg.Server.UploadDir
	}
	r := router.SetupRouter(deps.Controllers, opts)

	// 6. 启动服务
	startServer(cfg, r, log)
	tm.Stop()
}

// ==================== 依赖容器 ====================

// Dependencies 依赖容器
type Dependencies struct {
	DB          *gorm.DB
	Repos       *Repositories
	Services    *Services
	Controllers *router.Controllers

	closers []func() error
}

// Repositories 仓库集合
type Repositories struct {
	Listing  repository.ListingRepository
	Category repository.CategoryRepository
	Favorite repository.FavoriteRepository
}

// Services 服务集合
type Services struct {
	Listing  *service.ListingService
	Category *service.CategoryService
	Favorite *service.FavoriteService
	Images   *service.ImageStorage
}

// Close 释放外部连接
func (d *Dependencies) Close() {
	for _, c := range d.closers {
		_ = c()
	}
}

// ==================== 初始化函数 ====================

// initDependencies 初始化所有依赖
func initDependencies(ctx context.Context, cfg *config.Config, db *gorm.DB, log *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{DB: db}

	middleware.SetJWTConfig(&middleware.JWTConfig{
		SecretKey:      cfg.Auth.JWTSecret,
		AccessTokenTTL: cfg.Auth.AccessTTL,
		Issuer:         cfg.Auth.Issuer,
	})

	// -------- Repo 层 --------
	deps.Repos = initRepositories(cfg, db, log)

	// -------- 存储 --------
	images, closer, err := initImageStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if closer != nil {
		deps.closers = append(deps.closers, closer)
	}

	// -------- 分类缓存 --------
	cache, closer := initCategoryCache(ctx, cfg, log)
	if closer != nil {
		deps.closers = append(deps.closers, closer)
	}

	// -------- 业务服务 --------
	listingSvc := service.NewListingService(deps.Repos.Listing, images, log, cfg.Session.TTL)
	deps.Services = &Services{
		Listing:  listingSvc,
		Category: service.NewCategoryService(deps.Repos.Category, cache),
		Favorite: service.NewFavoriteService(deps.Repos.Favorite, listingSvc, log),
		Images:   images,
	}

	// -------- Controller 层 --------
	deps.Controllers = &router.Controllers{
		Listing:  controller.NewListingController(deps.Services.Listing),
		Category: controller.NewCategoryController(deps.Services.Category),
		Favorite: controller.NewFavoriteController(deps.Services.Favorite),
	}

	return deps, nil
}

// initRepositories 按数据源选择仓储实现；收藏始终存放在本地数据库
func initRepositories(cfg *config.Config, db *gorm.DB, log *zap.Logger) *Repositories {
	repos := &Repositories{
		Favorite: repository.NewFavoriteRepository(db),
	}

	switch cfg.Store.Driver {
	case "rest":
		client := repository.NewRestClient(repository.RestConfig{
			BaseURL: cfg.Store.BaseURL,
			APIKey:  cfg.Store.APIKey,
			Timeout: cfg.Store.Timeout,
			Retries: cfg.Store.Retries,
		})
		repos.Listing = client
		repos.Category = client.Categories()
		log.Info("商品数据源: 托管后端", zap.String("base_url", cfg.Store.BaseURL))
	default:
		repos.Listing = repository.NewListingRepository(db)
		repos.Category = repository.NewCategoryRepository(db)
		log.Info("商品数据源: 本地数据库")
	}
	return repos
}

// initImageStorage 初始化图片存储
func initImageStorage(ctx context.Context, cfg *config.Config) (*service.ImageStorage, func() error, error) {
	storageCfg := service.StorageConfig{
		Provider:  cfg.Storage.Provider,
		Bucket:    cfg.Storage.Bucket,
		Region:    cfg.Storage.Region,
		AccessKey: cfg.Storage.AccessKey,
		SecretKey: cfg.Storage.SecretKey,
		Endpoint:  cfg.Storage.Endpoint,
		CDNDomain: cfg.Storage.CDNDomain,
		BasePath:  cfg.Storage.BasePath,
	}

	keyPrefix := cfg.Storage.BasePath
	if storageCfg.Provider == "local" {
		// 本地存储的 BasePath 为落盘目录
		storageCfg.BasePath = cfg.Server.UploadDir
		keyPrefix = ""
	}

	provider, err := service.NewStorageProvider(ctx, storageCfg)
	if err != nil {
		return nil, nil, err
	}

	var closer func() error
	if gcsStorage, ok := provider.(*service.GCSStorage); ok {
		closer = gcsStorage.Close
	}
	return service.NewImageStorage(provider, keyPrefix), closer, nil
}

// initCategoryCache 配置了 Redis 时使用 Redis，连接失败退回进程内缓存
func initCategoryCache(ctx context.Context, cfg *config.Config, log *zap.Logger) (service.CategoryCache, func() error) {
	if cfg.Cache.RedisAddr == "" {
		return service.NewMemoryCategoryCache(cfg.Cache.CategoryTTL), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr: cfg.Cache.RedisAddr,
		DB:   cfg.Cache.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn("Redis 不可用，使用进程内缓存", zap.String("addr", cfg.Cache.RedisAddr), zap.Error(err))
		_ = client.Close()
		return service.NewMemoryCategoryCache(cfg.Cache.CategoryTTL), nil
	}
	return service.NewRedisCategoryCache(client, cfg.Cache.CategoryTTL, log), client.Close
}

// ==================== 定时任务 ====================

// initTasks 初始化定时任务
func initTasks(cfg *config.Config, deps *Dependencies, log *zap.Logger) *task.TaskManager {
	tm := task.NewTaskManager(&task.TaskManagerDeps{
		Sessions:   deps.Services.Listing,
		Categories: deps.Services.Category,
		Logger:     log,
	}, &task.TaskManagerConfig{
		SweepEnabled:    true,
		SweepSchedule:   cfg.Session.SweepSchedule,
		RefreshEnabled:  true,
		RefreshInterval: cfg.Cache.CategoryTTL,
	})
	if err := tm.Start(); err != nil {
		log.Fatal("定时任务启动失败", zap.Error(err))
	}
	return tm
}

// ==================== 服务启动 ====================

// startServer 启动服务，收到退出信号后优雅关闭
func startServer(cfg *config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// 异步启动服务
	go func() {
		log.Info("服务启动", zap.String("addr", cfg.Server.Address))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("服务启动失败", zap.Error(err))
		}
	}()

	// 等待退出信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("正在关闭服务...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("服务强制关闭", zap.Error(err))
		return
	}

	log.Info("服务已退出")
}
