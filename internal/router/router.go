package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"agri_market_v1/internal/controller"
	"agri_market_v1/internal/middleware"
	"agri_market_v1/pkg/logger"
)

// Controllers 控制器集合
type Controllers struct {
	Listing  *controller.ListingController
	Category *controller.CategoryController
	Favorite *controller.FavoriteController
}

// Options 路由选项
type Options struct {
	Logger        *zap.Logger
	StartCooldown time.Duration // 开启编辑会话的冷却间隔
	UploadDir     string        // 非空时以 /uploads 提供本地图片
	TaskStatus    func() map[string]bool
}

// SetupRouter 创建引擎并注册所有路由
func SetupRouter(ctls *Controllers, opts Options) *gin.Engine {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	r := gin.New()
	r.Use(gin.Recovery(), logger.GinLogger(opts.Logger))
	r.MaxMultipartMemory = 8 << 20

	r.GET("/healthz", func(c *gin.Context) {
		body := gin.H{"status": "ok"}
		if opts.TaskStatus != nil {
			body["tasks"] = opts.TaskStatus()
		}
		c.JSON(http.StatusOK, body)
	})
	if opts.UploadDir != "" {
		r.Static("/uploads", opts.UploadDir)
	}

	InitRoutes(r, ctls, middleware.NewCooldownLimiter(), opts.StartCooldown)
	return r
}

// InitRoutes 注册 API 路由
func InitRoutes(r *gin.Engine, ctls *Controllers, limiter *middleware.CooldownLimiter, startCooldown time.Duration) {
	api := r.Group("/api")
	{
		// 公开接口
		api.GET("/enums", ctls.Listing.ListEnums)
		api.GET("/categories", ctls.Category.List)
		api.GET("/listings", ctls.Listing.ListListings)
		api.GET("/listings/:id", ctls.Listing.GetListing)

		auth := api.Group("", middleware.JWTAuth())
		{
			// 编辑会话
			start := middleware.UserCooldown(limiter, "start_session", startCooldown)
			auth.POST("/listings/sessions", start, ctls.Listing.StartCreate)
			auth.POST("/listings/:id/sessions", start, ctls.Listing.StartEdit)

			sessions := auth.Group("/sessions/:sid")
			{
				sessions.GET("", ctls.Listing.GetSession)
				sessions.PATCH("", ctls.Listing.ApplyEdits)
				sessions.DELETE("", ctls.Listing.Discard)
				sessions.POST("/images", ctls.Listing.UploadImage)
				sessions.DELETE("/images", ctls.Listing.DeleteImage)
				sessions.POST("/submit", ctls.Listing.Submit)
			}

			// 收藏
			favorites := auth.Group("/favorites")
			{
				favorites.GET("", ctls.Favorite.List)
				favorites.POST("/:listing_id", ctls.Favorite.Add)
				favorites.DELETE("/:listing_id", ctls.Favorite.Remove)
			}
		}
	}
}
