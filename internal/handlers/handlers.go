package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"photomarket/api/internal/config"
	"photomarket/api/internal/middleware"
	"photomarket/api/internal/models"
	"photomarket/api/internal/repository"
	"photomarket/api/internal/service"
	"photomarket/api/internal/storage"
)

type HandlerSet struct {
	log            zerolog.Logger
	cfg            *config.AppConfig
	authService    *service.AuthService
	photoService   *service.PhotoService
	listingService *service.ListingService
	db             *pgxpool.Pool
	cache          *redis.Client
	users          *repository.UserRepository
	sessions       *repository.SessionRepository
	photos         *repository.PhotoRepository
}

func NewHandlerSet(log zerolog.Logger, db *pgxpool.Pool, cache *redis.Client, store *storage.ObjectStore, cfg *config.AppConfig) HandlerSet {
	userRepo := repository.NewUserRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	photoRepo := repository.NewPhotoRepository(db)

	auth := service.NewAuthService(userRepo, sessionRepo, cfg, log)
	verifier := service.NewClientReportedVerifier(cfg.Payment, log)
	photoSvc := service.NewPhotoService(photoRepo, store, verifier, cache, cfg, log)
	listingSvc := service.NewListingService(photoRepo, log)

	return HandlerSet{
		log:            log,
		cfg:            cfg,
		authService:    auth,
		photoService:   photoSvc,
		listingService: listingSvc,
		db:             db,
		cache:          cache,
		users:          userRepo,
		sessions:       sessionRepo,
		photos:         photoRepo,
	}
}

func (h HandlerSet) Register(router *gin.RouterGroup) {
	router.GET("/healthz", h.Health)

	v1 := router.Group("/v1")

	auth := v1.Group("/auth")
	auth.POST("/register", h.RegisterUser)
	auth.POST("/login", h.Login)
	auth.POST("/refresh", h.Refresh)
	auth.POST("/logout", h.Logout)

	authProtected := v1.Group("/auth")
	authProtected.Use(middleware.Auth(h.cfg, h.users, h.sessions))
	authProtected.GET("/me", h.Me)
	authProtected.GET("/sessions", h.ListSessions)
	authProtected.DELETE("/sessions/:deviceId", h.RevokeSession)

	photos := v1.Group("/photos")
	photos.GET("", h.BrowsePhotos)
	photos.GET("/featured", h.FeaturedPhotos)
	photos.GET("/category/:category", h.PhotosByCategory)
	photos.GET("/search", h.SearchPhotos)
	photos.GET("/:photoId", h.GetPhoto)

	protected := v1.Group("/photos")
	protected.Use(middleware.Auth(h.cfg, h.users, h.sessions))
	protected.POST("", middleware.RequireRoles(models.UserRoleSeller), h.UploadPhoto)
	protected.GET("/mine", h.MyPhotos)
	protected.GET("/purchased", h.PurchasedPhotos)
	protected.PATCH("/:photoId/price", h.UpdatePrice)
	protected.DELETE("/:photoId", h.DeletePhoto)
	protected.POST("/:photoId/like", h.ToggleLike)
	protected.POST("/:photoId/report", h.ReportPhoto)
	protected.GET("/:photoId/download", h.DownloadPhoto)
	protected.GET("/:photoId/checkout", h.Checkout)
	protected.POST("/:photoId/purchase", h.Purchase)

	admin := v1.Group("/admin")
	admin.Use(
		middleware.Auth(h.cfg, h.users, h.sessions),
		middleware.RequireRoles(models.UserRoleAdmin),
	)
	admin.GET("/users", h.AdminListUsers)
	admin.PATCH("/users/:userId/status", h.AdminSetUserStatus)
	admin.GET("/stats", h.AdminStats)
	admin.DELETE("/photos/bulk", h.AdminBulkDeletePhotos)
}

func currentUser(c *gin.Context) (models.User, bool) {
	userVal, exists := c.Get("current_user")
	if !exists {
		return models.User{}, false
	}
	user, ok := userVal.(models.User)
	return user, ok
}
