package router

import (
	"database/sql"
	"fmt"
	"time"

	"events_crm_backend/internal/config"
	"events_crm_backend/internal/handlers"
	"events_crm_backend/internal/middleware"
	"events_crm_backend/internal/repositories"
	"events_crm_backend/internal/services"
	"events_crm_backend/internal/storage"
	"events_crm_backend/pkg/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// NewEngine creates the gin engine with recovery, request logging and CORS.
func NewEngine(cfg config.Config) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(utils.GinLogger())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSAllowedOrigins
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", utils.RequestIDHeader}
	corsConfig.ExposeHeaders = []string{utils.RequestIDHeader}
	corsConfig.AllowCredentials = true
	engine.Use(cors.New(corsConfig))

	return engine
}

// Setup initializes the routing for the application.
func Setup(engine *gin.Engine, db *sql.DB, cfg config.Config) error {
	tokens, err := utils.NewTokenManager(cfg.JWTSecret, cfg.JWTIssuer)
	if err != nil {
		return fmt.Errorf("creating token manager: %w", err)
	}
	files, err := storage.NewDiskStore(cfg.UploadDir)
	if err != nil {
		return err
	}

	// Initialize Repositories
	clientRepo := repositories.NewClientRepository(db)
	eventRepo := repositories.NewEventRepository(db)
	transactor := repositories.NewTransactor(db)

	// Initialize Services
	clientService := services.NewClientService(clientRepo, eventRepo, transactor, db)
	photoService := services.NewPhotoService(clientRepo, files, db)

	// Initialize Handlers
	clientHandler := handlers.NewClientHandler(clientService)
	photoHandler := handlers.NewPhotoHandler(photoService, cfg.MaxUploadBytes)
	healthHandler := handlers.NewHealthHandler(db)

	SetupHealthRoutes(engine, healthHandler)

	apiV1 := engine.Group("/api/v1")
	authenticated := apiV1.Group("")
	authenticated.Use(middleware.AuthMiddleware(tokens, cfg.OrgID))
	{
		SetupClientRoutes(authenticated, clientHandler, photoHandler, middleware.RateLimitByIP(middleware.RateLimitConfig{
			RequestsPerWindow: cfg.UploadRatePerMinute,
			Window:            time.Minute,
			Burst:             cfg.UploadRateBurst,
		}))
	}

	utils.LogInfo("Routes configured", map[string]interface{}{
		"org_id": cfg.OrgID, "upload_dir": files.Dir(),
	})
	return nil
}
