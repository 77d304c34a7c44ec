package router

import (
	"events_crm_backend/internal/handlers"
	"events_crm_backend/internal/middleware"

	"github.com/gin-gonic/gin"
)

// SetupHealthRoutes mounts the probes outside the API group.
func SetupHealthRoutes(engine *gin.Engine, healthHandler *handlers.HealthHandler) {
	engine.GET("/ping", healthHandler.Ping)
	engine.GET("/readyz", healthHandler.Ready)
}

// SetupClientRoutes sets up the client and profile photo routes.
// photoLimiter guards the routes that write to the upload directory.
func SetupClientRoutes(authenticatedGroup *gin.RouterGroup, clientHandler *handlers.ClientHandler, photoHandler *handlers.PhotoHandler, photoLimiter gin.HandlerFunc) {
	clientRoutes := authenticatedGroup.Group("/clients")
	clientRoutes.Use(middleware.RoleAuthMiddleware("Admin", "Staff"))
	{
		clientRoutes.GET("", clientHandler.GetClients)
		clientRoutes.GET("/", clientHandler.GetClients)
		clientRoutes.POST("", clientHandler.CreateClient)
		clientRoutes.POST("/", clientHandler.CreateClient)
		clientRoutes.GET("/id/:id", clientHandler.GetClientByID)
		clientRoutes.GET("/details/:id", clientHandler.GetClientDetails)
		clientRoutes.GET("/search", clientHandler.SearchClients)
		clientRoutes.PUT("/update/:id", clientHandler.UpdateClient)
		clientRoutes.DELETE("/:id", clientHandler.DeleteClient)
		clientRoutes.GET("/byzip", clientHandler.GetClientsByZip)

		clientRoutes.POST("/upload", photoLimiter, photoHandler.UploadPhoto)
		clientRoutes.DELETE("/delete/profile/:id", photoLimiter, photoHandler.DeletePhoto)
		clientRoutes.GET("/uploads/:filename", photoHandler.ServePhoto)
	}
}
