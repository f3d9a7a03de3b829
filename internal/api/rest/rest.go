package rest

import (
	"github.com/gin-gonic/gin"

	"github.com/openrelief/supply-registry/internal/api/middleware"
)

// SetupRoutes configures all REST API routes. Read-only queries are public;
// every mutation requires an authenticated caller identity.
func SetupRoutes(router *gin.Engine, handler Handler, authCfg middleware.AuthConfig) {
	// Health check endpoint (no auth, no version prefix)
	router.GET("/health", handler.HealthCheck)

	v1 := router.Group("/api/v1")
	{
		// Read-only queries (public access)
		v1.GET("/batches/:id", handler.GetBatch)
		v1.GET("/batches/:id/metadata", handler.GetMetadata)
		v1.GET("/batches/:id/versions", handler.ListVersions)
		v1.GET("/batches/:id/status", handler.GetStatus)
		v1.GET("/batches/:id/licenses", handler.ListLicenses)
		v1.GET("/batches/:id/licenses/active", handler.IsLicenseActive)
		v1.GET("/batches/:id/collaborators", handler.ListCollaborators)
		v1.GET("/registry", handler.GetState)

		// Mutating operations (authenticated)
		auth := v1.Group("", middleware.Auth(authCfg))
		{
			auth.POST("/batches", handler.Mint)
			auth.POST("/batches/:id/transfer", handler.Transfer)
			auth.DELETE("/batches/:id", handler.Burn)
			auth.PUT("/batches/:id/metadata", handler.UpdateMetadata)
			auth.POST("/batches/:id/versions", handler.AddVersion)
			auth.POST("/batches/:id/licenses", handler.GrantLicense)
			auth.DELETE("/batches/:id/licenses", handler.RevokeLicense)
			auth.POST("/batches/:id/collaborators", handler.AddCollaborator)
			auth.POST("/batches/:id/lock", handler.Lock)
			auth.POST("/batches/:id/unlock", handler.Unlock)

			// Admin operations; the registry enforces the admin identity
			auth.POST("/registry/pause", handler.Pause)
			auth.POST("/registry/unpause", handler.Unpause)
			auth.PUT("/registry/verification", handler.SetVerification)
		}
	}
}
