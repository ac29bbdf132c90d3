package server

import (
	"github.com/nulzo/model-control-plane/internal/server/middleware"
	v1 "github.com/nulzo/model-control-plane/internal/server/v1"
)

func (s *Server) SetupRoutes() {
	s.router.Use(middleware.Tracing("model-control-plane"))
	s.router.Use(middleware.ErrorHandler(s.logger))

	// Health check (public)
	healthHandler := v1.NewHealthHandler()
	s.router.GET("/health", healthHandler.Health)

	limiter := middleware.NewRateLimiter(s.config.RateLimit.RequestsPerSecond, s.config.RateLimit.Burst, s.logger)

	api := s.router.Group("/v1")
	api.Use(middleware.Auth(s.config.Server.APIKeys))
	api.Use(middleware.Identity())
	api.Use(middleware.AntiForgery())
	api.Use(limiter.Middleware())
	{
		teams := api.Group("/teams/:teamId")

		modelHandler := v1.NewModelHandler(s.models)
		teams.POST("/models", modelHandler.Add)
		teams.GET("/models", modelHandler.List)
		teams.GET("/models/:modelId", modelHandler.Get)
		teams.PUT("/models/:modelId", modelHandler.Edit)
		teams.DELETE("/models/:modelId", modelHandler.Delete)

		credentialHandler := v1.NewCredentialHandler(s.credentials)
		teams.POST("/credentials", credentialHandler.Add)
		teams.GET("/credentials", credentialHandler.List)
		teams.GET("/credentials/:credentialId", credentialHandler.Get)
		teams.DELETE("/credentials/:credentialId", credentialHandler.Delete)

		secretHandler := v1.NewSecretHandler(s.secrets)
		teams.POST("/secrets", secretHandler.Add)
		teams.GET("/secrets", secretHandler.List)
		teams.PUT("/secrets/:secretId", secretHandler.Edit)
		teams.DELETE("/secrets/:secretId", secretHandler.Delete)
	}
}
