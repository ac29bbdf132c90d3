package server

import (
	"net/http"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/nulzo/model-control-plane/internal/config"
	"github.com/nulzo/model-control-plane/internal/server/validator"
	"github.com/nulzo/model-control-plane/internal/service"
)

type Server struct {
	router      *gin.Engine
	config      *config.Config
	logger      *zap.Logger
	models      *service.ModelService
	credentials *service.CredentialService
	secrets     *service.SecretService
}

func New(cfg *config.Config, logger *zap.Logger, models *service.ModelService, credentials *service.CredentialService, secrets *service.SecretService) *Server {

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	validator.InitValidator()

	engine := gin.New()

	engine.Use(ginzap.Ginzap(logger, time.RFC3339, true))
	engine.Use(ginzap.RecoveryWithZap(logger, true))

	s := &Server{
		router:      engine,
		config:      cfg,
		logger:      logger,
		models:      models,
		credentials: credentials,
		secrets:     secrets,
	}

	s.SetupRoutes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}
