package server

import (
	"net/http"

	"github.com/abduss/treedrive/internal/auth"
	"github.com/abduss/treedrive/internal/config"
	"github.com/abduss/treedrive/internal/file"
	"github.com/abduss/treedrive/internal/folder"
	"github.com/abduss/treedrive/internal/logger"
	"github.com/abduss/treedrive/internal/metrics"
	"github.com/abduss/treedrive/internal/presigned"
	"github.com/gin-gonic/gin"
	"github.com/minio/minio-go/v7"
	"github.com/rs/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Dependencies groups the services required by the HTTP router.
type Dependencies struct {
	Config           config.Config
	DB               pinger
	ObjectStore      *minio.Client
	AuthService      *auth.Service
	FolderService    *folder.Service
	FileService      *file.Service
	PresignedService *presigned.Service
}

// NewRouter builds a Gin engine with foundational middleware and routes.
func NewRouter(deps Dependencies) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(logger.Middleware())
	router.Use(metrics.Middleware())

	registerHealthRoutes(router, deps)
	metrics.Register(router, deps.Config.Metrics.PrometheusPath)

	api := router.Group("/v1")
	if deps.AuthService != nil {
		auth.RegisterRoutes(api, deps.AuthService)

		protected := api.Group("/")
		protected.Use(auth.AuthMiddleware(deps.AuthService))

		if deps.FolderService != nil {
			folder.RegisterRoutes(protected, deps.FolderService)
		}
		if deps.FileService != nil {
			file.RegisterRoutes(protected, deps.FileService)
		}
		if deps.PresignedService != nil {
			presigned.NewHandler(deps.PresignedService).RegisterRoutes(protected)
		}
	}

	return router
}

// NewHandler wraps the router with CORS and request tracing.
func NewHandler(router http.Handler, cfg config.CORSConfig) http.Handler {
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Accept", "Authorization", logger.CorrelationIDHeader},
		ExposedHeaders:   []string{logger.CorrelationIDHeader, "Content-Disposition"},
		AllowCredentials: true,
	})
	return otelhttp.NewHandler(corsHandler.Handler(router), "treedrive-api")
}
