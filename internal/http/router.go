package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/http/handlers"
	httpMW "github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/http/middleware"
	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/observability"
	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/pkg/logger"
)

type RouterConfig struct {
	Log         *logger.Logger
	Metrics     *observability.Metrics
	ServiceName string
	CORSOrigins []string
	// MaxMultipartMemory bounds the part of an upload gin buffers in memory; the rest spills to disk.
	MaxMultipartMemory int64

	HealthHandler     *httpH.HealthHandler
	ProjectHandler    *httpH.ProjectHandler
	AssetHandler      *httpH.AssetHandler
	ExtractionHandler *httpH.ExtractionHandler
	ScriptHandler     *httpH.ScriptHandler
	JobHandler        *httpH.JobHandler
	BlenderHandler    *httpH.BlenderHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.CORSOrigins))
	if cfg.MaxMultipartMemory > 0 {
		r.MaxMultipartMemory = cfg.MaxMultipartMemory
	}

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"message": "route not found", "code": "not_found"}})
	})

	api := r.Group("/api/v1")
	{
		if cfg.HealthHandler != nil {
			api.GET("/health", cfg.HealthHandler.HealthCheck)
		}

		// Projects
		if cfg.ProjectHandler != nil {
			api.POST("/projects", cfg.ProjectHandler.Create)
			api.GET("/projects", cfg.ProjectHandler.List)
			api.GET("/projects/:id", cfg.ProjectHandler.Get)
			api.GET("/projects/:id/assets", cfg.ProjectHandler.ListAssets)
		}

		// Assets
		if cfg.AssetHandler != nil {
			api.POST("/assets/upload", cfg.AssetHandler.Upload)
			api.GET("/assets/:id", cfg.AssetHandler.Get)
			api.GET("/assets/:id/download", cfg.AssetHandler.Download)
			api.GET("/assets/:id/preview", cfg.AssetHandler.Preview)
		}

		// Extraction
		if cfg.ExtractionHandler != nil {
			api.POST("/extraction/scale-reference", cfg.ExtractionHandler.SetScaleReference)
			api.GET("/extraction/result/:project_id", cfg.ExtractionHandler.Latest)
			api.GET("/extraction/results/:project_id", cfg.ExtractionHandler.All)
		}

		// Scripts
		if cfg.ScriptHandler != nil {
			api.GET("/scripts/:project_id", cfg.ScriptHandler.List)
			api.GET("/scripts/:project_id/latest", cfg.ScriptHandler.Latest)
			api.GET("/script-files/:id/download", cfg.ScriptHandler.Download)
		}

		// Jobs
		if cfg.JobHandler != nil {
			api.POST("/jobs", cfg.JobHandler.Create)
			api.GET("/jobs", cfg.JobHandler.List)
			api.GET("/jobs/:id", cfg.JobHandler.Get)
		}

		// Blender
		if cfg.BlenderHandler != nil {
			api.POST("/blender/smoke", cfg.BlenderHandler.Smoke)
		}
	}

	return r
}
