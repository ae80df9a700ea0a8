package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/questionbank/internal/http/handlers"
	httpMW "github.com/yungbote/questionbank/internal/http/middleware"
	"github.com/yungbote/questionbank/internal/observability"
	"github.com/yungbote/questionbank/internal/platform/logger"
)

const serviceName = "questionbank"

type RouterConfig struct {
	Log         *logger.Logger
	Metrics     *observability.Metrics
	CORSOrigins []string

	QuestionHandler *httpH.QuestionHandler
	HealthHandler   *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(serviceName))
	r.Use(httpMW.TraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.CORSOrigins...))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", func(c *gin.Context) { cfg.Metrics.WriteHTTP(c.Writer, c.Request) })
	}

	api := r.Group("/api")
	{
		if cfg.QuestionHandler != nil {
			api.GET("/questions", cfg.QuestionHandler.List)
			api.GET("/questions/search", cfg.QuestionHandler.Search)
			api.GET("/questions/:uid", cfg.QuestionHandler.Get)
			api.POST("/questions", cfg.QuestionHandler.Create)
			api.PUT("/questions/:uid", cfg.QuestionHandler.Update)
			api.DELETE("/questions/:uid", cfg.QuestionHandler.Delete)

			api.GET("/tags", cfg.QuestionHandler.Tags)
			api.GET("/stats", cfg.QuestionHandler.Stats)
			api.GET("/migrations", cfg.QuestionHandler.Migrations)
			api.POST("/export", cfg.QuestionHandler.Export)
		}
	}

	return r
}
