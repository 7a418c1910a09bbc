package http

import (
	"github.com/gin-gonic/gin"

	httpH "github.com/splitlearn/splitlearn-backend/internal/http/handlers"
	httpMW "github.com/splitlearn/splitlearn-backend/internal/http/middleware"
)

type RouterConfig struct {
	AuthMiddleware *httpMW.AuthMiddleware

	ExamHandler  *httpH.ExamHandler
	VideoHandler *httpH.VideoHandler

	HealthHandler *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.Default()
	r.Use(httpMW.CORS())

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}

	api := r.Group("/api")
	{
		if cfg.AuthMiddleware != nil {
			api.Use(cfg.AuthMiddleware.RequireAuth())
		}

		if cfg.ExamHandler != nil {
			api.POST("/exams/process", cfg.ExamHandler.ProcessExam)
		}
		if cfg.VideoHandler != nil {
			api.POST("/videos/alternatives", cfg.VideoHandler.GetAlternatives)
		}
	}

	return r
}
