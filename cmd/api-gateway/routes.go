package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/enrollment-finance-api/internal/handler"
	"github.com/noah-isme/enrollment-finance-api/internal/middleware"
	"github.com/noah-isme/enrollment-finance-api/internal/service"
	"github.com/noah-isme/enrollment-finance-api/pkg/config"
	"github.com/noah-isme/enrollment-finance-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/enrollment-finance-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/enrollment-finance-api/pkg/middleware/requestid"
)

type routeHandlers struct {
	auth        *handler.AuthHandler
	enrollments *handler.EnrollmentHandler
	payments    *handler.PaymentHandler
	requisitos  *handler.RequisitoHandler
	courses     *handler.CourseHandler
	discounts   *handler.DiscountHandler
	students    *handler.StudentHandler
	settings    *handler.SettingsHandler
	documents   *handler.DocumentHandler
	exports     *handler.ExportHandler
	metrics     *handler.MetricsHandler
}

func newRouter(cfg *config.Config, logr *zap.Logger, tokens middleware.TokenValidator, metrics *service.MetricsService, h routeHandlers) *gin.Engine {
	r := gin.New()
	r.MaxMultipartMemory = cfg.Uploads.MaxFileSizeBytes
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics, "/health", "/ready", "/metrics"))
	r.Use(middleware.RequestMeta())

	r.GET("/health", h.metrics.Health)
	r.GET("/ready", h.metrics.Ready)
	r.GET("/metrics", h.metrics.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/login", h.auth.Login)
	api.POST("/auth/student/login", h.auth.StudentLogin)
	api.GET("/documents/:token", h.documents.Download)

	secured := api.Group("")
	secured.Use(middleware.JWT(tokens))
	secured.GET("/auth/me", h.auth.Me)
	secured.GET("/settings/payment", h.settings.Get)

	secured.GET("/courses", h.courses.List)
	secured.GET("/courses/:id", h.courses.Get)

	secured.GET("/students/:studentId", middleware.AdminOrSelf(), h.students.Get)
	secured.GET("/students/:studentId/enrollments", middleware.AdminOrSelf(), h.enrollments.ListForStudent)

	enrollments := secured.Group("/enrollments")
	enrollments.GET("", h.enrollments.List)
	enrollments.GET("/:id", h.enrollments.Get)
	enrollments.GET("/:id/next-obligation", h.enrollments.NextObligation)
	enrollments.GET("/:id/schedule", h.enrollments.Schedule)
	enrollments.GET("/:id/statement", h.enrollments.Statement)
	enrollments.GET("/:id/statement/export", h.exports.Statement)
	enrollments.GET("/:id/adjustments", h.enrollments.Adjustments)
	enrollments.GET("/:id/payments", h.payments.ListForEnrollment)
	enrollments.GET("/:id/payments/summary", h.enrollments.PaymentSummary)
	enrollments.POST("/:id/payments", h.payments.Submit)
	enrollments.GET("/:id/requisitos", h.requisitos.List)
	enrollments.GET("/:id/requisitos/summary", h.enrollments.RequisitoSummary)
	enrollments.PUT("/:id/requisitos/:index", h.requisitos.Upload)

	secured.GET("/payments", h.payments.List)
	secured.GET("/payments/:id", h.payments.Get)

	admin := secured.Group("")
	admin.Use(middleware.AdminOnly())
	admin.POST("/enrollments", h.enrollments.Create)
	admin.PUT("/enrollments/:id/discount", h.enrollments.UpdateStudentDiscount)
	admin.PUT("/enrollments/:id/status", h.enrollments.ChangeStatus)
	admin.PUT("/enrollments/:id/grade", h.enrollments.SetFinalGrade)
	admin.POST("/enrollments/:id/adjustments", h.enrollments.AdjustBalance)
	admin.POST("/enrollments/:id/requisitos/:index/approve", h.requisitos.Approve)
	admin.POST("/enrollments/:id/requisitos/:index/reject", h.requisitos.Reject)

	admin.POST("/payments/:id/approve", h.payments.Approve)
	admin.POST("/payments/:id/reject", h.payments.Reject)
	admin.POST("/payments/:id/reverse", h.payments.Reverse)

	admin.POST("/courses", h.courses.Create)
	admin.PUT("/courses/:id", h.courses.Update)
	admin.GET("/courses/:id/roster", h.courses.Roster)

	admin.GET("/discounts", h.discounts.List)
	admin.GET("/discounts/:id", h.discounts.Get)
	admin.POST("/discounts", h.discounts.Create)
	admin.PUT("/discounts/:id/active", h.discounts.SetActive)
	admin.POST("/discounts/:id/students", h.discounts.AddStudent)
	admin.DELETE("/discounts/:id/students/:studentId", h.discounts.RemoveStudent)

	admin.GET("/students", h.students.List)
	admin.POST("/students", h.students.Create)

	admin.PUT("/settings/payment", h.settings.Update)

	return r
}
