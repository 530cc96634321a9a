package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/akylbek/hotel-pos/settlement-engine/internal/handlers"
	"github.com/akylbek/hotel-pos/settlement-engine/internal/service"
	"github.com/akylbek/hotel-pos/settlement-engine/internal/telemetry"
)

type Options struct {
	SettlementTimeout time.Duration
	ConflictRetries   int
}

func NewRouter(processor *service.Processor, reporter *service.Reporter, opts Options) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(telemetry.TracingMiddleware())

	// Prometheus metrics
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "settlement-engine"})
	})

	// Obligation routes
	obligationHandler := handlers.NewObligationHandler(processor, opts.SettlementTimeout, opts.ConflictRetries)
	r.POST("/obligations", obligationHandler.CreateObligation)
	r.GET("/obligations/:id", obligationHandler.GetObligation)
	r.POST("/obligations/:id/settlements", obligationHandler.ApplySettlement)
	r.POST("/obligations/:id/redeliver", obligationHandler.Redeliver)

	// Reporting
	reportHandler := handlers.NewReportHandler(reporter)
	r.GET("/reports/summary", reportHandler.GetSummary)

	// Tender codec
	tenderHandler := handlers.NewTenderHandler()
	r.POST("/tender/decode", tenderHandler.Decode)
	r.POST("/tender/encode", tenderHandler.Encode)

	return r
}
