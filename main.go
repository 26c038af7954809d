package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"caratdash/api/config"
	"caratdash/api/database"
	"caratdash/api/handlers"
	"caratdash/api/logger"
	"caratdash/api/middleware"
	"caratdash/api/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	appLog, err := logger.New(cfg.LogMode)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer appLog.Sync()

	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// --- Tenant resolution: Postgres directory when configured, naming pattern otherwise ---
	var tenants database.TenantResolver = database.PatternResolver{
		Prefix: cfg.DatabasePrefix,
		Suffix: cfg.DatabaseSuffix,
	}
	if cfg.TenantDirectoryDSN != "" {
		directory, err := database.NewTenantDirectory(cfg.TenantDirectoryDSN)
		if err != nil {
			appLog.Fatal("Failed to initialize tenant directory", "error", err)
		}
		defer directory.Close()
		tenants = directory
		appLog.Info("Resolving tenants from PostgreSQL directory")
	}

	// --- Event store sessions (one ClickHouse connection per request) ---
	dialer := database.NewClickHouseDialer(database.ClickHouseOptions{
		Host:        cfg.ClickHouseHost,
		NativePort:  cfg.ClickHousePort,
		Username:    cfg.ClickHouseUsername,
		Password:    cfg.ClickHousePassword,
		DialTimeout: cfg.DialTimeout,
	})
	sessions := database.NewManager(dialer, tenants, appLog)

	rootCtx, stop := context.WithCancel(context.Background())
	defer stop()

	var held *database.HeldSession
	if cfg.HealthTenant != "" {
		held = sessions.Hold(rootCtx, cfg.HealthTenant, cfg.ReconnectDelay, cfg.PingInterval)
		defer held.Close()
	}

	reports := store.NewReportStore(sessions, store.ReportOptions{
		RequestTimeout:           cfg.RequestTimeout,
		BookingConversionDomains: cfg.BookingConversionDomains,
	}, appLog)

	reportHandlers := handlers.NewReportHandlers(reports, appLog)
	healthHandlers := handlers.NewHealthHandlers(held)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(appLog))
	r.Use(middleware.CORSMiddleware(cfg.FrontendOrigin))

	r.GET("/healthz", healthHandlers.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	{
		reportGroup := api.Group("/reports")
		{
			reportGroup.GET("/media-analysis", reportHandlers.MediaAnalysis)
			reportGroup.GET("/exit-page-table", reportHandlers.ExitPageTable)
			reportGroup.GET("/booking-referral-path-table", reportHandlers.BookingReferralPathTable)
			reportGroup.GET("/user-sankey-diagram", reportHandlers.UserSankeyDiagram)
			reportGroup.GET("/browser-distribution", reportHandlers.BrowserDistribution)
			reportGroup.GET("/referral-comparison-table-adwords-group", reportHandlers.ReferralComparisonAdwordsGroup)
			reportGroup.GET("/booking-info-table-adwords-group", reportHandlers.BookingInfoAdwordsGroup)
		}
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		appLog.Info("Dashboard API server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLog.Fatal("Dashboard API server failed to start", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLog.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		appLog.Error("Server forced to shutdown", "error", err)
	}
	stop()

	appLog.Info("Server exiting.")
}
