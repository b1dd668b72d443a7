package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"reportstore/internal/config"
	"reportstore/internal/database"
	"reportstore/internal/domain/reportfile"
	"reportstore/internal/middleware"
	"reportstore/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal(err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()

	backend, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		log.Fatal(err)
	}

	repo := reportfile.NewRepository(db)
	auditor := reportfile.NewAuditor(repo)
	service := reportfile.NewService(repo, backend, auditor, reportfile.ServiceConfig{
		MaxPresignTTL:     cfg.Storage.MaxPresignTTL,
		DefaultPresignTTL: cfg.DefaultPresignTTL,
		DefaultTTLDays:    cfg.DefaultTTLDays,
	})
	handler := reportfile.NewHandler(service, cfg.MaxUploadBytes)

	sweeper := reportfile.NewSweeper(service, cfg.SweepInterval)
	stopSweeper := sweeper.Start(ctx)

	r := gin.Default()
	r.Use(middleware.CORS())
	r.Use(middleware.ErrorLogger())
	r.Use(middleware.Metrics())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/api/v1")
	{
		reportfile.RegisterRoutes(v1, handler)

		if local, ok := backend.(*storage.LocalBackend); ok {
			reportfile.RegisterLocalFileRoutes(v1, reportfile.NewLocalFileHandler(local))
		}
	}

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r}
	go func() {
		log.Printf("reportstore listening on :%s backend=%s", cfg.Port, backend.Type())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down")
	close(stopSweeper)

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("server shutdown: %v", err)
	}
}
