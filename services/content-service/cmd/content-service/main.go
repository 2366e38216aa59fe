package main

import (
	"context"
	"net/http"
	"time"

	"github.com/santanalegal/lexcita/libs/config"
	"github.com/santanalegal/lexcita/libs/db"
	"github.com/santanalegal/lexcita/libs/httpx"
	otelx "github.com/santanalegal/lexcita/libs/otel"
	"github.com/santanalegal/lexcita/libs/runtime"
	"github.com/santanalegal/lexcita/services/content-service/internal/handlers"
	"github.com/santanalegal/lexcita/services/content-service/internal/storage"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	service := config.String("SERVICE_NAME", "content-service")
	port, err := config.Port("PORT", "8086")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	jwtSecret, err := config.RequiredString("JWT_SECRET")
	if err != nil {
		panic(err)
	}

	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	repo := storage.NewRepository(pool)
	contentHandler := handlers.NewContentHandler(repo, logger)
	authHandler := handlers.NewAuthHandler(repo, logger, jwtSecret)

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
	)
	mux.HandleFunc("/api/v1/auth/login", authHandler.Login)
	mux.HandleFunc("/api/v1/staff", authHandler.CreateStaff)
	mux.HandleFunc("/api/v1/practice-areas", contentHandler.PracticeAreas)
	mux.HandleFunc("/api/v1/practice-areas/{id}", contentHandler.PracticeArea)
	mux.HandleFunc("/api/v1/lawyers", contentHandler.Lawyers)
	mux.HandleFunc("/api/v1/lawyers/{id}", contentHandler.Lawyer)
	mux.HandleFunc("/api/v1/blog", contentHandler.BlogPosts)
	mux.HandleFunc("/api/v1/blog/{id}", contentHandler.BlogPost)
	mux.HandleFunc("/api/v1/public/blog/{slug}", contentHandler.BlogPostBySlug)
	mux.HandleFunc("/api/v1/invoices", contentHandler.Invoices)

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "content")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}
