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
	"github.com/santanalegal/lexcita/services/fiscal-service/internal/handlers"
	"github.com/santanalegal/lexcita/services/fiscal-service/internal/storage"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	service := config.String("SERVICE_NAME", "fiscal-service")
	port, err := config.Port("PORT", "8084")
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

	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	fiscalHandler := handlers.NewFiscalHandler(storage.NewRepository(pool), logger)

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
	)
	mux.HandleFunc("/internal/v1/ncf/allocate", fiscalHandler.Allocate)
	mux.HandleFunc("/internal/v1/ncf/sequences", fiscalHandler.Sequences)
	mux.HandleFunc("/internal/v1/ncf/sequences/{prefix}", fiscalHandler.Sequence)
	mux.HandleFunc("/internal/v1/ncf/issuances", fiscalHandler.Issuances)

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "fiscal")
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
