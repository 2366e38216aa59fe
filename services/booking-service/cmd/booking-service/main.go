package main

import (
	"context"
	"net/http"
	"time"

	"github.com/santanalegal/lexcita/libs/config"
	"github.com/santanalegal/lexcita/libs/db"
	"github.com/santanalegal/lexcita/libs/httpx"
	"github.com/santanalegal/lexcita/libs/kafkax"
	otelx "github.com/santanalegal/lexcita/libs/otel"
	"github.com/santanalegal/lexcita/libs/runtime"
	"github.com/santanalegal/lexcita/services/booking-service/internal/fiscal"
	"github.com/santanalegal/lexcita/services/booking-service/internal/handlers"
	"github.com/santanalegal/lexcita/services/booking-service/internal/outbox"
	"github.com/santanalegal/lexcita/services/booking-service/internal/payment"
	"github.com/santanalegal/lexcita/services/booking-service/internal/storage"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	service := config.String("SERVICE_NAME", "booking-service")
	port, err := config.Port("PORT", "8083")
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

	repo := storage.NewBookingRepository(pool)
	outboxRepo := outbox.NewRepository(pool)

	fiscalURL, err := config.RequiredString("FISCAL_URL")
	if err != nil {
		panic(err)
	}
	allocator := fiscal.NewClient(fiscalURL)
	verifier := payment.NewStripeVerifier(config.String("STRIPE_SECRET_KEY", ""))

	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	bookingHandler := handlers.NewBookingHandler(
		repo,
		outboxRepo,
		logger,
		verifier,
		allocator,
		config.Bool("NCF_ELECTRONIC", false),
	)

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
	)
	mux.HandleFunc("/api/v1/public/slots", bookingHandler.Slots)
	mux.HandleFunc("/api/v1/public/book", bookingHandler.Book)
	mux.HandleFunc("/api/v1/appointments", bookingHandler.List)
	mux.HandleFunc("/api/v1/appointments/confirm", bookingHandler.Confirm)
	mux.HandleFunc("/api/v1/appointments/cancel", bookingHandler.Cancel)

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "booking")
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
