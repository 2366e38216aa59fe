package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/santanalegal/lexcita/libs/config"
	"github.com/santanalegal/lexcita/libs/db"
	"github.com/santanalegal/lexcita/libs/httpx"
	"github.com/santanalegal/lexcita/libs/kafkax"
	otelx "github.com/santanalegal/lexcita/libs/otel"
	"github.com/santanalegal/lexcita/libs/runtime"
	"github.com/santanalegal/lexcita/services/notification-service/internal/consumer"
	"github.com/santanalegal/lexcita/services/notification-service/internal/email"
	"github.com/santanalegal/lexcita/services/notification-service/internal/inbox"
	"github.com/santanalegal/lexcita/services/notification-service/internal/outbox"
	"github.com/santanalegal/lexcita/services/notification-service/internal/storage"
	"github.com/santanalegal/lexcita/services/notification-service/internal/template"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type emailRequestedPayload struct {
	AppointmentID   string `json:"appointment_id"`
	Kind            string `json:"kind"`
	Language        string `json:"language"`
	Recipient       string `json:"recipient"`
	ClientName      string `json:"client_name"`
	Date            string `json:"date"`
	Timeslot        string `json:"timeslot"`
	Channel         string `json:"channel"`
	AppointmentCode string `json:"appointment_code"`
	NCF             string `json:"ncf"`
	AmountCents     int64  `json:"amount_cents"`
}

func writeDeliveryEvent(ctx context.Context, pool *db.Pool, outboxRepo *outbox.Repository, payload emailRequestedPayload, status, reason string) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	eventType := "notification.email.sent.v1"
	fields := map[string]any{
		"appointment_id": payload.AppointmentID,
		"kind":           payload.Kind,
		"recipient":      payload.Recipient,
		"sent_at":        time.Now().UTC().Format(time.RFC3339),
	}
	if status == storage.StatusFailed {
		eventType = "notification.email.failed.v1"
		delete(fields, "sent_at")
		fields["error_reason"] = reason
		fields["failed_at"] = time.Now().UTC().Format(time.RFC3339)
	}
	eventPayload, err := json.Marshal(fields)
	if err != nil {
		return err
	}

	if err := outboxRepo.Insert(ctx, tx, outbox.Event{
		AggregateType: "notification",
		AggregateID:   payload.AppointmentID,
		EventType:     eventType,
		Payload:       eventPayload,
	}); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func main() {
	service := config.String("SERVICE_NAME", "notification-service")
	port, err := config.Port("PORT", "8085")
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

	inboxRepo := inbox.NewRepository(pool)
	notificationsRepo := storage.NewRepository(pool)
	outboxRepo := outbox.NewRepository(pool)
	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	emailSender := email.NewSMTPSender(
		config.String("SMTP_HOST", "mailpit"),
		config.String("SMTP_PORT", "1025"),
		config.String("SMTP_FROM", "citas@santanalegal.com.do"),
		config.String("SMTP_USERNAME", ""),
		config.String("SMTP_PASSWORD", ""),
	)

	consumerCfg := consumer.Config{
		Brokers: config.String("KAFKA_BROKERS", ""),
		GroupID: config.String("KAFKA_GROUP_ID", "notification-service"),
		Topic:   config.String("KAFKA_CONSUME_TOPIC", "notification.email.requested.v1"),
	}
	eventConsumer := consumer.New(logger, inboxRepo, consumerCfg, func(ctx context.Context, msg kafka.Message) error {
		var payload emailRequestedPayload
		if err := json.Unmarshal(msg.Value, &payload); err != nil {
			logger.Error("invalid email request payload", "err", err)
			return nil
		}
		if payload.AppointmentID == "" || payload.Kind == "" || payload.Recipient == "" {
			logger.Error("missing email request fields", "appointment_id", payload.AppointmentID, "kind", payload.Kind)
			return nil
		}

		rendered, err := template.Render(payload.Kind, payload.Language, template.Data{
			ClientName:      payload.ClientName,
			Date:            payload.Date,
			Timeslot:        payload.Timeslot,
			Channel:         payload.Channel,
			AppointmentCode: payload.AppointmentCode,
			NCF:             payload.NCF,
			AmountCents:     payload.AmountCents,
		})
		if err != nil {
			logger.Error("email render failed", "err", err, "appointment_id", payload.AppointmentID)
			return nil
		}

		status := storage.StatusSent
		failureReason := ""
		if err := emailSender.Send(payload.Recipient, rendered.Subject, rendered.Body); err != nil {
			status = storage.StatusFailed
			failureReason = err.Error()
			logger.Error("email send failed", "err", err, "recipient", payload.Recipient)
		}

		if err := notificationsRepo.Insert(ctx, storage.Notification{
			AppointmentID: payload.AppointmentID,
			Kind:          payload.Kind,
			Language:      payload.Language,
			Recipient:     payload.Recipient,
			Subject:       rendered.Subject,
			Status:        status,
			ErrorReason:   failureReason,
		}); err != nil {
			logger.Error("failed to persist notification", "err", err)
			return err
		}

		if err := writeDeliveryEvent(ctx, pool, outboxRepo, payload, status, failureReason); err != nil {
			logger.Error("failed to enqueue delivery event", "err", err)
			return err
		}

		logger.Info("email processed", "appointment_id", payload.AppointmentID, "kind", payload.Kind, "status", status)
		return nil
	})
	go eventConsumer.Run(ctx)

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
	)
	handler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	handler = otelhttp.NewHandler(handler, "notification")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
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
