package consumers

import (
	"context"
	"log/slog"

	"bunkhouse/internal/audit"
	"bunkhouse/internal/cache"
	"bunkhouse/internal/config"
	"bunkhouse/internal/database"
	"bunkhouse/internal/external"
	"bunkhouse/internal/messaging"
	"bunkhouse/internal/repository"
	"bunkhouse/internal/service"
)

// ConsumerService owns the NATS subscriptions and the expiry reaper. It runs
// as its own process so a slow journal write never sits on the request path.
type ConsumerService struct {
	db       *database.DB
	nats     *messaging.NATSClient
	repos    *repository.Repositories
	handlers *Handlers
	services *service.Services
	valkey   *cache.ValkeyClient
}

func NewConsumerService(cfg *config.Config) (*ConsumerService, error) {
	db, err := database.Connect(cfg.Database)
	if err != nil {
		return nil, err
	}

	natsClient, err := messaging.NewNATSClient(cfg.NATS)
	if err != nil {
		return nil, err
	}

	valkeyClient, err := cache.NewValkeyClient()
	if err != nil {
		slog.Warn("Valkey unavailable, availability cache will not be invalidated", "error", err)
		valkeyClient = nil
	}

	auditSink, err := audit.NewSink(cfg.Elasticsearch)
	if err != nil {
		slog.Warn("Elasticsearch unavailable, journal entries will be dropped", "error", err)
		auditSink = nil
	}

	paymentClient := external.NewPaymentClient(cfg.Payment)

	repos := repository.NewRepositories(db)

	var sink service.AuditWriter
	var journalSink AuditWriter
	if auditSink != nil {
		sink = auditSink
		journalSink = auditSink
	}

	services := service.NewServices(repos, natsClient, paymentClient, sink, service.Options{
		CheckoutTTL:          cfg.CheckoutTTL,
		AvailabilityCacheTTL: cfg.AvailabilityCacheTTL,
	})

	handlers := NewHandlers(journalSink, valkeyClient)

	return &ConsumerService{
		db:       db,
		nats:     natsClient,
		repos:    repos,
		handlers: handlers,
		services: services,
		valkey:   valkeyClient,
	}, nil
}

// Services exposes the wired service layer so the reaper job can share this
// process's connections.
func (cs *ConsumerService) Services() *service.Services {
	return cs.services
}

func (cs *ConsumerService) Start() error {
	slog.Info("Starting NATS consumers...")

	if _, err := cs.nats.SubscribeQueue("booking.created", "consumers", cs.handlers.HandleBookingCreated); err != nil {
		return err
	}
	if _, err := cs.nats.SubscribeQueue("booking.paid", "consumers", cs.handlers.HandleBookingPaid); err != nil {
		return err
	}
	if _, err := cs.nats.SubscribeQueue("booking.confirmed", "consumers", cs.handlers.HandleBookingConfirmed); err != nil {
		return err
	}
	if _, err := cs.nats.SubscribeQueue("booking.cancelled", "consumers", cs.handlers.HandleBookingCancelled); err != nil {
		return err
	}
	if _, err := cs.nats.SubscribeQueue("booking.expired", "consumers", cs.handlers.HandleBookingExpired); err != nil {
		return err
	}
	if _, err := cs.nats.SubscribeQueue("payment.completed", "consumers", cs.handlers.HandlePaymentCompleted); err != nil {
		return err
	}
	if _, err := cs.nats.SubscribeQueue("payment.failed", "consumers", cs.handlers.HandlePaymentFailed); err != nil {
		return err
	}
	if _, err := cs.nats.SubscribeQueue("refund.processed", "consumers", cs.handlers.HandleRefundProcessed); err != nil {
		return err
	}

	slog.Info("All consumers started successfully")
	return nil
}

func (cs *ConsumerService) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down consumer service...")

	if cs.nats != nil {
		if err := cs.nats.Close(); err != nil {
			slog.Error("Error closing NATS connection", "error", err)
		}
	}

	if cs.valkey != nil {
		if err := cs.valkey.Close(); err != nil {
			slog.Error("Error closing Valkey connection", "error", err)
		}
	}

	if cs.db != nil {
		if err := cs.db.Close(); err != nil {
			slog.Error("Error closing database connection", "error", err)
			return err
		}
	}

	return nil
}
