package consumers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"bunkhouse/internal/cache"
	"bunkhouse/internal/models"

	"github.com/nats-io/stan.go"
)

// AuditWriter appends journal entries downstream of the message bus.
type AuditWriter interface {
	Write(ctx context.Context, entry models.AuditLogEntry)
}

// Handlers consume lifecycle events off the bus. They keep the audit journal
// complete even for events published by other instances, and drop the cached
// availability whenever remaining capacity changed.
type Handlers struct {
	auditSink    AuditWriter
	valkeyClient *cache.ValkeyClient
}

func NewHandlers(auditSink AuditWriter, valkeyClient *cache.ValkeyClient) *Handlers {
	return &Handlers{
		auditSink:    auditSink,
		valkeyClient: valkeyClient,
	}
}

func (h *Handlers) journal(action, resourceID, details string) {
	if h.auditSink == nil {
		return
	}
	h.auditSink.Write(context.Background(), models.AuditLogEntry{
		Actor:        "consumer",
		Action:       action,
		ResourceType: "booking",
		ResourceID:   resourceID,
		Success:      true,
		Details:      details,
	})
}

func (h *Handlers) invalidateAvailability() {
	if h.valkeyClient == nil {
		return
	}
	if err := h.valkeyClient.InvalidateAvailability(context.Background()); err != nil {
		slog.Error("Failed to invalidate availability cache", "error", err)
	}
}

func (h *Handlers) HandleBookingCreated(m *stan.Msg) {
	var event models.BookingCreatedEvent
	if err := json.Unmarshal(m.Data, &event); err != nil {
		slog.Error("Failed to unmarshal booking created event", "error", err)
		return
	}

	slog.Info("Processing booking created event", "booking_id", event.BookingID)

	h.journal("journal.booking_created", event.BookingID,
		fmt.Sprintf("session=%s amount=%d", event.SessionID, event.TotalAmount))
	h.invalidateAvailability()

	m.Ack()
}

func (h *Handlers) HandleBookingPaid(m *stan.Msg) {
	var event models.BookingPaidEvent
	if err := json.Unmarshal(m.Data, &event); err != nil {
		slog.Error("Failed to unmarshal booking paid event", "error", err)
		return
	}

	slog.Info("Processing booking paid event", "booking_id", event.BookingID)

	h.journal("journal.booking_paid", event.BookingID,
		fmt.Sprintf("payment=%s", event.PaymentID))

	m.Ack()
}

func (h *Handlers) HandleBookingConfirmed(m *stan.Msg) {
	var event models.BookingConfirmedEvent
	if err := json.Unmarshal(m.Data, &event); err != nil {
		slog.Error("Failed to unmarshal booking confirmed event", "error", err)
		return
	}

	slog.Info("Processing booking confirmed event", "booking_id", event.BookingID)

	h.journal("journal.booking_confirmed", event.BookingID,
		fmt.Sprintf("actor=%s", event.Actor))

	m.Ack()
}

func (h *Handlers) HandleBookingCancelled(m *stan.Msg) {
	var event models.BookingCancelledEvent
	if err := json.Unmarshal(m.Data, &event); err != nil {
		slog.Error("Failed to unmarshal booking cancelled event", "error", err)
		return
	}

	slog.Info("Processing booking cancelled event", "booking_id", event.BookingID)

	h.journal("journal.booking_cancelled", event.BookingID, event.Reason)
	h.invalidateAvailability()

	m.Ack()
}

func (h *Handlers) HandleBookingExpired(m *stan.Msg) {
	var event models.BookingExpiredEvent
	if err := json.Unmarshal(m.Data, &event); err != nil {
		slog.Error("Failed to unmarshal booking expired event", "error", err)
		return
	}

	slog.Info("Processing booking expired event", "booking_id", event.BookingID)

	h.journal("journal.booking_expired", event.BookingID, event.Reason)
	h.invalidateAvailability()

	m.Ack()
}

func (h *Handlers) HandlePaymentCompleted(m *stan.Msg) {
	var event models.PaymentCompletedEvent
	if err := json.Unmarshal(m.Data, &event); err != nil {
		slog.Error("Failed to unmarshal payment completed event", "error", err)
		return
	}

	slog.Info("Processing payment completed event",
		"booking_id", event.BookingID,
		"amount", event.Amount)

	h.journal("journal.payment_completed", event.BookingID,
		fmt.Sprintf("payment=%s amount=%d", event.PaymentID, event.Amount))

	m.Ack()
}

func (h *Handlers) HandlePaymentFailed(m *stan.Msg) {
	var event models.PaymentFailedEvent
	if err := json.Unmarshal(m.Data, &event); err != nil {
		slog.Error("Failed to unmarshal payment failed event", "error", err)
		return
	}

	slog.Info("Processing payment failed event",
		"booking_id", event.BookingID,
		"reason", event.Reason)

	h.journal("journal.payment_failed", event.BookingID, event.Reason)
	h.invalidateAvailability()

	m.Ack()
}

func (h *Handlers) HandleRefundProcessed(m *stan.Msg) {
	var event models.RefundProcessedEvent
	if err := json.Unmarshal(m.Data, &event); err != nil {
		slog.Error("Failed to unmarshal refund processed event", "error", err)
		return
	}

	slog.Info("Processing refund processed event",
		"booking_id", event.BookingID,
		"amount_refunded", event.AmountRefunded,
		"full_refund", event.FullRefund)

	h.journal("journal.refund_processed", event.BookingID,
		fmt.Sprintf("refund=%s amount=%d full=%t", event.RefundID, event.AmountRefunded, event.FullRefund))

	// A full refund released the booking's holds.
	if event.FullRefund {
		h.invalidateAvailability()
	}

	m.Ack()
}
