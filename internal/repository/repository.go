package repository

import (
	"bunkhouse/internal/database"
)

type Repositories struct {
	Bookings      *BookingRepository
	Payments      *PaymentRepository
	Capacity      *CapacityRepository
	WebhookEvents *WebhookEventRepository
}

func NewRepositories(db *database.DB) *Repositories {
	return &Repositories{
		Bookings:      NewBookingRepository(db),
		Payments:      NewPaymentRepository(db),
		Capacity:      NewCapacityRepository(db),
		WebhookEvents: NewWebhookEventRepository(db),
	}
}
