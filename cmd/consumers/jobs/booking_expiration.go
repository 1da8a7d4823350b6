package jobs

import (
	"context"
	"log/slog"
	"time"

	"bunkhouse/internal/service"
)

// BookingExpirationJob reaps pending bookings whose checkout window lapsed.
// It runs on a fixed interval and tolerates overlapping instances: the
// conditional status update inside the service makes double-expiry a no-op.
type BookingExpirationJob struct {
	bookings *service.BookingService
	interval time.Duration
	ticker   *time.Ticker
	done     chan bool
}

func NewBookingExpirationJob(bookings *service.BookingService, interval time.Duration) *BookingExpirationJob {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &BookingExpirationJob{
		bookings: bookings,
		interval: interval,
		done:     make(chan bool),
	}
}

// Start begins the background reaper loop.
func (j *BookingExpirationJob) Start(ctx context.Context) {
	slog.Info("Starting booking expiration job", "check_interval", j.interval.String())

	j.ticker = time.NewTicker(j.interval)

	// Run initial sweep immediately
	go j.sweep(ctx)

	go func() {
		for {
			select {
			case <-j.ticker.C:
				go j.sweep(ctx)
			case <-j.done:
				slog.Info("Booking expiration job stopped")
				return
			}
		}
	}()
}

// Stop gracefully stops the background job
func (j *BookingExpirationJob) Stop() {
	if j.ticker != nil {
		j.ticker.Stop()
	}
	close(j.done)
}

func (j *BookingExpirationJob) sweep(ctx context.Context) {
	expired, err := j.bookings.ExpireStale(ctx, time.Now().UTC())
	if err != nil {
		slog.Error("Booking expiration sweep failed", "error", err)
		return
	}

	if expired == 0 {
		slog.Debug("No expired bookings found")
		return
	}

	slog.Info("Expired stale bookings", "count", expired)
}
