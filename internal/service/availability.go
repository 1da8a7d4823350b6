package service

import (
	"context"
	"fmt"
	"time"

	apperrors "bunkhouse/internal/errors"
	"bunkhouse/internal/logger"
	"bunkhouse/internal/models"
)

// FallbackCapacity is used when no active rooms are configured so the
// availability endpoint degrades gracefully instead of failing. A deliberate
// product decision, always logged as a warning.
const FallbackCapacity = 10

const dateLayout = "2006-01-02"

type AvailabilityService struct {
	capacityRepo CapacityStore
	cacheTTL     time.Duration
}

func NewAvailabilityService(capacityRepo CapacityStore, cacheTTL time.Duration) *AvailabilityService {
	return &AvailabilityService{
		capacityRepo: capacityRepo,
		cacheTTL:     cacheTTL,
	}
}

// GetAvailability derives per-date remaining capacity over [startDate,
// endDate). A query with startDate == endDate is a single-day query and
// returns exactly one entry. Pure read, safe to call concurrently with
// writers.
func (s *AvailabilityService) GetAvailability(ctx context.Context, startDate, endDate string, participants int) (*models.AvailabilityResponse, error) {
	start, err := time.Parse(dateLayout, startDate)
	if err != nil {
		return nil, apperrors.NewValidationError("start_date", "invalid date, expected YYYY-MM-DD")
	}
	end, err := time.Parse(dateLayout, endDate)
	if err != nil {
		return nil, apperrors.NewValidationError("end_date", "invalid date, expected YYYY-MM-DD")
	}
	if end.Before(start) {
		return nil, apperrors.NewValidationError("end_date", "end_date is before start_date")
	}
	if participants < 1 {
		participants = 1
	}

	// Single-day queries still cover one date.
	rangeEnd := end
	if !end.After(start) {
		rangeEnd = start.AddDate(0, 0, 1)
	}

	rooms, err := s.capacityRepo.ListActiveRooms(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}

	fallback := false
	capacity := 0
	for _, room := range rooms {
		capacity += room.Capacity
	}
	if len(rooms) == 0 {
		capacity = FallbackCapacity
		fallback = true
		logger.WithContext(ctx).Warn("No active rooms configured, using fallback capacity",
			"fallback_capacity", FallbackCapacity,
			"start_date", startDate,
			"end_date", endDate)
	}

	assignments, err := s.capacityRepo.ActiveAssignmentsInRange(ctx, start, rangeEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to load assignments: %w", err)
	}

	var days []models.DateAvailability
	soldOut := 0
	for date := start; date.Before(rangeEnd); date = date.AddDate(0, 0, 1) {
		// One active assignment consumes exactly one unit, regardless of
		// how many guests it covers.
		booked := 0
		for i := range assignments {
			if assignments[i].Overlaps(date) {
				booked++
			}
		}

		remaining := capacity - booked
		if remaining < 0 {
			remaining = 0
		}

		if remaining == 0 {
			soldOut++
		}

		days = append(days, models.DateAvailability{
			Date:      date.Format(dateLayout),
			Capacity:  capacity,
			Booked:    booked,
			Remaining: remaining,
			Available: remaining >= participants,
		})
	}

	now := time.Now().UTC()
	return &models.AvailabilityResponse{
		DateAvailability: days,
		Summary: models.AvailabilitySummary{
			TotalDatesChecked:     len(days),
			ParticipantsRequested: participants,
			TotalCapacity:         capacity,
			SoldOutDates:          soldOut,
		},
		CheckedAt:      now,
		CacheExpiresAt: now.Add(s.cacheTTL),
		Fallback:       fallback,
	}, nil
}

// CacheTTL exposes the freshness window stamped on responses so the handler
// can align the Valkey TTL with cache_expires_at.
func (s *AvailabilityService) CacheTTL() time.Duration {
	return s.cacheTTL
}
