package repository

import (
	"context"
	"database/sql"

	"bunkhouse/internal/database"
	"bunkhouse/internal/models"
)

type WebhookEventRepository struct {
	db *database.DB
}

func NewWebhookEventRepository(db *database.DB) *WebhookEventRepository {
	return &WebhookEventRepository{db: db}
}

// ClaimResult describes the outcome of claiming a provider event id for
// processing.
type ClaimResult struct {
	Event            *models.WebhookEvent
	AlreadyProcessed bool
}

// Claim records the first sight of a provider event id, or bumps the attempt
// counter on a retry. The check-and-insert is atomic: the unique constraint on
// provider_event_id decides races between concurrent deliveries, so two
// deliveries of the same event cannot both pass as first sight.
func (r *WebhookEventRepository) Claim(ctx context.Context, providerEventID, eventType string) (*ClaimResult, error) {
	insertQuery := `
		INSERT INTO webhook_events (provider_event_id, event_type, processing_attempts, last_attempt_at)
		VALUES ($1, $2, 1, NOW())
		ON CONFLICT (provider_event_id) DO NOTHING
		RETURNING id, provider_event_id, event_type, processed, processing_attempts, last_attempt_at, error_message, created_at`

	event := &models.WebhookEvent{}
	err := r.db.QueryRowContext(ctx, insertQuery, providerEventID, eventType).Scan(
		&event.ID,
		&event.ProviderEventID,
		&event.EventType,
		&event.Processed,
		&event.ProcessingAttempts,
		&event.LastAttemptAt,
		&event.ErrorMessage,
		&event.CreatedAt,
	)
	if err == nil {
		return &ClaimResult{Event: event}, nil
	}
	if err != sql.ErrNoRows {
		return nil, err
	}

	// The row already exists: either processed (duplicate delivery) or a
	// prior attempt failed and this delivery is a retry.
	updateQuery := `
		UPDATE webhook_events
		SET processing_attempts = CASE WHEN processed THEN processing_attempts ELSE processing_attempts + 1 END,
		    last_attempt_at = CASE WHEN processed THEN last_attempt_at ELSE NOW() END
		WHERE provider_event_id = $1
		RETURNING id, provider_event_id, event_type, processed, processing_attempts, last_attempt_at, error_message, created_at`

	err = r.db.QueryRowContext(ctx, updateQuery, providerEventID).Scan(
		&event.ID,
		&event.ProviderEventID,
		&event.EventType,
		&event.Processed,
		&event.ProcessingAttempts,
		&event.LastAttemptAt,
		&event.ErrorMessage,
		&event.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &ClaimResult{Event: event, AlreadyProcessed: event.Processed}, nil
}

// MarkProcessed flags the event as applied. Called only after all downstream
// writes have committed.
func (r *WebhookEventRepository) MarkProcessed(ctx context.Context, id int64) error {
	query := `
		UPDATE webhook_events
		SET processed = TRUE, error_message = NULL
		WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	return err
}

// RecordFailure stores the processing error for observability; the event stays
// unprocessed so a later delivery can retry it.
func (r *WebhookEventRepository) RecordFailure(ctx context.Context, id int64, errMsg string) error {
	query := `
		UPDATE webhook_events
		SET error_message = $1
		WHERE id = $2`
	_, err := r.db.ExecContext(ctx, query, errMsg, id)
	return err
}
