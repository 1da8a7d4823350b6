package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"bunkhouse/internal/config"
	"bunkhouse/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// Sink is the append-only audit log backed by an Elasticsearch index. The
// engine only ever writes to it; nothing reads it back for decisions.
type Sink struct {
	client *elasticsearch.Client
	config config.ElasticsearchConfig
}

func NewSink(cfg config.ElasticsearchConfig) (*Sink, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses:     []string{cfg.URL},
		Username:      cfg.Username,
		Password:      cfg.Password,
		RetryOnStatus: []int{502, 503, 504, 429},
		MaxRetries:    cfg.MaxRetries,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Elasticsearch client: %w", err)
	}

	sink := &Sink{
		client: es,
		config: cfg,
	}

	if err := sink.ensureIndex(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ensure index exists: %w", err)
	}

	return sink, nil
}

// ensureIndex creates the audit index if it does not exist
func (s *Sink) ensureIndex(ctx context.Context) error {
	req := esapi.IndicesExistsRequest{
		Index: []string{s.config.Index},
	}

	res, err := req.Do(ctx, s.client)
	if err != nil {
		return fmt.Errorf("failed to check index existence: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == 200 {
		slog.Info("Elasticsearch index already exists", "index", s.config.Index)
		return nil
	}

	mapping := map[string]interface{}{
		"settings": map[string]interface{}{
			"number_of_shards":   1,
			"number_of_replicas": 0,
		},
		"mappings": map[string]interface{}{
			"properties": map[string]interface{}{
				"timestamp": map[string]interface{}{
					"type":   "date",
					"format": "strict_date_optional_time||epoch_millis",
				},
				"actor": map[string]interface{}{
					"type": "keyword",
				},
				"action": map[string]interface{}{
					"type": "keyword",
				},
				"resource_type": map[string]interface{}{
					"type": "keyword",
				},
				"resource_id": map[string]interface{}{
					"type": "keyword",
				},
				"success": map[string]interface{}{
					"type": "boolean",
				},
				"details": map[string]interface{}{
					"type": "text",
				},
			},
		},
	}

	mappingJSON, err := json.Marshal(mapping)
	if err != nil {
		return fmt.Errorf("failed to marshal mapping: %w", err)
	}

	createReq := esapi.IndicesCreateRequest{
		Index: s.config.Index,
		Body:  bytes.NewReader(mappingJSON),
	}

	createRes, err := createReq.Do(ctx, s.client)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	defer createRes.Body.Close()

	if createRes.IsError() {
		return fmt.Errorf("failed to create index: %s", createRes.String())
	}

	slog.Info("Created Elasticsearch audit index", "index", s.config.Index)
	return nil
}

// Write appends one entry. Failures are logged and swallowed: the audit sink
// is an observer and must never abort the operation it records.
func (s *Sink) Write(ctx context.Context, entry models.AuditLogEntry) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	doc, err := json.Marshal(entry)
	if err != nil {
		slog.Error("Failed to marshal audit entry", "error", err, "action", entry.Action)
		return
	}

	req := esapi.IndexRequest{
		Index: s.config.Index,
		Body:  bytes.NewReader(doc),
	}

	res, err := req.Do(ctx, s.client)
	if err != nil {
		slog.Error("Failed to write audit entry",
			"error", err,
			"action", entry.Action,
			"resource_type", entry.ResourceType,
			"resource_id", entry.ResourceID)
		return
	}
	defer res.Body.Close()

	if res.IsError() {
		slog.Error("Audit index rejected entry", "status", res.StatusCode, "action", entry.Action)
	}
}
