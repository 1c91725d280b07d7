package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"catalog-import-service/internal/models"
)

const (
	SubjectImportCompleted = "catalog.import.completed"
	SubjectPhotosCompleted = "catalog.photos.completed"
)

// RunCompletedEvent is published once per finished import or photo run
type RunCompletedEvent struct {
	EventID    string              `json:"event_id"`
	EventType  string              `json:"event_type"`
	RunID      string              `json:"run_id"`
	Kind       models.ImportKind   `json:"kind"`
	CategoryID string              `json:"category_id"`
	FileName   string              `json:"file_name,omitempty"`
	Status     models.ImportStatus `json:"status"`
	Counts     map[string]int      `json:"counts"`
	RecordIDs  []string            `json:"record_ids,omitempty"`
	Timestamp  time.Time           `json:"timestamp"`
}

// Publisher sends run completion events to NATS
type Publisher struct {
	conn   *nats.Conn
	logger *logrus.Entry
}

// NewPublisher connects to NATS
func NewPublisher(natsURL string, logger *logrus.Logger) (*Publisher, error) {
	if natsURL == "" {
		return nil, fmt.Errorf("NATS_URL not set")
	}

	conn, err := nats.Connect(natsURL,
		nats.Name("catalog-import-service"),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &Publisher{
		conn:   conn,
		logger: logger.WithField("component", "events.publisher"),
	}, nil
}

// Close drains and closes the NATS connection
func (p *Publisher) Close() {
	if p == nil || p.conn == nil {
		return
	}
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
	}
}

// PublishImportCompleted publishes a catalog.import.completed event
func (p *Publisher) PublishImportCompleted(ctx context.Context, report *models.ImportReport, status models.ImportStatus) error {
	ids := make([]string, 0, len(report.CreatedIDs)+len(report.UpdatedIDs))
	ids = append(ids, report.CreatedIDs...)
	ids = append(ids, report.UpdatedIDs...)

	event := RunCompletedEvent{
		EventType:  SubjectImportCompleted,
		RunID:      report.RunID,
		Kind:       models.ImportKindProducts,
		CategoryID: report.CategoryID,
		FileName:   report.FileName,
		Status:     status,
		Counts: map[string]int{
			"total":   report.Total,
			"created": report.Created,
			"updated": report.Updated,
			"invalid": report.Invalid,
			"skipped": report.Skipped,
		},
		RecordIDs: ids,
	}
	return p.publish(ctx, SubjectImportCompleted, event)
}

// PublishPhotosCompleted publishes a catalog.photos.completed event
func (p *Publisher) PublishPhotosCompleted(ctx context.Context, report *models.PhotoReport, status models.ImportStatus) error {
	event := RunCompletedEvent{
		EventType:  SubjectPhotosCompleted,
		RunID:      report.RunID,
		Kind:       models.ImportKindPhotos,
		CategoryID: report.CategoryID,
		Status:     status,
		Counts: map[string]int{
			"total":         report.Total,
			"uploaded":      report.Uploaded,
			"linked":        report.Linked,
			"errors":        report.Errors,
			"unmatched":     report.Unmatched,
			"uniqueRecords": report.UniqueRecords,
		},
	}
	return p.publish(ctx, SubjectPhotosCompleted, event)
}

func (p *Publisher) publish(ctx context.Context, subject string, event RunCompletedEvent) error {
	if p == nil || p.conn == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	event.EventID = uuid.New().String()
	event.Timestamp = time.Now().UTC()

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", subject, err)
	}
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", subject, err)
	}

	p.logger.WithFields(logrus.Fields{
		"subject":     subject,
		"run_id":      event.RunID,
		"category_id": event.CategoryID,
	}).Debug("Published run event")
	return nil
}
