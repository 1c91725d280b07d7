package events

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"catalog-import-service/internal/models"
)

func TestPublisher_NilIsNoop(t *testing.T) {
	var p *Publisher
	ctx := context.Background()

	assert.NoError(t, p.PublishImportCompleted(ctx, &models.ImportReport{RunID: "r1"}, models.ImportStatusCompleted))
	assert.NoError(t, p.PublishPhotosCompleted(ctx, &models.PhotoReport{RunID: "r2"}, models.ImportStatusPartial))
	p.Close()
}

func TestNewPublisher_RequiresURL(t *testing.T) {
	_, err := NewPublisher("", logrus.New())
	assert.Error(t, err)
}
