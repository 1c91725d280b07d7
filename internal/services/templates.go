package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"catalog-import-service/internal/models"
	"catalog-import-service/internal/repository"
)

var ErrTemplateNotFound = errors.New("no active import template for category")

// TemplateRegistry resolves the active template of a category
type TemplateRegistry struct {
	repo          repository.TemplateRepositoryInterface
	identityField string
	logger        *logrus.Entry
}

func NewTemplateRegistry(repo repository.TemplateRepositoryInterface, identityField string, logger *logrus.Logger) *TemplateRegistry {
	if identityField == "" {
		identityField = models.DefaultIdentityField
	}
	return &TemplateRegistry{
		repo:          repo,
		identityField: identityField,
		logger:        logger.WithField("component", "templates"),
	}
}

// Resolve returns the category's active template or ErrTemplateNotFound
func (r *TemplateRegistry) Resolve(ctx context.Context, categoryID string) (*models.Template, error) {
	tpl, err := r.repo.GetByCategory(ctx, categoryID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, categoryID)
		}
		return nil, fmt.Errorf("failed to load template for category %s: %w", categoryID, err)
	}
	if !tpl.IsActive {
		return nil, fmt.Errorf("%w: %s (template inactive)", ErrTemplateNotFound, categoryID)
	}
	if tpl.IdentityField == "" {
		tpl.IdentityField = r.identityField
	}
	return tpl, nil
}

// Save validates and stores a template for its category
func (r *TemplateRegistry) Save(ctx context.Context, tpl *models.Template) error {
	if tpl.IdentityField == "" {
		tpl.IdentityField = r.identityField
	}
	if err := tpl.Validate(); err != nil {
		return err
	}
	if err := r.repo.Save(ctx, tpl); err != nil {
		return fmt.Errorf("failed to save template: %w", err)
	}

	r.logger.WithFields(logrus.Fields{
		"category_id":     tpl.CategoryID,
		"required_fields": len(tpl.RequiredFields),
		"fields":          len(tpl.Fields),
	}).Info("Template saved")
	return nil
}
