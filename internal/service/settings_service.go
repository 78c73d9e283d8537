package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/enrollment-finance-api/internal/dto"
	"github.com/noah-isme/enrollment-finance-api/internal/models"
	appErrors "github.com/noah-isme/enrollment-finance-api/pkg/errors"
)

type settingsRepository interface {
	Get(ctx context.Context) (*models.PaymentSettings, error)
	Upsert(ctx context.Context, settings *models.PaymentSettings) error
}

// SettingsService exposes the payment destination shown to students before they transfer.
type SettingsService struct {
	repo      settingsRepository
	audit     *AuditService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSettingsService constructs the settings service. audit may be nil.
func NewSettingsService(repo settingsRepository, audit *AuditService, validate *validator.Validate, logger *zap.Logger) *SettingsService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SettingsService{repo: repo, audit: audit, validator: validate, logger: logger}
}

// Get returns the current payment settings.
func (s *SettingsService) Get(ctx context.Context) (*models.PaymentSettings, error) {
	settings, err := s.repo.Get(ctx)
	if err != nil {
		return nil, loadError(err, "payment settings")
	}
	return settings, nil
}

// Update replaces the payment settings. Admin only.
func (s *SettingsService) Update(ctx context.Context, actor models.Actor, req dto.PaymentSettingsRequest) (*models.PaymentSettings, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payment settings payload")
	}

	updatedBy := actor.ID
	settings := &models.PaymentSettings{
		BankName:      strings.TrimSpace(req.BankName),
		AccountNumber: strings.TrimSpace(req.AccountNumber),
		AccountHolder: strings.TrimSpace(req.AccountHolder),
		AccountType:   req.AccountType,
		QRImageURL:    req.QRImageURL,
		Instructions:  req.Instructions,
		UpdatedBy:     &updatedBy,
	}
	if err := s.repo.Upsert(ctx, settings); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save payment settings")
	}
	s.audit.Record(ctx, AuditEntry{
		Actor:     actor,
		Action:    models.AuditActionSettingsUpdate,
		Resource:  "payment_settings",
		NewValues: settings,
	})
	return settings, nil
}
