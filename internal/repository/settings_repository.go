package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/enrollment-finance-api/internal/models"
)

// SettingsRepository persists the payment destination singleton.
type SettingsRepository struct {
	db *sqlx.DB
}

// NewSettingsRepository constructs the repository.
func NewSettingsRepository(db *sqlx.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Get returns the stored settings or sql.ErrNoRows when none were saved yet.
func (r *SettingsRepository) Get(ctx context.Context) (*models.PaymentSettings, error) {
	const query = `SELECT bank_name, account_number, account_holder, account_type, qr_image_url, instructions, updated_by, updated_at
        FROM payment_settings WHERE id = 1`
	var settings models.PaymentSettings
	if err := r.db.GetContext(ctx, &settings, query); err != nil {
		return nil, err
	}
	return &settings, nil
}

// Upsert replaces the singleton row.
func (r *SettingsRepository) Upsert(ctx context.Context, settings *models.PaymentSettings) error {
	settings.UpdatedAt = time.Now().UTC()
	const query = `INSERT INTO payment_settings (id, bank_name, account_number, account_holder, account_type, qr_image_url, instructions, updated_by, updated_at)
        VALUES (1, :bank_name, :account_number, :account_holder, :account_type, :qr_image_url, :instructions, :updated_by, :updated_at)
        ON CONFLICT (id) DO UPDATE SET bank_name = EXCLUDED.bank_name, account_number = EXCLUDED.account_number,
        account_holder = EXCLUDED.account_holder, account_type = EXCLUDED.account_type, qr_image_url = EXCLUDED.qr_image_url,
        instructions = EXCLUDED.instructions, updated_by = EXCLUDED.updated_by, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, settings); err != nil {
		return fmt.Errorf("upsert payment settings: %w", err)
	}
	return nil
}
