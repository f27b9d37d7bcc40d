package payments

import (
	"context"
	"errors"

	"github.com/angelmondragon/creditmeter-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository persists payment records.
type Repository interface {
	Create(ctx context.Context, record *models.PaymentRecord) error
	FindBySessionID(ctx context.Context, externalSessionID string) (*models.PaymentRecord, error)
	ListRecentByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.PaymentRecord, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a payments repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, record *models.PaymentRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

// FindBySessionID returns nil without error when no record exists.
func (r *repository) FindBySessionID(ctx context.Context, externalSessionID string) (*models.PaymentRecord, error) {
	var record models.PaymentRecord
	err := r.db.WithContext(ctx).
		Where("external_session_id = ?", externalSessionID).
		Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *repository) ListRecentByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.PaymentRecord, error) {
	var records []models.PaymentRecord
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}
