package usage

import (
	"context"

	"github.com/angelmondragon/creditmeter-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository persists usage events. There is no update or delete path.
type Repository interface {
	Create(ctx context.Context, event *models.UsageEvent) error
	ListRecentByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.UsageEvent, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a usage repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, event *models.UsageEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *repository) ListRecentByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.UsageEvent, error) {
	var events []models.UsageEvent
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}
