package credits

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/creditmeter-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	columnToppedUp = "total_topped_up_cents"
	columnSpent    = "total_spent_cents"
)

// Repository manages persistence for credit account rows.
type Repository interface {
	FindByUserID(ctx context.Context, userID uuid.UUID) (*models.CreditAccount, error)
	IncrementToppedUp(ctx context.Context, userID uuid.UUID, cents int64) error
	IncrementSpent(ctx context.Context, userID uuid.UUID, cents int64) error
}

type repository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewRepository returns a credits repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db, now: time.Now}
}

// FindByUserID returns nil without error when the user has no row yet.
func (r *repository) FindByUserID(ctx context.Context, userID uuid.UUID) (*models.CreditAccount, error) {
	var account models.CreditAccount
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Take(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *repository) IncrementToppedUp(ctx context.Context, userID uuid.UUID, cents int64) error {
	return r.increment(ctx, userID, columnToppedUp, cents)
}

func (r *repository) IncrementSpent(ctx context.Context, userID uuid.UUID, cents int64) error {
	return r.increment(ctx, userID, columnSpent, cents)
}

// increment creates the row with the delta already applied, or adds the delta
// to the existing total in the same statement. The database serializes
// concurrent upserts on the primary key, so no increment is lost.
func (r *repository) increment(ctx context.Context, userID uuid.UUID, column string, cents int64) error {
	now := r.now().UTC()
	account := models.CreditAccount{
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	switch column {
	case columnToppedUp:
		account.TotalToppedUpCents = cents
	case columnSpent:
		account.TotalSpentCents = cents
	default:
		return fmt.Errorf("unknown credit column %q", column)
	}

	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				column:       gorm.Expr(fmt.Sprintf("credit_accounts.%s + ?", column), cents),
				"updated_at": now,
			}),
		}).
		Create(&account).Error
}
