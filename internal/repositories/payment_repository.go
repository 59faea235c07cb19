package repositories

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"sajupia/internal/models/db_models"
)

type PaymentRepository interface {
	Insert(ctx context.Context, payment *db_models.Payment) error
	ListByUser(ctx context.Context, userID uuid.UUID) ([]db_models.Payment, error)
}

type paymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

func (p *paymentRepository) Insert(ctx context.Context, payment *db_models.Payment) error {
	return p.db.WithContext(ctx).Create(payment).Error
}

func (p *paymentRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]db_models.Payment, error) {
	var payments []db_models.Payment
	err := p.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&payments).Error
	return payments, err
}
