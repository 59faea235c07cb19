package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"sajupia/internal/models/db_models"
)

type TestFilter struct {
	Name   string
	Limit  int
	Offset int
}

type TestRepository interface {
	Insert(ctx context.Context, test *db_models.Test) error
	FindByIDForUser(ctx context.Context, id, userID uuid.UUID) (*db_models.Test, error)
	List(ctx context.Context, userID uuid.UUID, filter TestFilter) ([]db_models.Test, int64, error)
	// SetAnalysisResult writes the result only while it is still empty.
	SetAnalysisResult(ctx context.Context, id uuid.UUID, result string) (bool, error)
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteForUser(ctx context.Context, id, userID uuid.UUID) (bool, error)
}

type testRepository struct {
	db *gorm.DB
}

func NewTestRepository(db *gorm.DB) TestRepository {
	return &testRepository{db: db}
}

func (t *testRepository) Insert(ctx context.Context, test *db_models.Test) error {
	return t.db.WithContext(ctx).Create(test).Error
}

func (t *testRepository) FindByIDForUser(ctx context.Context, id, userID uuid.UUID) (*db_models.Test, error) {
	var test db_models.Test
	err := t.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&test).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &test, nil
}

func (t *testRepository) List(ctx context.Context, userID uuid.UUID, filter TestFilter) ([]db_models.Test, int64, error) {
	query := t.db.WithContext(ctx).Model(&db_models.Test{}).Where("user_id = ?", userID)
	if filter.Name != "" {
		query = query.Where("name LIKE ?", "%"+filter.Name+"%")
	}
	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var tests []db_models.Test
	err := query.
		Order("created_at DESC").
		Order("id DESC").
		Limit(filter.Limit).
		Offset(filter.Offset).
		Find(&tests).Error
	if err != nil {
		return nil, 0, err
	}
	return tests, total, nil
}

func (t *testRepository) SetAnalysisResult(ctx context.Context, id uuid.UUID, result string) (bool, error) {
	res := t.db.WithContext(ctx).
		Model(&db_models.Test{}).
		Where("id = ? AND analysis_result IS NULL", id).
		Updates(map[string]interface{}{
			"analysis_result": result,
			"updated_at":      time.Now().Unix(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (t *testRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return t.db.WithContext(ctx).Where("id = ?", id).Delete(&db_models.Test{}).Error
}

func (t *testRepository) DeleteForUser(ctx context.Context, id, userID uuid.UUID) (bool, error) {
	res := t.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&db_models.Test{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
