package repository

import (
	"context"

	"gorm.io/gorm"

	"agri_market_v1/internal/model"
)

// CategoryRepository 分类目录（只读）
type CategoryRepository interface {
	List(ctx context.Context) ([]model.Category, error)
}

type categoryRepo struct {
	db *gorm.DB
}

// NewCategoryRepository 创建分类仓储
func NewCategoryRepository(db *gorm.DB) CategoryRepository {
	return &categoryRepo{db: db}
}

func (r *categoryRepo) List(ctx context.Context) ([]model.Category, error) {
	var categories []model.Category
	err := r.db.WithContext(ctx).Order("sort ASC").Order("id ASC").Find(&categories).Error
	return categories, err
}
