package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"agri_market_v1/internal/model"
)

// FavoriteRepository 收藏仓储
type FavoriteRepository interface {
	Add(ctx context.Context, userID, listingID int64) error
	Remove(ctx context.Context, userID, listingID int64) error
	ListByUser(ctx context.Context, userID int64) ([]model.Favorite, error)
}

type favoriteRepo struct {
	db *gorm.DB
}

// NewFavoriteRepository 创建收藏仓储
func NewFavoriteRepository(db *gorm.DB) FavoriteRepository {
	return &favoriteRepo{db: db}
}

// Add 幂等添加
func (r *favoriteRepo) Add(ctx context.Context, userID, listingID int64) error {
	fav := &model.Favorite{UserID: userID, ListingID: listingID}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(fav).Error
}

// Remove 物理删除，不存在时不报错
func (r *favoriteRepo) Remove(ctx context.Context, userID, listingID int64) error {
	return r.db.WithContext(ctx).Unscoped().
		Where("user_id = ? AND listing_id = ?", userID, listingID).
		Delete(&model.Favorite{}).Error
}

// ListByUser 按收藏时间倒序；商品详情由调用方从商品仓储读取
func (r *favoriteRepo) ListByUser(ctx context.Context, userID int64) ([]model.Favorite, error) {
	var favs []model.Favorite
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&favs).Error
	return favs, err
}
