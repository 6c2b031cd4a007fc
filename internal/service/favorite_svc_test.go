package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"agri_market_v1/internal/api/dto"
	"agri_market_v1/internal/model"
	"agri_market_v1/internal/repository"
)

func setupServiceTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("连接测试数据库失败: %v", err)
	}

	err = db.AutoMigrate(&model.Listing{}, &model.Favorite{})
	if err != nil {
		t.Fatalf("数据库迁移失败: %v", err)
	}
	return db
}

func TestFavoriteService(t *testing.T) {
	db := setupServiceTestDB(t)
	listingRepo := repository.NewListingRepository(db)
	listings := NewListingService(listingRepo, &mockImageStore{}, zaptest.NewLogger(t), time.Hour)
	svc := NewFavoriteService(repository.NewFavoriteRepository(db), listings, zaptest.NewLogger(t))
	ctx := context.Background()

	id, err := listingRepo.CreateListing(ctx, 1, &dto.ListingPayload{
		Title: "土豆", Description: "黄心", Price: 1.2, Quantity: 5000, CategoryID: 2, City: "定西",
		Status: model.StatusActive, Condition: model.ConditionFresh, Certification: model.CertificationNone,
		PaymentTerms: model.PaymentToAgree, PriceUnit: model.PricePerKg, QuantityUnit: model.QuantityKg,
		DeliveryAvailable: model.No, PriceNegotiable: model.Yes,
	})
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Add(ctx, 9, 12345), ErrListingNotFound)
	require.NoError(t, svc.Add(ctx, 9, id))

	favs, err := svc.List(ctx, 9)
	require.NoError(t, err)
	require.Len(t, favs, 1)
	assert.Equal(t, "土豆", favs[0].Title)
	assert.Equal(t, "1.2", favs[0].Price)
	assert.Empty(t, favs[0].Images)

	// 商品被删除后收藏列表跳过
	require.NoError(t, db.Delete(&model.Listing{}, id).Error)
	favs, err = svc.List(ctx, 9)
	require.NoError(t, err)
	assert.Empty(t, favs)

	require.NoError(t, svc.Remove(ctx, 9, id))
}
