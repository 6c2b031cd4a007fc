package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"agri_market_v1/internal/api/dto"
	"agri_market_v1/internal/model"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("连接测试数据库失败: %v", err)
	}

	err = db.AutoMigrate(&model.Listing{}, &model.Category{}, &model.Favorite{})
	if err != nil {
		t.Fatalf("数据库迁移失败: %v", err)
	}
	return db
}

func strPtr(s string) *string { return &s }

func samplePayload() *dto.ListingPayload {
	return &dto.ListingPayload{
		Title:             "红富士苹果",
		Description:       "山东烟台产",
		Price:             4.5,
		Quantity:          2000,
		CategoryID:        3,
		City:              "烟台",
		Province:          strPtr("山东"),
		Status:            model.StatusActive,
		Condition:         model.ConditionFresh,
		Certification:     model.CertificationNone,
		PaymentTerms:      model.PaymentToAgree,
		PriceUnit:         model.PricePerKg,
		QuantityUnit:      model.QuantityKg,
		DeliveryAvailable: model.Yes,
		PriceNegotiable:   model.No,
		Images:            []string{"https://cdn/a.jpg", "https://cdn/b.jpg"},
	}
}

func TestListingRepo_CreateAndFetch(t *testing.T) {
	repo := NewListingRepository(setupTestDB(t))
	ctx := context.Background()

	id, err := repo.CreateListing(ctx, 42, samplePayload())
	require.NoError(t, err)
	require.NotZero(t, id)

	r, err := repo.FetchListing(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(42), r.OwnerID)
	assert.Equal(t, "红富士苹果", *r.Title)
	assert.Equal(t, 4.5, r.Price)
	assert.Equal(t, int64(3), r.CategoryID)
	assert.Equal(t, model.StatusActive, r.Status)
	assert.Nil(t, r.MinOrderQuantity)
	assert.Nil(t, r.Address)
	assert.Equal(t, []string{"https://cdn/a.jpg", "https://cdn/b.jpg"}, r.Images)
	updated, ok := r.UpdatedAt.(time.Time)
	require.True(t, ok)
	assert.False(t, updated.IsZero())
}

func TestListingRepo_FetchNotFound(t *testing.T) {
	repo := NewListingRepository(setupTestDB(t))
	_, err := repo.FetchListing(context.Background(), 999)
	assert.ErrorIs(t, err, ErrListingNotFound)
}

func TestListingRepo_FetchLooseRecord(t *testing.T) {
	db := setupTestDB(t)
	repo := NewListingRepository(db)

	// 历史脏数据：非法状态、空价格、无图片
	require.NoError(t, db.Create(&model.Listing{OwnerID: 1, Status: strPtr("SOLD_OUT")}).Error)

	r, err := repo.FetchListing(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "SOLD_OUT", r.Status)
	assert.Nil(t, r.Price)
	assert.Nil(t, r.Images)
	assert.Nil(t, r.Condition)
}

func TestListingRepo_UpdateOwnership(t *testing.T) {
	repo := NewListingRepository(setupTestDB(t))
	ctx := context.Background()

	id, err := repo.CreateListing(ctx, 7, samplePayload())
	require.NoError(t, err)

	p := samplePayload()
	p.Title = "改名"
	p.Province = nil
	p.Images = []string{"https://cdn/c.jpg"}

	assert.ErrorIs(t, repo.UpdateListing(ctx, id, 8, p), ErrNotOwner)
	assert.ErrorIs(t, repo.UpdateListing(ctx, id+100, 7, p), ErrListingNotFound)

	require.NoError(t, repo.UpdateListing(ctx, id, 7, p))

	r, err := repo.FetchListing(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "改名", *r.Title)
	assert.Nil(t, r.Province)
	assert.Equal(t, []string{"https://cdn/c.jpg"}, r.Images)
}

func TestListingRepo_List(t *testing.T) {
	repo := NewListingRepository(setupTestDB(t))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := repo.CreateListing(ctx, 1, samplePayload())
		require.NoError(t, err)
	}
	other := samplePayload()
	other.CategoryID = 9
	other.Status = model.StatusSold
	_, err := repo.CreateListing(ctx, 2, other)
	require.NoError(t, err)

	all, total, err := repo.List(ctx, ListingFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(4), total)
	assert.Len(t, all, 4)

	byCat, total, err := repo.List(ctx, ListingFilter{CategoryID: 9})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, int64(2), byCat[0].OwnerID)

	_, total, err = repo.List(ctx, ListingFilter{Status: model.StatusActive, OwnerID: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)

	page, total, err := repo.List(ctx, ListingFilter{Page: 2, PageSize: 3})
	require.NoError(t, err)
	assert.Equal(t, int64(4), total)
	assert.Len(t, page, 1)
}

func TestCategoryRepo_List(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCategoryRepository(db)

	parent := model.Category{Name: "水果", Sort: 1}
	require.NoError(t, db.Create(&parent).Error)
	require.NoError(t, db.Create(&model.Category{Name: "谷物", Sort: 0}).Error)
	require.NoError(t, db.Create(&model.Category{Name: "苹果", ParentID: &parent.ID, Sort: 2}).Error)

	cats, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, cats, 3)
	assert.Equal(t, "谷物", cats[0].Name)
	assert.Equal(t, "水果", cats[1].Name)
	assert.Equal(t, parent.ID, *cats[2].ParentID)
}

func TestFavoriteRepo(t *testing.T) {
	db := setupTestDB(t)
	repo := NewFavoriteRepository(db)
	listings := NewListingRepository(db)
	ctx := context.Background()

	id, err := listings.CreateListing(ctx, 1, samplePayload())
	require.NoError(t, err)

	require.NoError(t, repo.Add(ctx, 5, id))
	require.NoError(t, repo.Add(ctx, 5, id))

	favs, err := repo.ListByUser(ctx, 5)
	require.NoError(t, err)
	require.Len(t, favs, 1)
	assert.Equal(t, id, favs[0].ListingID)

	require.NoError(t, repo.Remove(ctx, 5, id))
	require.NoError(t, repo.Remove(ctx, 5, id))
	favs, err = repo.ListByUser(ctx, 5)
	require.NoError(t, err)
	assert.Empty(t, favs)
}
