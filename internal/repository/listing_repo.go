package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"agri_market_v1/internal/api/dto"
	"agri_market_v1/internal/model"
)

var (
	// ErrListingNotFound 商品不存在
	ErrListingNotFound = errors.New("listing not found")
	// ErrNotOwner 非商品发布人
	ErrNotOwner = errors.New("listing is not owned by user")
)

// ==================== 仓储接口 ====================

// ListingRepository 商品远端存储
// 读取返回弱类型记录，写入只接受规范化后的 payload
type ListingRepository interface {
	FetchListing(ctx context.Context, id int64) (*dto.RemoteListing, error)
	CreateListing(ctx context.Context, ownerID int64, payload *dto.ListingPayload) (int64, error)
	UpdateListing(ctx context.Context, id, ownerID int64, payload *dto.ListingPayload) error
	List(ctx context.Context, filter ListingFilter) ([]dto.RemoteListing, int64, error)
}

// ListingFilter 列表过滤条件
type ListingFilter struct {
	CategoryID int64
	Province   string
	Status     string
	OwnerID    int64
	Page       int
	PageSize   int
}

func (f *ListingFilter) normalize() {
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.PageSize <= 0 {
		f.PageSize = 20
	}
	if f.PageSize > 100 {
		f.PageSize = 100
	}
}

// ==================== GORM 实现 ====================

type listingRepo struct {
	db *gorm.DB
}

// NewListingRepository 创建商品仓储
func NewListingRepository(db *gorm.DB) ListingRepository {
	return &listingRepo{db: db}
}

func (r *listingRepo) FetchListing(ctx context.Context, id int64) (*dto.RemoteListing, error) {
	var listing model.Listing
	if err := r.db.WithContext(ctx).First(&listing, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrListingNotFound
		}
		return nil, err
	}
	return ToRemote(&listing), nil
}

func (r *listingRepo) CreateListing(ctx context.Context, ownerID int64, payload *dto.ListingPayload) (int64, error) {
	listing := &model.Listing{OwnerID: ownerID}
	applyPayload(listing, payload)

	if err := r.db.WithContext(ctx).Create(listing).Error; err != nil {
		return 0, err
	}
	return listing.ID, nil
}

func (r *listingRepo) UpdateListing(ctx context.Context, id, ownerID int64, payload *dto.ListingPayload) error {
	var listing model.Listing
	applyPayload(&listing, payload)

	result := r.db.WithContext(ctx).
		Model(&model.Listing{}).
		Where("id = ? AND owner_id = ?", id, ownerID).
		Updates(payloadColumns(&listing))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}

	// 区分不存在与无权限
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.Listing{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return ErrListingNotFound
	}
	return ErrNotOwner
}

func (r *listingRepo) List(ctx context.Context, filter ListingFilter) ([]dto.RemoteListing, int64, error) {
	filter.normalize()

	var listings []model.Listing
	var total int64

	query := r.db.WithContext(ctx).Model(&model.Listing{})
	if filter.CategoryID > 0 {
		query = query.Where("category_id = ?", filter.CategoryID)
	}
	if filter.Province != "" {
		query = query.Where("province = ?", filter.Province)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.OwnerID > 0 {
		query = query.Where("owner_id = ?", filter.OwnerID)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (filter.Page - 1) * filter.PageSize
	if err := query.Order("updated_at DESC").Limit(filter.PageSize).Offset(offset).Find(&listings).Error; err != nil {
		return nil, 0, err
	}

	out := make([]dto.RemoteListing, 0, len(listings))
	for i := range listings {
		out = append(out, *ToRemote(&listings[i]))
	}
	return out, total, nil
}

// ==================== 转换 ====================

// ToRemote 数据库模型 -> 弱类型远端记录
func ToRemote(l *model.Listing) *dto.RemoteListing {
	return &dto.RemoteListing{
		ID:                l.ID,
		OwnerID:           l.OwnerID,
		Title:             l.Title,
		Description:       l.Description,
		Price:             floatOrNil(l.Price),
		Quantity:          floatOrNil(l.Quantity),
		MinOrderQuantity:  floatOrNil(l.MinOrderQuantity),
		CategoryID:        intOrNil(l.CategoryID),
		City:              l.City,
		Province:          l.Province,
		Address:           l.Address,
		ContactName:       l.ContactName,
		ContactPhone:      l.ContactPhone,
		ContactEmail:      l.ContactEmail,
		Status:            stringOrNil(l.Status),
		Condition:         stringOrNil(l.Condition),
		Certification:     stringOrNil(l.Certification),
		PaymentTerms:      stringOrNil(l.PaymentTerms),
		PriceUnit:         stringOrNil(l.PriceUnit),
		QuantityUnit:      stringOrNil(l.QuantityUnit),
		DeliveryAvailable: stringOrNil(l.DeliveryAvailable),
		PriceNegotiable:   stringOrNil(l.PriceNegotiable),
		Images:            []string(l.Images),
		UpdatedAt:         l.UpdatedAt,
	}
}

func applyPayload(l *model.Listing, p *dto.ListingPayload) {
	l.Title = &p.Title
	l.Description = &p.Description
	l.Price = &p.Price
	l.Quantity = &p.Quantity
	l.MinOrderQuantity = p.MinOrderQuantity
	l.CategoryID = &p.CategoryID
	l.City = &p.City
	l.Province = p.Province
	l.Address = p.Address
	l.ContactName = p.ContactName
	l.ContactPhone = p.ContactPhone
	l.ContactEmail = p.ContactEmail
	l.Status = &p.Status
	l.Condition = &p.Condition
	l.Certification = &p.Certification
	l.PaymentTerms = &p.PaymentTerms
	l.PriceUnit = &p.PriceUnit
	l.QuantityUnit = &p.QuantityUnit
	l.DeliveryAvailable = &p.DeliveryAvailable
	l.PriceNegotiable = &p.PriceNegotiable
	images := make(model.StringSlice, len(p.Images))
	copy(images, p.Images)
	l.Images = images
}

// payloadColumns 更新列，nil 值写入 NULL
func payloadColumns(l *model.Listing) map[string]interface{} {
	return map[string]interface{}{
		"title":              l.Title,
		"description":        l.Description,
		"price":              l.Price,
		"quantity":           l.Quantity,
		"min_order_quantity": l.MinOrderQuantity,
		"category_id":        l.CategoryID,
		"city":               l.City,
		"province":           l.Province,
		"address":            l.Address,
		"contact_name":       l.ContactName,
		"contact_phone":      l.ContactPhone,
		"contact_email":      l.ContactEmail,
		"status":             l.Status,
		"condition":          l.Condition,
		"certification":      l.Certification,
		"payment_terms":      l.PaymentTerms,
		"price_unit":         l.PriceUnit,
		"quantity_unit":      l.QuantityUnit,
		"delivery_available": l.DeliveryAvailable,
		"price_negotiable":   l.PriceNegotiable,
		"images":             l.Images,
	}
}

func floatOrNil(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func intOrNil(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func stringOrNil(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}
