package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
)

// ==================== JSON 类型 ====================

// StringSlice 字符串切片（JSON 存储），NULL 扫描为 nil
type StringSlice []string

func (s StringSlice) Value() (driver.Value, error) {
	if s == nil {
		return nil, nil
	}
	b, err := json.Marshal([]string(s))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (s *StringSlice) Scan(value interface{}) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*s = nil
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return errors.New("type assertion to []byte failed")
	}
	if len(raw) == 0 || string(raw) == "null" {
		*s = nil
		return nil
	}
	return json.Unmarshal(raw, s)
}

// ==================== 数据库模型 ====================

// Listing 商品发布（远端记录）
// 枚举与数值列允许 NULL，历史数据可能存在非法取值，读取后必须经过规范化
type Listing struct {
	BaseModel
	OwnerID           int64       `gorm:"index;not null;comment:发布人ID" json:"owner_id"`
	Title             *string     `gorm:"size:140;comment:标题" json:"title"`
	Description       *string     `gorm:"type:text;comment:描述" json:"description"`
	Price             *float64    `gorm:"comment:价格" json:"price"`
	Quantity          *float64    `gorm:"comment:数量" json:"quantity"`
	MinOrderQuantity  *float64    `gorm:"comment:起订量" json:"min_order_quantity"`
	CategoryID        *int64      `gorm:"index;comment:分类ID" json:"category_id"`
	City              *string     `gorm:"size:100;comment:城市" json:"city"`
	Province          *string     `gorm:"size:100;index;comment:省份" json:"province"`
	Address           *string     `gorm:"size:255;comment:地址" json:"address"`
	ContactName       *string     `gorm:"size:100;comment:联系人" json:"contact_name"`
	ContactPhone      *string     `gorm:"size:50;comment:联系电话" json:"contact_phone"`
	ContactEmail      *string     `gorm:"size:255;comment:联系邮箱" json:"contact_email"`
	Status            *string     `gorm:"size:32;index;comment:状态" json:"status"`
	Condition         *string     `gorm:"size:32;comment:货品状况" json:"condition"`
	Certification     *string     `gorm:"size:32;comment:认证" json:"certification"`
	PaymentTerms      *string     `gorm:"size:32;comment:付款条件" json:"payment_terms"`
	PriceUnit         *string     `gorm:"size:32;comment:价格单位" json:"price_unit"`
	QuantityUnit      *string     `gorm:"size:32;comment:数量单位" json:"quantity_unit"`
	DeliveryAvailable *string     `gorm:"size:8;comment:是否配送" json:"delivery_available"`
	PriceNegotiable   *string     `gorm:"size:8;comment:价格可议" json:"price_negotiable"`
	Images            StringSlice `gorm:"type:json;comment:图片URL(有序)" json:"images"`
}

func (Listing) TableName() string {
	return "listings"
}

// Category 商品分类
type Category struct {
	BaseModel
	Name     string `gorm:"size:100;not null" json:"name"`
	ParentID *int64 `gorm:"index" json:"parent_id"`
	Sort     int    `gorm:"default:0" json:"sort"`
}

func (Category) TableName() string {
	return "categories"
}

// Favorite 收藏
type Favorite struct {
	BaseModel
	UserID    int64 `gorm:"uniqueIndex:idx_fav_user_listing;not null" json:"user_id"`
	ListingID int64 `gorm:"uniqueIndex:idx_fav_user_listing;index;not null" json:"listing_id"`
}

func (Favorite) TableName() string {
	return "favorites"
}
