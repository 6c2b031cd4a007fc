package dto

import "time"

// ==================== 远端记录 ====================

// RemoteListing 远端商品记录（弱类型）
// 枚举与数值字段可能为 nil、大小写错误或任意类型，必须经过 form.Normalize
type RemoteListing struct {
	ID                int64    `json:"id"`
	OwnerID           int64    `json:"owner_id"`
	Title             *string  `json:"title"`
	Description       *string  `json:"description"`
	Price             any      `json:"price"`
	Quantity          any      `json:"quantity"`
	MinOrderQuantity  any      `json:"min_order_quantity"`
	CategoryID        any      `json:"category_id"`
	City              *string  `json:"city"`
	Province          *string  `json:"province"`
	Address           *string  `json:"address"`
	ContactName       *string  `json:"contact_name"`
	ContactPhone      *string  `json:"contact_phone"`
	ContactEmail      *string  `json:"contact_email"`
	Status            any      `json:"status"`
	Condition         any      `json:"condition"`
	Certification     any      `json:"certification"`
	PaymentTerms      any      `json:"payment_terms"`
	PriceUnit         any      `json:"price_unit"`
	QuantityUnit      any      `json:"quantity_unit"`
	DeliveryAvailable any      `json:"delivery_available"`
	PriceNegotiable   any      `json:"price_negotiable"`
	Images            []string `json:"images"`
	UpdatedAt         any      `json:"updated_at"` // time.Time 或远端时间字符串
}

// ListingPayload 提交到远端的更新内容（强类型）
// 可选文本字段 nil 表示写入 NULL
type ListingPayload struct {
	Title             string   `json:"title"`
	Description       string   `json:"description"`
	Price             float64  `json:"price"`
	Quantity          float64  `json:"quantity"`
	MinOrderQuantity  *float64 `json:"min_order_quantity"`
	CategoryID        int64    `json:"category_id"`
	City              string   `json:"city"`
	Province          *string  `json:"province"`
	Address           *string  `json:"address"`
	ContactName       *string  `json:"contact_name"`
	ContactPhone      *string  `json:"contact_phone"`
	ContactEmail      *string  `json:"contact_email"`
	Status            string   `json:"status"`
	Condition         string   `json:"condition"`
	Certification     string   `json:"certification"`
	PaymentTerms      string   `json:"payment_terms"`
	PriceUnit         string   `json:"price_unit"`
	QuantityUnit      string   `json:"quantity_unit"`
	DeliveryAvailable string   `json:"delivery_available"`
	PriceNegotiable   string   `json:"price_negotiable"`
	Images            []string `json:"images"`
}

// ==================== 请求 DTO ====================

// ListListingsRequest 商品列表请求
type ListListingsRequest struct {
	CategoryID int64  `form:"category_id"`
	Province   string `form:"province"`
	Status     string `form:"status"`
	OwnerID    int64  `form:"owner_id"`
	Page       int    `form:"page,default=1"`
	PageSize   int    `form:"page_size,default=20"`
}

// DeleteImageRequest 删除图片请求
type DeleteImageRequest struct {
	URL string `json:"url" binding:"required"`
}

// ==================== 响应 DTO ====================

// ListingVO 商品视图对象
type ListingVO struct {
	ID                int64      `json:"id"`
	OwnerID           int64      `json:"owner_id"`
	Title             string     `json:"title"`
	Description       string     `json:"description"`
	Price             string     `json:"price"`
	Quantity          string     `json:"quantity"`
	MinOrderQuantity  string     `json:"min_order_quantity"`
	CategoryID        string     `json:"category_id"`
	City              string     `json:"city"`
	Province          string     `json:"province"`
	Status            string     `json:"status"`
	Condition         string     `json:"condition"`
	Certification     string     `json:"certification"`
	PaymentTerms      string     `json:"payment_terms"`
	PriceUnit         string     `json:"price_unit"`
	QuantityUnit      string     `json:"quantity_unit"`
	DeliveryAvailable string     `json:"delivery_available"`
	PriceNegotiable   string     `json:"price_negotiable"`
	Images            []string   `json:"images"`
	UpdatedAt         *time.Time `json:"updated_at,omitempty"`
}

// EnumVO 枚举目录项
type EnumVO struct {
	Attribute string   `json:"attribute"`
	Values    []string `json:"values"`
	Default   string   `json:"default"`
}

// CategoryVO 分类
type CategoryVO struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	ParentID *int64 `json:"parent_id"`
}
