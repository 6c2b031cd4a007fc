// Package form 商品编辑表单：草稿、校验、规范化与状态迁移
package form

import (
	"agri_market_v1/internal/model"
)

// MaxImages 单个商品最多图片数
const MaxImages = 5

// Draft 编辑中的商品草稿（强类型）
// 所有字段均为文本输入；枚举字段始终为注册表成员或空串（空串在校验/提交时取默认值）
type Draft struct {
	Title             string   `json:"title" validate:"notblank"`
	Description       string   `json:"description" validate:"notblank"`
	Price             string   `json:"price" validate:"notblank"`
	Quantity          string   `json:"quantity" validate:"notblank"`
	MinOrderQuantity  string   `json:"min_order_quantity"`
	CategoryID        string   `json:"category_id" validate:"notblank"`
	City              string   `json:"city" validate:"notblank"`
	Province          string   `json:"province"`
	Address           string   `json:"address"`
	ContactName       string   `json:"contact_name"`
	ContactPhone      string   `json:"contact_phone"`
	ContactEmail      string   `json:"contact_email" validate:"omitempty,email"`
	Status            string   `json:"status" validate:"listing_enum=status"`
	Condition         string   `json:"condition" validate:"listing_enum=condition"`
	Certification     string   `json:"certification" validate:"listing_enum=certification"`
	PaymentTerms      string   `json:"payment_terms" validate:"listing_enum=payment_terms"`
	PriceUnit         string   `json:"price_unit" validate:"listing_enum=price_unit"`
	QuantityUnit      string   `json:"quantity_unit" validate:"listing_enum=quantity_unit"`
	DeliveryAvailable string   `json:"delivery_available" validate:"listing_enum=yes_no"`
	PriceNegotiable   string   `json:"price_negotiable" validate:"listing_enum=yes_no"`
	Images            []string `json:"images" validate:"max=5"`
}

// NewDraft 新建商品时的空草稿（枚举取默认值）
func NewDraft() Draft {
	return Draft{Images: []string{}}.WithDefaults()
}

// Clone 深拷贝
func (d Draft) Clone() Draft {
	out := d
	out.Images = make([]string, len(d.Images))
	copy(out.Images, d.Images)
	return out
}

// WithDefaults 空枚举字段替换为注册表默认值
func (d Draft) WithDefaults() Draft {
	out := d.Clone()
	for _, f := range enumFields(&out) {
		if *f.ptr == "" {
			*f.ptr = model.DefaultOf(f.attr)
		}
	}
	return out
}

// ==================== 字段表 ====================

type enumField struct {
	name string
	attr model.Attribute
	ptr  *string
}

func enumFields(d *Draft) []enumField {
	return []enumField{
		{"status", model.AttrStatus, &d.Status},
		{"condition", model.AttrCondition, &d.Condition},
		{"certification", model.AttrCertification, &d.Certification},
		{"payment_terms", model.AttrPaymentTerms, &d.PaymentTerms},
		{"price_unit", model.AttrPriceUnit, &d.PriceUnit},
		{"quantity_unit", model.AttrQuantityUnit, &d.QuantityUnit},
		{"delivery_available", model.AttrYesNo, &d.DeliveryAvailable},
		{"price_negotiable", model.AttrYesNo, &d.PriceNegotiable},
	}
}

func textFields(d *Draft) map[string]*string {
	return map[string]*string{
		"title":              &d.Title,
		"description":        &d.Description,
		"price":              &d.Price,
		"quantity":           &d.Quantity,
		"min_order_quantity": &d.MinOrderQuantity,
		"category_id":        &d.CategoryID,
		"city":               &d.City,
		"province":           &d.Province,
		"address":            &d.Address,
		"contact_name":       &d.ContactName,
		"contact_phone":      &d.ContactPhone,
		"contact_email":      &d.ContactEmail,
	}
}

// EnumAttribute 字段对应的枚举属性
func EnumAttribute(field string) (model.Attribute, bool) {
	var d Draft
	for _, f := range enumFields(&d) {
		if f.name == field {
			return f.attr, true
		}
	}
	return "", false
}
