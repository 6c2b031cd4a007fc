package form

import (
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/spf13/cast"

	"agri_market_v1/internal/api/dto"
	"agri_market_v1/internal/model"
)

// Repair 规范化时被静默修复的字段
type Repair struct {
	Field       string `json:"field"`
	Value       any    `json:"value"`
	Replacement string `json:"replacement"`
}

// ==================== 规范化 ====================

// Normalize 远端记录 -> 草稿，全函数
// 非法枚举值替换为默认值并记录到 Repair，调用方负责打日志
func Normalize(r *dto.RemoteListing) (Draft, []Repair) {
	if r == nil {
		return NewDraft(), nil
	}

	var repairs []Repair
	d := Draft{
		Title:        deref(r.Title),
		Description:  deref(r.Description),
		City:         deref(r.City),
		Province:     deref(r.Province),
		Address:      deref(r.Address),
		ContactName:  deref(r.ContactName),
		ContactPhone: deref(r.ContactPhone),
		ContactEmail: deref(r.ContactEmail),
	}

	numbers := []struct {
		name string
		in   any
		out  *string
	}{
		{"price", r.Price, &d.Price},
		{"quantity", r.Quantity, &d.Quantity},
		{"min_order_quantity", r.MinOrderQuantity, &d.MinOrderQuantity},
	}
	for _, n := range numbers {
		text, ok := NumberText(n.in)
		if !ok {
			repairs = append(repairs, Repair{Field: n.name, Value: n.in, Replacement: ""})
		}
		*n.out = text
	}

	if id, ok := idText(r.CategoryID); ok {
		d.CategoryID = id
	} else {
		repairs = append(repairs, Repair{Field: "category_id", Value: r.CategoryID, Replacement: ""})
	}

	enums := map[string]any{
		"status":             r.Status,
		"condition":          r.Condition,
		"certification":      r.Certification,
		"payment_terms":      r.PaymentTerms,
		"price_unit":         r.PriceUnit,
		"quantity_unit":      r.QuantityUnit,
		"delivery_available": r.DeliveryAvailable,
		"price_negotiable":   r.PriceNegotiable,
	}
	for _, f := range enumFields(&d) {
		in := indirect(enums[f.name])
		if model.IsMember(f.attr, in) {
			*f.ptr = in.(string)
			continue
		}
		*f.ptr = model.DefaultOf(f.attr)
		repairs = append(repairs, Repair{Field: f.name, Value: in, Replacement: *f.ptr})
	}

	d.Images = make([]string, len(r.Images))
	copy(d.Images, r.Images)

	return d, repairs
}

// NumberText 数值 -> 文本（与区域设置无关）
// nil 返回 ("", true)；无法识别的值返回 ("", false)
func NumberText(v any) (string, bool) {
	v = indirect(v)
	switch x := v.(type) {
	case nil:
		return "", true
	case bool:
		return "", false
	case string:
		if strings.TrimSpace(x) == "" {
			return "", true
		}
	}

	f, err := cast.ToFloat64E(v)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return "", false
	}
	return strconv.FormatFloat(f, 'f', -1, 64), true
}

func idText(v any) (string, bool) {
	text, ok := NumberText(v)
	if !ok || text == "" {
		return "", ok
	}
	if _, err := strconv.ParseInt(text, 10, 64); err != nil {
		return "", false
	}
	return text, true
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// indirect 解引用指针，nil 指针返回 nil
func indirect(v any) any {
	if v == nil {
		return nil
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	return rv.Interface()
}

// ==================== 反规范化 ====================

// Denormalize 草稿 -> 提交内容
// 数值解析失败返回 *ValidationError（errors.Is(err, ErrMalformedNumeric) 为真）
func Denormalize(d Draft) (*dto.ListingPayload, error) {
	d = d.WithDefaults()
	bad := ValidationResult{}

	price, ok := parseNumber(d.Price)
	if !ok {
		bad["price"] = newFieldError("price", KindMalformedNumeric)
	}
	quantity, ok := parseNumber(d.Quantity)
	if !ok {
		bad["quantity"] = newFieldError("quantity", KindMalformedNumeric)
	}

	var minOrder *float64
	if strings.TrimSpace(d.MinOrderQuantity) != "" {
		v, ok := parseNumber(d.MinOrderQuantity)
		if !ok {
			bad["min_order_quantity"] = newFieldError("min_order_quantity", KindMalformedNumeric)
		} else {
			minOrder = &v
		}
	}

	categoryID, err := strconv.ParseInt(strings.TrimSpace(d.CategoryID), 10, 64)
	if err != nil {
		bad["category_id"] = newFieldError("category_id", KindMalformedNumeric)
	}

	if !bad.OK() {
		return nil, &ValidationError{Result: bad}
	}

	images := make([]string, len(d.Images))
	copy(images, d.Images)

	return &dto.ListingPayload{
		Title:             strings.TrimSpace(d.Title),
		Description:       strings.TrimSpace(d.Description),
		Price:             price,
		Quantity:          quantity,
		MinOrderQuantity:  minOrder,
		CategoryID:        categoryID,
		City:              strings.TrimSpace(d.City),
		Province:          nullable(d.Province),
		Address:           nullable(d.Address),
		ContactName:       nullable(d.ContactName),
		ContactPhone:      nullable(d.ContactPhone),
		ContactEmail:      nullable(d.ContactEmail),
		Status:            d.Status,
		Condition:         d.Condition,
		Certification:     d.Certification,
		PaymentTerms:      d.PaymentTerms,
		PriceUnit:         d.PriceUnit,
		QuantityUnit:      d.QuantityUnit,
		DeliveryAvailable: d.DeliveryAvailable,
		PriceNegotiable:   d.PriceNegotiable,
		Images:            images,
	}, nil
}

func parseNumber(s string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func nullable(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
