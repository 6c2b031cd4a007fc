package model

// ==================== 枚举注册表 ====================

// Attribute 商品枚举属性
type Attribute string

const (
	AttrStatus        Attribute = "status"
	AttrCondition     Attribute = "condition"
	AttrCertification Attribute = "certification"
	AttrPaymentTerms  Attribute = "payment_terms"
	AttrPriceUnit     Attribute = "price_unit"
	AttrQuantityUnit  Attribute = "quantity_unit"
	AttrYesNo         Attribute = "yes_no"
)

// 商品状态
const (
	StatusActive   = "active"
	StatusPaused   = "paused"
	StatusSold     = "sold"
	StatusArchived = "archived"
)

// 货品状况
const (
	ConditionFresh     = "fresh"
	ConditionDried     = "dried"
	ConditionFrozen    = "frozen"
	ConditionProcessed = "processed"
	ConditionLive      = "live"
)

// 认证
const (
	CertificationNone               = "none"
	CertificationOrganic            = "organic"
	CertificationFairTrade          = "fair_trade"
	CertificationGlobalGAP          = "global_gap"
	CertificationRainforestAlliance = "rainforest_alliance"
)

// 付款条件
const (
	PaymentOnDelivery     = "on_delivery"
	PaymentAdvance        = "advance"
	PaymentPartialAdvance = "partial_advance"
	PaymentNet30          = "net_30"
	PaymentToAgree        = "to_agree"
)

// 价格单位
const (
	PricePerKg      = "per_kg"
	PricePerTon     = "per_ton"
	PricePerQuintal = "per_quintal"
	PricePerUnit    = "per_unit"
	PricePerBox     = "per_box"
	PricePerLiter   = "per_liter"
)

// 数量单位
const (
	QuantityKg      = "kg"
	QuantityTon     = "ton"
	QuantityQuintal = "quintal"
	QuantityUnit    = "unit"
	QuantityBox     = "box"
	QuantityLiter   = "liter"
)

// 是/否
const (
	No  = "no"
	Yes = "yes"
)

// Registry 单个枚举属性的封闭取值集合
type Registry struct {
	attr     Attribute
	values   []string
	index    map[string]struct{}
	fallback string
}

func newRegistry(attr Attribute, fallback string, values ...string) *Registry {
	idx := make(map[string]struct{}, len(values))
	for _, v := range values {
		idx[v] = struct{}{}
	}
	if _, ok := idx[fallback]; !ok {
		panic("model: default " + fallback + " is not a member of " + string(attr))
	}
	return &Registry{attr: attr, values: values, index: idx, fallback: fallback}
}

// Attribute 属性名
func (r *Registry) Attribute() Attribute { return r.attr }

// Values 有序取值（副本）
func (r *Registry) Values() []string {
	out := make([]string, len(r.values))
	copy(out, r.values)
	return out
}

// Default 默认值
func (r *Registry) Default() string { return r.fallback }

// Contains 是否为合法取值
func (r *Registry) Contains(v any) bool {
	s, ok := v.(string)
	if !ok {
		return false
	}
	_, ok = r.index[s]
	return ok
}

var registries = map[Attribute]*Registry{
	AttrStatus: newRegistry(AttrStatus, StatusActive,
		StatusActive, StatusPaused, StatusSold, StatusArchived),
	AttrCondition: newRegistry(AttrCondition, ConditionFresh,
		ConditionFresh, ConditionDried, ConditionFrozen, ConditionProcessed, ConditionLive),
	AttrCertification: newRegistry(AttrCertification, CertificationNone,
		CertificationNone, CertificationOrganic, CertificationFairTrade, CertificationGlobalGAP, CertificationRainforestAlliance),
	AttrPaymentTerms: newRegistry(AttrPaymentTerms, PaymentToAgree,
		PaymentOnDelivery, PaymentAdvance, PaymentPartialAdvance, PaymentNet30, PaymentToAgree),
	AttrPriceUnit: newRegistry(AttrPriceUnit, PricePerKg,
		PricePerKg, PricePerTon, PricePerQuintal, PricePerUnit, PricePerBox, PricePerLiter),
	AttrQuantityUnit: newRegistry(AttrQuantityUnit, QuantityKg,
		QuantityKg, QuantityTon, QuantityQuintal, QuantityUnit, QuantityBox, QuantityLiter),
	AttrYesNo: newRegistry(AttrYesNo, No, No, Yes),
}

// attributeOrder 对外展示顺序
var attributeOrder = []Attribute{
	AttrStatus, AttrCondition, AttrCertification, AttrPaymentTerms,
	AttrPriceUnit, AttrQuantityUnit, AttrYesNo,
}

// Attributes 所有枚举属性（有序）
func Attributes() []Attribute {
	out := make([]Attribute, len(attributeOrder))
	copy(out, attributeOrder)
	return out
}

// Lookup 获取注册表
func Lookup(attr Attribute) (*Registry, bool) {
	r, ok := registries[attr]
	return r, ok
}

// DefaultOf 属性默认值，未知属性返回空串
func DefaultOf(attr Attribute) string {
	if r, ok := registries[attr]; ok {
		return r.fallback
	}
	return ""
}

// ==================== 类型守卫 ====================

// IsMember v 为字符串且属于 attr 的注册表
func IsMember(attr Attribute, v any) bool {
	r, ok := registries[attr]
	if !ok {
		return false
	}
	return r.Contains(v)
}

func IsStatus(v any) bool        { return IsMember(AttrStatus, v) }
func IsCondition(v any) bool     { return IsMember(AttrCondition, v) }
func IsCertification(v any) bool { return IsMember(AttrCertification, v) }
func IsPaymentTerms(v any) bool  { return IsMember(AttrPaymentTerms, v) }
func IsPriceUnit(v any) bool     { return IsMember(AttrPriceUnit, v) }
func IsQuantityUnit(v any) bool  { return IsMember(AttrQuantityUnit, v) }
func IsYesNo(v any) bool         { return IsMember(AttrYesNo, v) }
