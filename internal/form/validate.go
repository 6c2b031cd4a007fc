package form

import (
	"errors"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"agri_market_v1/internal/model"
)

// ==================== 错误定义 ====================

var (
	// ErrValidation 草稿未通过校验
	ErrValidation = errors.New("form: validation failed")
	// ErrMalformedNumeric 数值字段无法解析
	ErrMalformedNumeric = errors.New("form: malformed numeric value")
)

// ErrorKind 字段错误类别
type ErrorKind string

const (
	KindRequired         ErrorKind = "required"
	KindInvalidEnum      ErrorKind = "invalid_enum"
	KindInvalidEmail     ErrorKind = "invalid_email"
	KindMalformedNumeric ErrorKind = "malformed_numeric"
	KindTooManyImages    ErrorKind = "too_many_images"
	KindInvalid          ErrorKind = "invalid"
)

var kindMessages = map[ErrorKind]string{
	KindRequired:         "不能为空",
	KindInvalidEnum:      "取值不在可选范围内",
	KindInvalidEmail:     "邮箱格式不正确",
	KindMalformedNumeric: "请输入有效的数字",
	KindTooManyImages:    "最多上传 5 张图片",
	KindInvalid:          "格式不正确",
}

// FieldError 单个字段错误
type FieldError struct {
	Field   string    `json:"field"`
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

func newFieldError(field string, kind ErrorKind) FieldError {
	return FieldError{Field: field, Kind: kind, Message: kindMessages[kind]}
}

// ValidationResult 字段 -> 错误，只包含不合法字段
type ValidationResult map[string]FieldError

// OK 是否全部通过
func (r ValidationResult) OK() bool { return len(r) == 0 }

// Fields 出错字段（排序后）
func (r ValidationResult) Fields() []string {
	out := make([]string, 0, len(r))
	for k := range r {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// ValidationError 携带校验结果的错误
type ValidationError struct {
	Result ValidationResult
}

func (e *ValidationError) Error() string {
	return "form: invalid fields: " + strings.Join(e.Result.Fields(), ", ")
}

func (e *ValidationError) Is(target error) bool {
	switch target {
	case ErrValidation:
		return true
	case ErrMalformedNumeric:
		for _, fe := range e.Result {
			if fe.Kind == KindMalformedNumeric {
				return true
			}
		}
	}
	return false
}

// ==================== 校验 ====================

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func engine() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
			return strings.TrimSpace(fl.Field().String()) != ""
		})
		_ = v.RegisterValidation("listing_enum", func(fl validator.FieldLevel) bool {
			return model.IsMember(model.Attribute(fl.Param()), fl.Field().String())
		})
		validate = v
	})
	return validate
}

func kindOf(tag string) ErrorKind {
	switch tag {
	case "notblank", "required":
		return KindRequired
	case "listing_enum":
		return KindInvalidEnum
	case "email":
		return KindInvalidEmail
	case "max":
		return KindTooManyImages
	default:
		return KindInvalid
	}
}

// Validate 校验草稿，纯函数
// 空枚举字段先取默认值，不产生错误
func Validate(d Draft) ValidationResult {
	d = d.WithDefaults()
	// 与 Denormalize 一致：空白邮箱视为未填写
	d.ContactEmail = strings.TrimSpace(d.ContactEmail)
	result := ValidationResult{}

	err := engine().Struct(d)
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			name := fe.Field()
			if _, exists := result[name]; exists {
				continue
			}
			result[name] = newFieldError(name, kindOf(fe.Tag()))
		}
	}
	return result
}
