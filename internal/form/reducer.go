package form

import (
	"errors"
	"fmt"
	"strings"

	"agri_market_v1/internal/model"
)

var (
	// ErrUnknownField 草稿中不存在该字段
	ErrUnknownField = errors.New("form: unknown field")
	// ErrInvalidEnumValue 枚举字段被设置为非成员值
	ErrInvalidEnumValue = errors.New("form: invalid enum value")
	// ErrUnknownAction 不支持的操作
	ErrUnknownAction = errors.New("form: unknown action")
)

// ActionType 草稿操作类型
type ActionType string

const (
	ActionSetField    ActionType = "set_field"
	ActionAppendImage ActionType = "append_image"
	ActionRemoveImage ActionType = "remove_image"
	ActionReplace     ActionType = "replace"
)

// Action 草稿操作
type Action struct {
	Type  ActionType `json:"type"`
	Field string     `json:"field,omitempty"`
	Value string     `json:"value,omitempty"`
	URL   string     `json:"url,omitempty"`
	Draft *Draft     `json:"draft,omitempty"`
}

// SetField 设置字段
func SetField(field, value string) Action {
	return Action{Type: ActionSetField, Field: field, Value: value}
}

// Reduce 旧草稿 + 操作 -> 新草稿
// 不修改入参；出错时返回原草稿
func Reduce(d Draft, a Action) (Draft, error) {
	switch a.Type {
	case ActionSetField:
		return setField(d, a.Field, a.Value)
	case ActionAppendImage:
		if strings.TrimSpace(a.URL) == "" {
			return d, fmt.Errorf("%w: empty image url", ErrUnknownAction)
		}
		images, err := AppendImage(d.Images, a.URL)
		if err != nil {
			return d, err
		}
		out := d.Clone()
		out.Images = images
		return out, nil
	case ActionRemoveImage:
		out := d.Clone()
		out.Images = RemoveImage(out.Images, a.URL)
		return out, nil
	case ActionReplace:
		if a.Draft == nil {
			return d, fmt.Errorf("%w: replace without draft", ErrUnknownAction)
		}
		return replace(d, *a.Draft)
	default:
		return d, fmt.Errorf("%w: %q", ErrUnknownAction, a.Type)
	}
}

func setField(d Draft, field, value string) (Draft, error) {
	out := d.Clone()

	if attr, ok := EnumAttribute(field); ok {
		if !model.IsMember(attr, value) {
			return d, fmt.Errorf("%w: %s=%q", ErrInvalidEnumValue, field, value)
		}
		for _, f := range enumFields(&out) {
			if f.name == field {
				*f.ptr = value
			}
		}
		return out, nil
	}

	ptr, ok := textFields(&out)[field]
	if !ok {
		return d, fmt.Errorf("%w: %s", ErrUnknownField, field)
	}
	*ptr = value
	return out, nil
}

// replace 整体替换文本与枚举字段，图片列表由上传/删除单独维护
func replace(d Draft, next Draft) (Draft, error) {
	out := next.Clone()
	out.Images = d.Clone().Images
	for _, f := range enumFields(&out) {
		if *f.ptr != "" && !model.IsMember(f.attr, *f.ptr) {
			return d, fmt.Errorf("%w: %s=%q", ErrInvalidEnumValue, f.name, *f.ptr)
		}
	}
	return out.WithDefaults(), nil
}
