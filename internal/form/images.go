package form

import "errors"

// ErrImageLimit 图片数量已达上限
var ErrImageLimit = errors.New("form: image limit reached")

// CanAppend 是否还能追加图片，上传前调用
func CanAppend(images []string) error {
	if len(images) >= MaxImages {
		return ErrImageLimit
	}
	return nil
}

// AppendImage 追加到末尾，返回新切片
func AppendImage(images []string, url string) ([]string, error) {
	if err := CanAppend(images); err != nil {
		return images, err
	}
	out := make([]string, len(images), len(images)+1)
	copy(out, images)
	return append(out, url), nil
}

// RemoveImage 删除第一次出现的 url，不存在时原样返回
func RemoveImage(images []string, url string) []string {
	idx := IndexOf(images, url)
	if idx < 0 {
		return images
	}
	out := make([]string, 0, len(images)-1)
	out = append(out, images[:idx]...)
	return append(out, images[idx+1:]...)
}

// IndexOf url 所在位置，不存在返回 -1
func IndexOf(images []string, url string) int {
	for i, u := range images {
		if u == url {
			return i
		}
	}
	return -1
}
