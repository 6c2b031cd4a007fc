package controller

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"agri_market_v1/internal/form"
	"agri_market_v1/internal/service"
)

// ==================== 统一响应 ====================

func ok(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{
		"code":    0,
		"message": "success",
		"data":    data,
	})
}

func fail(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{
		"code":    status,
		"message": message,
	})
}

// writeError 业务错误 -> HTTP 状态码
func writeError(c *gin.Context, err error) {
	var verr *form.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"code":    http.StatusUnprocessableEntity,
			"message": "表单校验未通过",
			"errors":  verr.Result,
		})
	case errors.Is(err, service.ErrListingNotFound):
		fail(c, http.StatusNotFound, "商品不存在")
	case errors.Is(err, service.ErrSessionNotFound):
		fail(c, http.StatusNotFound, "编辑会话不存在或已过期")
	case errors.Is(err, service.ErrNotPermitted):
		fail(c, http.StatusForbidden, "无权编辑该商品")
	case errors.Is(err, service.ErrSubmitInProgress):
		fail(c, http.StatusConflict, "正在提交，请勿重复操作")
	case errors.Is(err, form.ErrImageLimit):
		fail(c, http.StatusBadRequest, "最多上传 5 张图片")
	case errors.Is(err, form.ErrInvalidEnumValue),
		errors.Is(err, form.ErrUnknownField),
		errors.Is(err, form.ErrUnknownAction),
		errors.Is(err, form.ErrMalformedNumeric),
		errors.Is(err, service.ErrImageActionNotAllowed),
		errors.Is(err, service.ErrEmptyFile):
		fail(c, http.StatusBadRequest, "参数错误: "+err.Error())
	case errors.Is(err, service.ErrFileTooLarge):
		fail(c, http.StatusRequestEntityTooLarge, "图片不能超过 5MB")
	case errors.Is(err, service.ErrUnsupportedType):
		fail(c, http.StatusUnsupportedMediaType, "仅支持 JPEG、PNG、WebP 图片")
	case errors.Is(err, service.ErrStorage):
		_ = c.Error(err)
		fail(c, http.StatusBadGateway, "图片存储服务暂不可用")
	default:
		_ = c.Error(err)
		fail(c, http.StatusInternalServerError, "服务器内部错误")
	}
}

func parseID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		fail(c, http.StatusBadRequest, "无效的ID")
		return 0, false
	}
	return id, true
}
