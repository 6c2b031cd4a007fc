package controller

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"agri_market_v1/internal/api/dto"
	"agri_market_v1/internal/form"
	"agri_market_v1/internal/middleware"
	"agri_market_v1/internal/model"
	"agri_market_v1/internal/service"
)

// ==================== 控制器 ====================

// ListingController 商品浏览与编辑
type ListingController struct {
	listingService *service.ListingService
}

func NewListingController(listingService *service.ListingService) *ListingController {
	return &ListingController{listingService: listingService}
}

// EditRequest 草稿编辑请求
type EditRequest struct {
	Actions []form.Action `json:"actions" binding:"required,min=1"`
}

// ==================== 公开接口 ====================

// ListEnums 枚举目录
// @Summary 获取商品枚举属性及默认值
// @Tags Listing
// @Success 200 {array} dto.EnumVO
// @Router /api/enums [get]
func (ctrl *ListingController) ListEnums(c *gin.Context) {
	attrs := model.Attributes()
	out := make([]dto.EnumVO, 0, len(attrs))
	for _, attr := range attrs {
		reg, _ := model.Lookup(attr)
		out = append(out, dto.EnumVO{
			Attribute: string(attr),
			Values:    reg.Values(),
			Default:   reg.Default(),
		})
	}
	ok(c, http.StatusOK, out)
}

// ListListings 商品列表
// @Summary 公开商品列表
// @Tags Listing
// @Param category_id query int false "分类"
// @Param province query string false "省份"
// @Param status query string false "状态"
// @Router /api/listings [get]
func (ctrl *ListingController) ListListings(c *gin.Context) {
	var req dto.ListListingsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		fail(c, http.StatusBadRequest, "参数错误: "+err.Error())
		return
	}
	if req.Status != "" && !model.IsStatus(req.Status) {
		fail(c, http.StatusBadRequest, "无效的商品状态")
		return
	}

	items, total, err := ctrl.listingService.ListListings(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}

	ok(c, http.StatusOK, gin.H{
		"items":     items,
		"total":     total,
		"page":      req.Page,
		"page_size": req.PageSize,
	})
}

// GetListing 商品详情
func (ctrl *ListingController) GetListing(c *gin.Context) {
	id, valid := parseID(c, "id")
	if !valid {
		return
	}

	vo, err := ctrl.listingService.GetListing(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, vo)
}

// ==================== 编辑会话 ====================

// StartCreate 开始发布新商品
// @Summary 创建编辑会话（新建）
// @Tags Session
// @Success 201 {object} service.SessionView
// @Router /api/listings/sessions [post]
func (ctrl *ListingController) StartCreate(c *gin.Context) {
	view, err := ctrl.listingService.StartCreate(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusCreated, view)
}

// StartEdit 开始编辑已有商品
// @Summary 创建编辑会话（编辑）
// @Tags Session
// @Param id path int true "商品ID"
// @Router /api/listings/{id}/sessions [post]
func (ctrl *ListingController) StartEdit(c *gin.Context) {
	id, valid := parseID(c, "id")
	if !valid {
		return
	}

	view, err := ctrl.listingService.StartEdit(c.Request.Context(), middleware.GetUserID(c), id)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusCreated, view)
}

func (ctrl *ListingController) GetSession(c *gin.Context) {
	view, err := ctrl.listingService.GetSession(middleware.GetUserID(c), c.Param("sid"))
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, view)
}

// ApplyEdits 批量编辑字段
// @Summary 应用草稿操作
// @Tags Session
// @Accept json
// @Param body body EditRequest true "操作列表"
// @Router /api/sessions/{sid} [patch]
func (ctrl *ListingController) ApplyEdits(c *gin.Context) {
	var req EditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "参数错误: "+err.Error())
		return
	}

	view, err := ctrl.listingService.ApplyEdits(c.Request.Context(), middleware.GetUserID(c), c.Param("sid"), req.Actions)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, view)
}

// UploadImage 上传图片
// @Summary 上传商品图片 (multipart 字段 file)
// @Tags Session
// @Accept multipart/form-data
// @Router /api/sessions/{sid}/images [post]
func (ctrl *ListingController) UploadImage(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		fail(c, http.StatusBadRequest, "缺少图片文件")
		return
	}
	if fh.Size > service.MaxImageBytes {
		writeError(c, service.ErrFileTooLarge)
		return
	}

	f, err := fh.Open()
	if err != nil {
		fail(c, http.StatusBadRequest, "读取图片失败")
		return
	}
	defer f.Close()

	// 多读 1 字节用于判断超限
	data, err := io.ReadAll(io.LimitReader(f, service.MaxImageBytes+1))
	if err != nil {
		fail(c, http.StatusBadRequest, "读取图片失败")
		return
	}

	view, url, err := ctrl.listingService.UploadImage(c.Request.Context(), middleware.GetUserID(c), c.Param("sid"), fh.Filename, data)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusCreated, gin.H{"url": url, "session": view})
}

func (ctrl *ListingController) DeleteImage(c *gin.Context) {
	var req dto.DeleteImageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "参数错误: "+err.Error())
		return
	}

	view, err := ctrl.listingService.DeleteImage(c.Request.Context(), middleware.GetUserID(c), c.Param("sid"), req.URL)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, view)
}

// Submit 提交草稿
// @Summary 校验并保存商品
// @Tags Session
// @Router /api/sessions/{sid}/submit [post]
func (ctrl *ListingController) Submit(c *gin.Context) {
	res, err := ctrl.listingService.Submit(c.Request.Context(), middleware.GetUserID(c), c.Param("sid"))
	if err != nil {
		writeError(c, err)
		return
	}

	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	ok(c, status, res)
}

// Discard 放弃编辑
func (ctrl *ListingController) Discard(c *gin.Context) {
	if err := ctrl.listingService.Discard(c.Request.Context(), middleware.GetUserID(c), c.Param("sid")); err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, nil)
}
