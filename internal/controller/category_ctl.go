package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"agri_market_v1/internal/service"
)

// CategoryController 分类目录
type CategoryController struct {
	categoryService *service.CategoryService
}

func NewCategoryController(categoryService *service.CategoryService) *CategoryController {
	return &CategoryController{categoryService: categoryService}
}

// List 分类列表
// @Summary 获取分类目录
// @Tags Category
// @Success 200 {array} dto.CategoryVO
// @Router /api/categories [get]
func (ctrl *CategoryController) List(c *gin.Context) {
	cats, err := ctrl.categoryService.List(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, cats)
}
