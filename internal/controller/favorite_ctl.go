package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"agri_market_v1/internal/middleware"
	"agri_market_v1/internal/service"
)

// FavoriteController 收藏
type FavoriteController struct {
	favoriteService *service.FavoriteService
}

func NewFavoriteController(favoriteService *service.FavoriteService) *FavoriteController {
	return &FavoriteController{favoriteService: favoriteService}
}

func (ctrl *FavoriteController) List(c *gin.Context) {
	items, err := ctrl.favoriteService.List(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, items)
}

func (ctrl *FavoriteController) Add(c *gin.Context) {
	id, valid := parseID(c, "listing_id")
	if !valid {
		return
	}
	if err := ctrl.favoriteService.Add(c.Request.Context(), middleware.GetUserID(c), id); err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, nil)
}

func (ctrl *FavoriteController) Remove(c *gin.Context) {
	id, valid := parseID(c, "listing_id")
	if !valid {
		return
	}
	if err := ctrl.favoriteService.Remove(c.Request.Context(), middleware.GetUserID(c), id); err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, nil)
}
