package controller_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"agri_market_v1/internal/api/dto"
	"agri_market_v1/internal/controller"
	"agri_market_v1/internal/form"
	"agri_market_v1/internal/middleware"
	"agri_market_v1/internal/model"
	"agri_market_v1/internal/repository"
	"agri_market_v1/internal/router"
	"agri_market_v1/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// 1x1 PNG
var testPNG = []byte{
	0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A,
	0x00, 0x00, 0x00, 0x0D, 0x49, 0x48, 0x44, 0x52,
	0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x02, 0x00, 0x00, 0x00, 0x90, 0x77, 0x53,
	0xDE, 0x00, 0x00, 0x00, 0x0C, 0x49, 0x44, 0x41,
	0x54, 0x08, 0xD7, 0x63, 0xF8, 0xFF, 0xFF, 0x3F,
	0x00, 0x05, 0xFE, 0x02, 0xFE, 0xDC, 0xCC, 0x59,
	0xE7, 0x00, 0x00, 0x00, 0x00, 0x49, 0x45, 0x4E,
	0x44, 0xAE, 0x42, 0x60, 0x82,
}

// ==================== 测试环境 ====================

type testEnv struct {
	router *gin.Engine
	db     *gorm.DB
}

func newTestEnv(t *testing.T) *testEnv {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.Listing{}, &model.Category{}, &model.Favorite{}))

	provider, err := service.NewStorageProvider(context.Background(), service.StorageConfig{
		Provider: "local",
		BasePath: t.TempDir(),
		Endpoint: "http://localhost:8080/uploads",
	})
	require.NoError(t, err)

	log := zaptest.NewLogger(t)
	listingSvc := service.NewListingService(
		repository.NewListingRepository(db), service.NewImageStorage(provider, ""), log, time.Hour)

	ctls := &router.Controllers{
		Listing:  controller.NewListingController(listingSvc),
		Category: controller.NewCategoryController(service.NewCategoryService(repository.NewCategoryRepository(db), nil)),
		Favorite: controller.NewFavoriteController(service.NewFavoriteService(repository.NewFavoriteRepository(db), listingSvc, log)),
	}

	middleware.SetJWTConfig(&middleware.JWTConfig{SecretKey: "ctl-test", AccessTokenTTL: time.Hour, Issuer: "agri-test"})
	t.Cleanup(func() { middleware.SetJWTConfig(middleware.DefaultJWTConfig()) })

	return &testEnv{router: router.SetupRouter(ctls, router.Options{Logger: log}), db: db}
}

func tokenFor(t *testing.T, userID int64) string {
	token, err := middleware.GenerateAccessToken(userID, fmt.Sprintf("user%d", userID))
	require.NoError(t, err)
	return token
}

func (e *testEnv) do(t *testing.T, method, path string, userID int64, body interface{}) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	if body != nil {
		jsonBytes, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBytes)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, _ := http.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if userID > 0 {
		req.Header.Set("Authorization", "Bearer "+tokenFor(t, userID))
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) upload(t *testing.T, sid string, userID int64, filename string, data []byte) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req, _ := http.NewRequest(http.MethodPost, "/api/sessions/"+sid+"/images", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+tokenFor(t, userID))
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Errors  map[string]struct {
		Kind string `json:"kind"`
	} `json:"errors"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

func (e *testEnv) startSession(t *testing.T, userID int64) string {
	w := e.do(t, http.MethodPost, "/api/listings/sessions", userID, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var view service.SessionView
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &view))
	return view.ID
}

func fillRequired() controller.EditRequest {
	return controller.EditRequest{Actions: []form.Action{
		form.SetField("title", "赣南脐橙"),
		form.SetField("description", "果园直发"),
		form.SetField("price", "6.8"),
		form.SetField("quantity", "1000"),
		form.SetField("category_id", "2"),
		form.SetField("city", "赣州"),
		form.SetField("province", "江西"),
		form.SetField("payment_terms", model.PaymentPartialAdvance),
	}}
}

// ==================== 测试 ====================

func TestListEnums(t *testing.T) {
	e := newTestEnv(t)
	w := e.do(t, http.MethodGet, "/api/enums", 0, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var enums []dto.EnumVO
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &enums))
	require.Len(t, enums, 7)
	for _, en := range enums {
		assert.Contains(t, en.Values, en.Default, en.Attribute)
	}
}

func TestSessionRoutes_RequireAuth(t *testing.T) {
	e := newTestEnv(t)
	w := e.do(t, http.MethodPost, "/api/listings/sessions", 0, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCreateFlow(t *testing.T) {
	e := newTestEnv(t)
	sid := e.startSession(t, 1)

	w := e.do(t, http.MethodPatch, "/api/sessions/"+sid, 1, fillRequired())
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = e.upload(t, sid, 1, "orange.png", testPNG)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var up struct {
		URL string `json:"url"`
	}
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &up))
	assert.Contains(t, up.URL, "/listings/1/")

	w = e.do(t, http.MethodPost, "/api/sessions/"+sid+"/submit", 1, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var res service.SubmitResult
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &res))
	assert.True(t, res.Created)

	// 会话已关闭
	w = e.do(t, http.MethodGet, "/api/sessions/"+sid, 1, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = e.do(t, http.MethodGet, fmt.Sprintf("/api/listings/%d", res.ListingID), 0, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var vo dto.ListingVO
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &vo))
	assert.Equal(t, "赣南脐橙", vo.Title)
	assert.Equal(t, "6.8", vo.Price)
	assert.Equal(t, model.PaymentPartialAdvance, vo.PaymentTerms)
	assert.Equal(t, model.CertificationNone, vo.Certification)
	assert.Equal(t, []string{up.URL}, vo.Images)

	w = e.do(t, http.MethodGet, "/api/listings?province="+url.QueryEscape("江西"), 0, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total":1`)
}

func TestEditFlow(t *testing.T) {
	e := newTestEnv(t)
	sid := e.startSession(t, 1)
	require.Equal(t, http.StatusOK, e.do(t, http.MethodPatch, "/api/sessions/"+sid, 1, fillRequired()).Code)
	w := e.do(t, http.MethodPost, "/api/sessions/"+sid+"/submit", 1, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	var res service.SubmitResult
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &res))
	path := fmt.Sprintf("/api/listings/%d/sessions", res.ListingID)

	assert.Equal(t, http.StatusForbidden, e.do(t, http.MethodPost, path, 2, nil).Code)
	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodPost, "/api/listings/999/sessions", 1, nil).Code)

	w = e.do(t, http.MethodPost, path, 1, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	var view service.SessionView
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &view))
	assert.Equal(t, "edit", view.Mode)
	assert.Equal(t, "6.8", view.Draft.Price)

	w = e.do(t, http.MethodPatch, "/api/sessions/"+view.ID, 1, controller.EditRequest{Actions: []form.Action{
		form.SetField("status", model.StatusSold),
	}})
	require.Equal(t, http.StatusOK, w.Code)

	w = e.do(t, http.MethodPost, "/api/sessions/"+view.ID+"/submit", 1, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = e.do(t, http.MethodGet, fmt.Sprintf("/api/listings/%d", res.ListingID), 0, nil)
	var vo dto.ListingVO
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &vo))
	assert.Equal(t, model.StatusSold, vo.Status)
	require.NotNil(t, vo.UpdatedAt)
	assert.False(t, vo.UpdatedAt.IsZero())
}

func TestSubmit_ValidationErrors(t *testing.T) {
	e := newTestEnv(t)
	sid := e.startSession(t, 1)

	w := e.do(t, http.MethodPost, "/api/sessions/"+sid+"/submit", 1, nil)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	env := decode(t, w)
	assert.Equal(t, "required", env.Errors["title"].Kind)
	assert.Equal(t, "required", env.Errors["price"].Kind)

	req := fillRequired()
	req.Actions = append(req.Actions, form.SetField("price", "abc"))
	require.Equal(t, http.StatusOK, e.do(t, http.MethodPatch, "/api/sessions/"+sid, 1, req).Code)

	w = e.do(t, http.MethodPost, "/api/sessions/"+sid+"/submit", 1, nil)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "malformed_numeric", decode(t, w).Errors["price"].Kind)

	// 草稿保留
	w = e.do(t, http.MethodGet, "/api/sessions/"+sid, 1, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestApplyEdits_BadInput(t *testing.T) {
	e := newTestEnv(t)
	sid := e.startSession(t, 1)

	w := e.do(t, http.MethodPatch, "/api/sessions/"+sid, 1, controller.EditRequest{Actions: []form.Action{
		form.SetField("condition", "rotten"),
	}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(t, http.MethodPatch, "/api/sessions/"+sid, 1, map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// 他人的会话
	w = e.do(t, http.MethodPatch, "/api/sessions/"+sid, 2, fillRequired())
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUploadImage_Errors(t *testing.T) {
	e := newTestEnv(t)
	sid := e.startSession(t, 1)

	assert.Equal(t, http.StatusUnsupportedMediaType, e.upload(t, sid, 1, "a.txt", []byte("just text")).Code)

	big := append(append([]byte{}, testPNG...), make([]byte, 5<<20)...)
	assert.Equal(t, http.StatusRequestEntityTooLarge, e.upload(t, sid, 1, "big.png", big).Code)

	for i := 0; i < form.MaxImages; i++ {
		require.Equal(t, http.StatusCreated, e.upload(t, sid, 1, "a.png", testPNG).Code)
	}
	assert.Equal(t, http.StatusBadRequest, e.upload(t, sid, 1, "a.png", testPNG).Code)
}

func TestDeleteImage(t *testing.T) {
	e := newTestEnv(t)
	sid := e.startSession(t, 1)

	w := e.upload(t, sid, 1, "a.png", testPNG)
	require.Equal(t, http.StatusCreated, w.Code)
	var up struct {
		URL string `json:"url"`
	}
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &up))

	w = e.do(t, http.MethodDelete, "/api/sessions/"+sid+"/images", 1, dto.DeleteImageRequest{URL: up.URL})
	require.Equal(t, http.StatusOK, w.Code)
	var view service.SessionView
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &view))
	assert.Empty(t, view.Draft.Images)

	w = e.do(t, http.MethodDelete, "/api/sessions/"+sid+"/images", 1, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeleteImage_LegacyURL(t *testing.T) {
	e := newTestEnv(t)
	legacy := &model.Listing{OwnerID: 1, Images: model.StringSlice{"https://legacy.cdn/old.jpg"}}
	require.NoError(t, e.db.Create(legacy).Error)

	w := e.do(t, http.MethodPost, fmt.Sprintf("/api/listings/%d/sessions", legacy.ID), 1, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var view service.SessionView
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &view))
	require.Equal(t, []string{"https://legacy.cdn/old.jpg"}, view.Draft.Images)

	w = e.do(t, http.MethodDelete, "/api/sessions/"+view.ID+"/images", 1, dto.DeleteImageRequest{URL: "https://legacy.cdn/old.jpg"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &view))
	assert.Empty(t, view.Draft.Images)
}

func TestHealthz_TaskStatus(t *testing.T) {
	r := router.SetupRouter(&router.Controllers{}, router.Options{
		TaskStatus: func() map[string]bool { return map[string]bool{"session_sweep": true} },
	})
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/healthz", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Status string          `json:"status"`
		Tasks  map[string]bool `json:"tasks"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.True(t, body.Tasks["session_sweep"])
}

func TestDiscard(t *testing.T) {
	e := newTestEnv(t)
	sid := e.startSession(t, 1)

	assert.Equal(t, http.StatusOK, e.do(t, http.MethodDelete, "/api/sessions/"+sid, 1, nil).Code)
	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodGet, "/api/sessions/"+sid, 1, nil).Code)
}

func TestFavorites(t *testing.T) {
	e := newTestEnv(t)
	sid := e.startSession(t, 1)
	require.Equal(t, http.StatusOK, e.do(t, http.MethodPatch, "/api/sessions/"+sid, 1, fillRequired()).Code)
	w := e.do(t, http.MethodPost, "/api/sessions/"+sid+"/submit", 1, nil)
	var res service.SubmitResult
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &res))

	path := fmt.Sprintf("/api/favorites/%d", res.ListingID)
	assert.Equal(t, http.StatusOK, e.do(t, http.MethodPost, path, 2, nil).Code)
	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodPost, "/api/favorites/777", 2, nil).Code)
	assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodPost, "/api/favorites/abc", 2, nil).Code)

	w = e.do(t, http.MethodGet, "/api/favorites", 2, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var favs []dto.ListingVO
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &favs))
	require.Len(t, favs, 1)
	assert.Equal(t, res.ListingID, favs[0].ID)

	assert.Equal(t, http.StatusOK, e.do(t, http.MethodDelete, path, 2, nil).Code)
	w = e.do(t, http.MethodGet, "/api/favorites", 2, nil)
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &favs))
	assert.Empty(t, favs)
}

func TestCategories(t *testing.T) {
	e := newTestEnv(t)
	require.NoError(t, e.db.Create(&model.Category{Name: "蔬菜"}).Error)

	w := e.do(t, http.MethodGet, "/api/categories", 0, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var cats []dto.CategoryVO
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &cats))
	require.Len(t, cats, 1)
	assert.Equal(t, "蔬菜", cats[0].Name)
}

func TestStoreFailure_Returns500(t *testing.T) {
	e := newTestEnv(t)
	sid := e.startSession(t, 1)
	require.Equal(t, http.StatusOK, e.do(t, http.MethodPatch, "/api/sessions/"+sid, 1, fillRequired()).Code)

	sqlDB, err := e.db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	w := e.do(t, http.MethodPost, "/api/sessions/"+sid+"/submit", 1, nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, http.StatusOK, e.do(t, http.MethodGet, "/api/sessions/"+sid, 1, nil).Code)
}
