package repository

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"agri_market_v1/internal/api/dto"
	"agri_market_v1/internal/model"
)

// ==================== 托管后端 (PostgREST 协议) ====================

// RestConfig 托管后端配置
type RestConfig struct {
	BaseURL string        // 例如 https://xyz.example.co/rest/v1
	APIKey  string        // 服务端 key
	Timeout time.Duration // 默认 10s
	Retries int           // 重试次数，仅对 GET 生效
}

// RestClient 托管后端客户端，同时实现 ListingRepository 与 CategoryRepository
type RestClient struct {
	client *resty.Client
}

// NewRestClient 创建客户端
func NewRestClient(cfg RestConfig) *RestClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.Retries).
		AddRetryCondition(retryReadsOnly).
		SetHeader("apikey", cfg.APIKey).
		SetHeader("Accept", "application/json").
		SetHeader("Content-Type", "application/json")
	if cfg.APIKey != "" {
		client.SetAuthToken(cfg.APIKey)
	}

	return &RestClient{client: client}
}

// retryReadsOnly 写请求不重试，连接在提交后断开时重发会产生重复记录
func retryReadsOnly(resp *resty.Response, err error) bool {
	if resp == nil || resp.Request == nil || resp.Request.Method != http.MethodGet {
		return false
	}
	return err != nil || resp.StatusCode() >= http.StatusInternalServerError
}

// RestError 托管后端返回的非 2xx 响应
type RestError struct {
	Status int
	Body   string
}

func (e *RestError) Error() string {
	return fmt.Sprintf("backend responded %d: %s", e.Status, e.Body)
}

func checkResponse(resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("backend request failed: %w", err)
	}
	if resp.IsError() {
		return &RestError{Status: resp.StatusCode(), Body: resp.String()}
	}
	return nil
}

// ownedPayload 创建时携带 owner_id
type ownedPayload struct {
	OwnerID int64 `json:"owner_id"`
	*dto.ListingPayload
}

func (c *RestClient) FetchListing(ctx context.Context, id int64) (*dto.RemoteListing, error) {
	var rows []dto.RemoteListing
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParam("id", "eq."+strconv.FormatInt(id, 10)).
		SetQueryParam("select", "*").
		SetResult(&rows).
		Get("/listings")
	if err := checkResponse(resp, err); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrListingNotFound
	}
	return &rows[0], nil
}

func (c *RestClient) CreateListing(ctx context.Context, ownerID int64, payload *dto.ListingPayload) (int64, error) {
	var rows []dto.RemoteListing
	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("Prefer", "return=representation").
		SetBody(ownedPayload{OwnerID: ownerID, ListingPayload: payload}).
		SetResult(&rows).
		Post("/listings")
	if err := checkResponse(resp, err); err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, fmt.Errorf("backend returned no created row")
	}
	return rows[0].ID, nil
}

func (c *RestClient) UpdateListing(ctx context.Context, id, ownerID int64, payload *dto.ListingPayload) error {
	var rows []dto.RemoteListing
	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("Prefer", "return=representation").
		SetQueryParam("id", "eq."+strconv.FormatInt(id, 10)).
		SetQueryParam("owner_id", "eq."+strconv.FormatInt(ownerID, 10)).
		SetBody(payload).
		SetResult(&rows).
		Patch("/listings")
	if err := checkResponse(resp, err); err != nil {
		return err
	}
	if len(rows) > 0 {
		return nil
	}

	if _, err := c.FetchListing(ctx, id); err != nil {
		return err
	}
	return ErrNotOwner
}

func (c *RestClient) List(ctx context.Context, filter ListingFilter) ([]dto.RemoteListing, int64, error) {
	filter.normalize()

	req := c.client.R().
		SetContext(ctx).
		SetHeader("Prefer", "count=exact").
		SetQueryParam("select", "*").
		SetQueryParam("order", "updated_at.desc").
		SetQueryParam("limit", strconv.Itoa(filter.PageSize)).
		SetQueryParam("offset", strconv.Itoa((filter.Page-1)*filter.PageSize))
	if filter.CategoryID > 0 {
		req.SetQueryParam("category_id", "eq."+strconv.FormatInt(filter.CategoryID, 10))
	}
	if filter.Province != "" {
		req.SetQueryParam("province", "eq."+filter.Province)
	}
	if filter.Status != "" {
		req.SetQueryParam("status", "eq."+filter.Status)
	}
	if filter.OwnerID > 0 {
		req.SetQueryParam("owner_id", "eq."+strconv.FormatInt(filter.OwnerID, 10))
	}

	var rows []dto.RemoteListing
	resp, err := req.SetResult(&rows).Get("/listings")
	if err := checkResponse(resp, err); err != nil {
		return nil, 0, err
	}

	total := int64(len(rows))
	if n, ok := parseContentRangeTotal(resp.Header().Get("Content-Range")); ok {
		total = n
	}
	return rows, total, nil
}

// parseContentRangeTotal 解析 "0-19/57" 中的总数
func parseContentRangeTotal(v string) (int64, bool) {
	idx := strings.LastIndex(v, "/")
	if idx < 0 || idx == len(v)-1 {
		return 0, false
	}
	n, err := strconv.ParseInt(v[idx+1:], 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// restCategory 远端分类行
type restCategory struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	ParentID *int64 `json:"parent_id"`
	Sort     int    `json:"sort"`
}

// Categories 返回分类仓储视图
func (c *RestClient) Categories() CategoryRepository {
	return restCategoryRepo{c: c}
}

type restCategoryRepo struct {
	c *RestClient
}

func (r restCategoryRepo) List(ctx context.Context) ([]model.Category, error) {
	var rows []restCategory
	resp, err := r.c.client.R().
		SetContext(ctx).
		SetQueryParam("select", "id,name,parent_id,sort").
		SetQueryParam("order", "sort.asc,id.asc").
		SetResult(&rows).
		Get("/categories")
	if err := checkResponse(resp, err); err != nil {
		return nil, err
	}

	out := make([]model.Category, 0, len(rows))
	for _, row := range rows {
		cat := model.Category{Name: row.Name, ParentID: row.ParentID, Sort: row.Sort}
		cat.ID = row.ID
		out = append(out, cat)
	}
	return out, nil
}

var _ ListingRepository = (*RestClient)(nil)
