package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"agri_market_v1/internal/api/dto"
	"agri_market_v1/internal/repository"
	"agri_market_v1/pkg/utils"
)

const categoryCacheKey = "agri:categories"

// ==================== 缓存 ====================

// CategoryCache 分类目录缓存，读写失败均视为未命中
type CategoryCache interface {
	Load(ctx context.Context) ([]dto.CategoryVO, bool)
	Store(ctx context.Context, categories []dto.CategoryVO)
}

type memoryCategoryCache struct {
	cache *utils.TTLCache
}

// NewMemoryCategoryCache 进程内缓存
func NewMemoryCategoryCache(ttl time.Duration) CategoryCache {
	return &memoryCategoryCache{cache: utils.NewTTLCache(ttl)}
}

func (c *memoryCategoryCache) Load(ctx context.Context) ([]dto.CategoryVO, bool) {
	v, ok := c.cache.Get(categoryCacheKey)
	if !ok {
		return nil, false
	}
	cats, ok := v.([]dto.CategoryVO)
	return cats, ok
}

func (c *memoryCategoryCache) Store(ctx context.Context, categories []dto.CategoryVO) {
	c.cache.Set(categoryCacheKey, categories)
}

// RedisCategoryCache 多实例部署时共享的分类缓存
type RedisCategoryCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewRedisCategoryCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisCategoryCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisCategoryCache{client: client, ttl: ttl, logger: logger}
}

func (c *RedisCategoryCache) Load(ctx context.Context) ([]dto.CategoryVO, bool) {
	data, err := c.client.Get(ctx, categoryCacheKey).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("读取分类缓存失败", zap.Error(err))
		}
		return nil, false
	}

	var cats []dto.CategoryVO
	if err := json.Unmarshal(data, &cats); err != nil {
		c.logger.Warn("分类缓存格式错误", zap.Error(err))
		return nil, false
	}
	return cats, true
}

func (c *RedisCategoryCache) Store(ctx context.Context, categories []dto.CategoryVO) {
	data, err := json.Marshal(categories)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, categoryCacheKey, data, c.ttl).Err(); err != nil {
		c.logger.Warn("写入分类缓存失败", zap.Error(err))
	}
}

// ==================== 服务实现 ====================

// CategoryService 分类目录
type CategoryService struct {
	repo  repository.CategoryRepository
	cache CategoryCache
}

func NewCategoryService(repo repository.CategoryRepository, cache CategoryCache) *CategoryService {
	if cache == nil {
		cache = NewMemoryCategoryCache(0)
	}
	return &CategoryService{repo: repo, cache: cache}
}

// List 优先读缓存
func (s *CategoryService) List(ctx context.Context) ([]dto.CategoryVO, error) {
	if cats, ok := s.cache.Load(ctx); ok {
		return cats, nil
	}

	cats, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	s.cache.Store(ctx, cats)
	return cats, nil
}

// Refresh 从仓储重建缓存；读取失败时保留旧缓存
func (s *CategoryService) Refresh(ctx context.Context) error {
	cats, err := s.load(ctx)
	if err != nil {
		return err
	}
	s.cache.Store(ctx, cats)
	return nil
}

func (s *CategoryService) load(ctx context.Context) ([]dto.CategoryVO, error) {
	rows, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	cats := make([]dto.CategoryVO, 0, len(rows))
	for _, r := range rows {
		cats = append(cats, dto.CategoryVO{ID: r.ID, Name: r.Name, ParentID: r.ParentID})
	}
	return cats, nil
}
