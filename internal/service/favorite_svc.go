package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"agri_market_v1/internal/api/dto"
	"agri_market_v1/internal/repository"
)

// ListingReader 读取规范化后的商品
type ListingReader interface {
	GetListing(ctx context.Context, id int64) (*dto.ListingVO, error)
}

// FavoriteService 收藏
type FavoriteService struct {
	repo     repository.FavoriteRepository
	listings ListingReader
	logger   *zap.Logger
}

func NewFavoriteService(repo repository.FavoriteRepository, listings ListingReader, logger *zap.Logger) *FavoriteService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FavoriteService{repo: repo, listings: listings, logger: logger.Named("favorite")}
}

// Add 收藏，商品不存在返回 ErrListingNotFound
func (s *FavoriteService) Add(ctx context.Context, userID, listingID int64) error {
	if _, err := s.listings.GetListing(ctx, listingID); err != nil {
		return err
	}
	return s.repo.Add(ctx, userID, listingID)
}

func (s *FavoriteService) Remove(ctx context.Context, userID, listingID int64) error {
	return s.repo.Remove(ctx, userID, listingID)
}

// List 已下架（不存在）的商品跳过
func (s *FavoriteService) List(ctx context.Context, userID int64) ([]dto.ListingVO, error) {
	favs, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := make([]dto.ListingVO, 0, len(favs))
	for _, f := range favs {
		vo, err := s.listings.GetListing(ctx, f.ListingID)
		if err != nil {
			if errors.Is(err, ErrListingNotFound) {
				s.logger.Debug("收藏的商品已不存在", zap.Int64("listing_id", f.ListingID))
				continue
			}
			return nil, err
		}
		out = append(out, *vo)
	}
	return out, nil
}
