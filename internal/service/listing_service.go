package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"photomarket/api/internal/models"
)

const (
	defaultFeaturedLimit = 10
	maxFeaturedLimit     = 50
)

// PhotoQueries is the read-side surface of the photo store. Every query
// already filters inactive listings.
type PhotoQueries interface {
	List(ctx context.Context, limit, offset int) ([]models.Photo, error)
	ListBySeller(ctx context.Context, sellerID string) ([]models.Photo, error)
	ListByBuyer(ctx context.Context, buyerID string) ([]models.Photo, error)
	FindFeatured(ctx context.Context, limit int) ([]models.Photo, error)
	FindByCategory(ctx context.Context, category models.Category, includeSold bool) ([]models.Photo, error)
	Search(ctx context.Context, term string, includeSold bool) ([]models.Photo, error)
}

type ListingService struct {
	photos PhotoQueries
	log    zerolog.Logger
}

func NewListingService(photos PhotoQueries, log zerolog.Logger) *ListingService {
	return &ListingService{photos: photos, log: log}
}

func (s *ListingService) Browse(ctx context.Context, limit, offset int) ([]models.Photo, error) {
	return s.photos.List(ctx, limit, offset)
}

func (s *ListingService) BySeller(ctx context.Context, sellerID string) ([]models.Photo, error) {
	return s.photos.ListBySeller(ctx, sellerID)
}

func (s *ListingService) Purchased(ctx context.Context, buyerID string) ([]models.Photo, error) {
	return s.photos.ListByBuyer(ctx, buyerID)
}

func (s *ListingService) Featured(ctx context.Context, limit int) ([]models.Photo, error) {
	if limit <= 0 {
		limit = defaultFeaturedLimit
	}
	if limit > maxFeaturedLimit {
		limit = maxFeaturedLimit
	}
	return s.photos.FindFeatured(ctx, limit)
}

func (s *ListingService) ByCategory(ctx context.Context, category models.Category, includeSold bool) ([]models.Photo, error) {
	if !models.ValidCategory(category) {
		return nil, fmt.Errorf("%w: unknown category %q", ErrInvalidListing, category)
	}
	return s.photos.FindByCategory(ctx, category, includeSold)
}

func (s *ListingService) Search(ctx context.Context, term string, includeSold bool) ([]models.Photo, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, fmt.Errorf("%w: empty search term", ErrInvalidListing)
	}
	return s.photos.Search(ctx, term, includeSold)
}
