package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"photomarket/api/internal/config"
	"photomarket/api/internal/ids"
	"photomarket/api/internal/media/sniffer"
	"photomarket/api/internal/models"
	"photomarket/api/internal/repository"
)

// TaskStream is the redis stream the thumbnail/cleanup worker consumes.
const TaskStream = "photos:tasks"

// PhotoStore is the persistence surface the lifecycle engine needs. The
// conditional mutations return false when their precondition did not hold;
// the engine re-reads the record to classify why.
type PhotoStore interface {
	Create(ctx context.Context, photo models.Photo) error
	GetByID(ctx context.Context, id string) (models.Photo, error)
	MarkSold(ctx context.Context, id string, buyerID string, buyerName string, payment models.PaymentInfo) (bool, error)
	UpdatePrice(ctx context.Context, id string, sellerID string, price float64) (bool, error)
	IncrementViews(ctx context.Context, id string) error
	IncrementDownloads(ctx context.Context, id string) error
	ToggleLike(ctx context.Context, id string, userID string) (bool, int, error)
	AddReport(ctx context.Context, id string, userID string, reason string, threshold int) (int, bool, error)
	DeleteUnsold(ctx context.Context, id string) (bool, error)
	DeleteByID(ctx context.Context, id string) error
}

// BlobStore is the object-storage surface. Blob contents are never inspected
// past the sniffed head.
type BlobStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
	Remove(ctx context.Context, key string) error
	PresignedGet(ctx context.Context, key string, ttl time.Duration) (string, error)
}

type PhotoService struct {
	store    PhotoStore
	blobs    BlobStore
	verifier PaymentVerifier
	queue    *redis.Client
	cfg      *config.AppConfig
	log      zerolog.Logger
}

func NewPhotoService(store PhotoStore, blobs BlobStore, verifier PaymentVerifier, queue *redis.Client, cfg *config.AppConfig, log zerolog.Logger) *PhotoService {
	return &PhotoService{
		store:    store,
		blobs:    blobs,
		verifier: verifier,
		queue:    queue,
		cfg:      cfg,
		log:      log,
	}
}

type UploadInput struct {
	Seller      models.User
	File        multipart.File
	Header      *multipart.FileHeader
	Title       string
	Description string
	Category    models.Category
	Tags        []string
	Price       float64
	Metadata    models.PhotoMetadata
}

func (s *PhotoService) Upload(ctx context.Context, input UploadInput) (models.Photo, error) {
	if input.File == nil || input.Header == nil {
		return models.Photo{}, fmt.Errorf("%w: file required", ErrInvalidUpload)
	}
	if max := s.cfg.Upload.MaxFileSize; max > 0 && input.Header.Size > max {
		return models.Photo{}, fmt.Errorf("%w: file exceeds %d bytes", ErrInvalidUpload, max)
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		title = strings.TrimSuffix(input.Header.Filename, path.Ext(input.Header.Filename))
	}
	if n := utf8.RuneCountInString(title); n < models.TitleMinLen || n > models.TitleMaxLen {
		return models.Photo{}, fmt.Errorf("%w: title must be %d-%d characters", ErrInvalidListing, models.TitleMinLen, models.TitleMaxLen)
	}
	if utf8.RuneCountInString(input.Description) > models.DescriptionMax {
		return models.Photo{}, fmt.Errorf("%w: description exceeds %d characters", ErrInvalidListing, models.DescriptionMax)
	}
	category := input.Category
	if category == "" {
		category = models.CategoryOther
	}
	if !models.ValidCategory(category) {
		return models.Photo{}, fmt.Errorf("%w: unknown category %q", ErrInvalidListing, category)
	}
	if input.Price < models.PriceMin || input.Price > models.PriceMax {
		return models.Photo{}, ErrInvalidPrice
	}

	data, result, err := s.readImage(input.File, input.Header)
	if err != nil {
		return models.Photo{}, err
	}

	photoID := ids.New()
	objectKey := buildObjectKey(input.Seller.ID, photoID, string(result.Type))

	imageURL, err := s.blobs.Put(ctx, objectKey, bytes.NewReader(data), int64(len(data)), result.MIME)
	if err != nil {
		return models.Photo{}, fmt.Errorf("store photo: %w", err)
	}

	now := time.Now().UTC()
	photo := models.Photo{
		ID:               photoID,
		Title:            title,
		Description:      input.Description,
		Category:         category,
		Tags:             models.NormalizeTags(input.Tags),
		Price:            input.Price,
		SellerID:         input.Seller.ID,
		SellerName:       input.Seller.Name,
		IsActive:         true,
		ImageURL:         imageURL,
		ObjectKey:        objectKey,
		Metadata:         input.Metadata,
		OriginalFileName: input.Header.Filename,
		FileSize:         int64(len(data)),
		MimeType:         result.MIME,
		UploadDate:       now,
		UpdatedAt:        now,
	}
	photo.Metadata.Format = string(result.Type)

	if err := s.store.Create(ctx, photo); err != nil {
		return models.Photo{}, fmt.Errorf("save listing: %w", err)
	}

	if err := s.enqueueThumbnail(ctx, photo); err != nil {
		s.log.Warn().Err(err).Str("photo_id", photo.ID).Msg("enqueue thumbnail failed")
	}

	return photo, nil
}

func (s *PhotoService) readImage(file multipart.File, header *multipart.FileHeader) ([]byte, sniffer.Result, error) {
	head := make([]byte, 512)
	n, err := file.Read(head)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, sniffer.Result{}, fmt.Errorf("read head: %w", err)
	}
	head = head[:n]

	var data []byte
	if seeker, ok := file.(io.ReadSeeker); ok {
		if _, err := seeker.Seek(0, io.SeekStart); err != nil {
			return nil, sniffer.Result{}, fmt.Errorf("rewind: %w", err)
		}
		data, err = io.ReadAll(seeker)
		if err != nil {
			return nil, sniffer.Result{}, fmt.Errorf("read file: %w", err)
		}
	} else {
		rest, err := io.ReadAll(file)
		if err != nil {
			return nil, sniffer.Result{}, fmt.Errorf("read file: %w", err)
		}
		data = append(head, rest...)
	}
	if len(data) == 0 {
		return nil, sniffer.Result{}, fmt.Errorf("%w: empty file", ErrInvalidUpload)
	}

	result, err := sniffer.DetectHead(head)
	if err != nil {
		return nil, sniffer.Result{}, fmt.Errorf("%w: not a supported image", ErrInvalidUpload)
	}
	if result.Type == sniffer.TypeSVG {
		return nil, sniffer.Result{}, fmt.Errorf("%w: vector images are not accepted", ErrInvalidUpload)
	}

	declared := sniffer.MimeTypeFromHTTP(http.Header(header.Header))
	if declared != "" && declared != result.MIME {
		return nil, sniffer.Result{}, fmt.Errorf("%w: declared %s, actual %s", ErrInvalidUpload, declared, result.MIME)
	}

	return data, result, nil
}

// Purchase marks the listing sold to buyer. The conditional write in the
// store guarantees at most one purchase ever succeeds; the buyer fields are
// written in the same statement so no reader can observe a half-sold photo.
func (s *PhotoService) Purchase(ctx context.Context, photoID string, buyer models.User, req PaymentRequest) (models.Photo, error) {
	photo, err := s.store.GetByID(ctx, photoID)
	if err != nil {
		return models.Photo{}, err
	}
	if photo.Sold {
		return models.Photo{}, ErrAlreadySold
	}
	if photo.SellerID == buyer.ID {
		return models.Photo{}, ErrSelfPurchase
	}

	payment, err := s.verifier.Verify(ctx, photo, req)
	if err != nil {
		return models.Photo{}, err
	}

	won, err := s.store.MarkSold(ctx, photoID, buyer.ID, buyer.Name, payment)
	if err != nil {
		return models.Photo{}, err
	}
	if !won {
		return models.Photo{}, s.classifyPurchaseFailure(ctx, photoID, buyer.ID)
	}

	return s.store.GetByID(ctx, photoID)
}

func (s *PhotoService) classifyPurchaseFailure(ctx context.Context, photoID string, buyerID string) error {
	photo, err := s.store.GetByID(ctx, photoID)
	if err != nil {
		return err
	}
	// sold is monotonic, so this read cannot misclassify a lost race.
	if photo.Sold {
		return ErrAlreadySold
	}
	if photo.SellerID == buyerID {
		return ErrSelfPurchase
	}
	return repository.ErrPhotoNotFound
}

func (s *PhotoService) UpdatePrice(ctx context.Context, photoID string, sellerID string, price float64) (models.Photo, error) {
	if price < models.PriceMin || price > models.PriceMax {
		return models.Photo{}, ErrInvalidPrice
	}

	ok, err := s.store.UpdatePrice(ctx, photoID, sellerID, price)
	if err != nil {
		return models.Photo{}, err
	}
	if !ok {
		photo, err := s.store.GetByID(ctx, photoID)
		if err != nil {
			return models.Photo{}, err
		}
		if photo.SellerID != sellerID {
			return models.Photo{}, ErrNotOwner
		}
		return models.Photo{}, ErrAlreadySold
	}

	return s.store.GetByID(ctx, photoID)
}

// Delete removes an unsold listing. The blob is released first; if that
// fails the record stays queryable and the caller may retry.
func (s *PhotoService) Delete(ctx context.Context, photoID string, sellerID string) error {
	photo, err := s.store.GetByID(ctx, photoID)
	if err != nil {
		return err
	}
	if photo.SellerID != sellerID {
		return ErrNotOwner
	}
	if photo.Sold {
		return ErrAlreadySold
	}

	if err := s.blobs.Remove(ctx, photo.ObjectKey); err != nil {
		s.log.Error().Err(err).Str("photo_id", photoID).Msg("blob release failed, listing kept")
		return fmt.Errorf("%w: %v", ErrStorageRelease, err)
	}

	ok, err := s.store.DeleteUnsold(ctx, photoID)
	if err != nil {
		return err
	}
	if !ok {
		// Sold between the blob release and the record delete. The blob is
		// already gone at this point; the sold record stays and its download
		// path will fail until the object is restored.
		return ErrAlreadySold
	}
	return nil
}

func (s *PhotoService) ToggleLike(ctx context.Context, photoID string, userID string) (liked bool, count int, err error) {
	return s.store.ToggleLike(ctx, photoID, userID)
}

func (s *PhotoService) Report(ctx context.Context, photoID string, userID string, reason string) (count int, active bool, err error) {
	return s.store.AddReport(ctx, photoID, userID, reason, models.ReportDeactivateThreshold)
}

// RecordView bumps the view counter. Lossy under failure; callers treat it
// as best-effort.
func (s *PhotoService) RecordView(ctx context.Context, photoID string) error {
	return s.store.IncrementViews(ctx, photoID)
}

// DownloadURL issues a short-lived presigned URL for the original blob.
// Only the buyer of a sold photo or the owning seller is entitled.
func (s *PhotoService) DownloadURL(ctx context.Context, photoID string, requester models.User) (string, error) {
	photo, err := s.store.GetByID(ctx, photoID)
	if err != nil {
		return "", err
	}

	entitled := photo.SellerID == requester.ID ||
		(photo.Sold && photo.BuyerID != nil && *photo.BuyerID == requester.ID)
	if !entitled {
		return "", ErrNotPurchased
	}

	url, err := s.blobs.PresignedGet(ctx, photo.ObjectKey, s.cfg.Payment.DownloadTTL)
	if err != nil {
		return "", fmt.Errorf("presign download: %w", err)
	}

	if err := s.store.IncrementDownloads(ctx, photoID); err != nil {
		s.log.Warn().Err(err).Str("photo_id", photoID).Msg("download counter bump failed")
	}

	return url, nil
}

// AdminDelete removes a listing regardless of sale state, blob first. Only
// the admin bulk-delete path reaches this.
func (s *PhotoService) AdminDelete(ctx context.Context, photoID string) error {
	photo, err := s.store.GetByID(ctx, photoID)
	if err != nil {
		return err
	}
	if err := s.blobs.Remove(ctx, photo.ObjectKey); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageRelease, err)
	}
	return s.store.DeleteByID(ctx, photoID)
}

func (s *PhotoService) enqueueThumbnail(ctx context.Context, photo models.Photo) error {
	if s.queue == nil {
		return nil
	}

	payload := map[string]any{
		"type":    "thumbnail",
		"photoId": photo.ID,
		"object":  photo.ObjectKey,
		"format":  photo.Metadata.Format,
	}
	_, err := s.queue.XAdd(ctx, &redis.XAddArgs{
		Stream: TaskStream,
		Values: payload,
	}).Result()
	return err
}

func buildObjectKey(sellerID string, photoID string, ext string) string {
	return path.Join("photos", sellerID, fmt.Sprintf("%s.%s", photoID, ext))
}
