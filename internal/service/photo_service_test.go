package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"photomarket/api/internal/config"
	"photomarket/api/internal/models"
	"photomarket/api/internal/repository"
)

// fakeStore emulates the per-document atomicity the real store gets from
// Postgres: every mutation holds the lock, and counters are recomputed from
// the backing collections.
type fakeStore struct {
	mu     sync.Mutex
	photos map[string]*models.Photo
}

func newFakeStore() *fakeStore {
	return &fakeStore{photos: make(map[string]*models.Photo)}
}

func (f *fakeStore) Create(_ context.Context, photo models.Photo) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := photo
	f.photos[p.ID] = &p
	return nil
}

func (f *fakeStore) GetByID(_ context.Context, id string) (models.Photo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.photos[id]
	if !ok {
		return models.Photo{}, repository.ErrPhotoNotFound
	}
	return *p, nil
}

func (f *fakeStore) MarkSold(_ context.Context, id string, buyerID string, buyerName string, payment models.PaymentInfo) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.photos[id]
	if !ok || p.Sold || p.SellerID == buyerID {
		return false, nil
	}
	now := time.Now().UTC()
	p.Sold = true
	p.BuyerID = &buyerID
	p.BuyerName = &buyerName
	p.SoldDate = &now
	pay := payment
	p.Payment = &pay
	p.UpdatedAt = now
	return true, nil
}

func (f *fakeStore) UpdatePrice(_ context.Context, id string, sellerID string, price float64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.photos[id]
	if !ok || p.Sold || p.SellerID != sellerID {
		return false, nil
	}
	p.Price = price
	p.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (f *fakeStore) IncrementViews(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.photos[id]
	if !ok {
		return repository.ErrPhotoNotFound
	}
	p.Views++
	return nil
}

func (f *fakeStore) IncrementDownloads(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.photos[id]
	if !ok {
		return repository.ErrPhotoNotFound
	}
	p.Downloads++
	return nil
}

func (f *fakeStore) ToggleLike(_ context.Context, id string, userID string) (bool, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.photos[id]
	if !ok {
		return false, 0, repository.ErrPhotoNotFound
	}
	liked := true
	next := p.Likes[:0:0]
	for _, u := range p.Likes {
		if u == userID {
			liked = false
			continue
		}
		next = append(next, u)
	}
	if liked {
		next = append(next, userID)
	}
	p.Likes = next
	p.LikesCount = len(p.Likes)
	p.UpdatedAt = time.Now().UTC()
	return liked, p.LikesCount, nil
}

func (f *fakeStore) AddReport(_ context.Context, id string, userID string, reason string, threshold int) (int, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.photos[id]
	if !ok {
		return 0, false, repository.ErrPhotoNotFound
	}
	p.Reports = append(p.Reports, models.Report{UserID: userID, Reason: reason, Date: time.Now().UTC()})
	p.ReportCount = len(p.Reports)
	if p.ReportCount >= threshold {
		p.IsActive = false
	}
	p.UpdatedAt = time.Now().UTC()
	return p.ReportCount, p.IsActive, nil
}

func (f *fakeStore) DeleteUnsold(_ context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.photos[id]
	if !ok || p.Sold {
		return false, nil
	}
	delete(f.photos, id)
	return true, nil
}

func (f *fakeStore) DeleteByID(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.photos[id]; !ok {
		return repository.ErrPhotoNotFound
	}
	delete(f.photos, id)
	return nil
}

type fakeBlobs struct {
	mu      sync.Mutex
	objects map[string][]byte
	failOn  map[string]bool
}

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{objects: make(map[string][]byte), failOn: make(map[string]bool)}
}

func (f *fakeBlobs) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = data
	return "https://storage.example/" + key, nil
}

func (f *fakeBlobs) Remove(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOn[key] {
		return errors.New("storage unavailable")
	}
	delete(f.objects, key)
	return nil
}

func (f *fakeBlobs) PresignedGet(_ context.Context, key string, _ time.Duration) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.objects[key]; !ok {
		return "", errors.New("no such object")
	}
	return "https://storage.example/" + key + "?signed", nil
}

func (f *fakeBlobs) has(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.objects[key]
	return ok
}

func newTestService(store PhotoStore, blobs BlobStore) *PhotoService {
	cfg := &config.AppConfig{}
	cfg.Upload.MaxFileSize = 5 * 1024 * 1024
	cfg.Payment.Currency = "USD"
	cfg.Payment.DownloadTTL = 15 * time.Minute
	verifier := NewClientReportedVerifier(cfg.Payment, zerolog.Nop())
	return NewPhotoService(store, blobs, verifier, nil, cfg, zerolog.Nop())
}

func seedPhoto(t *testing.T, store *fakeStore, id string, sellerID string, price float64) models.Photo {
	t.Helper()
	photo := models.Photo{
		ID:         id,
		Title:      "Sunset over the bay",
		Category:   models.CategoryLandscape,
		Price:      price,
		SellerID:   sellerID,
		SellerName: "Sally",
		IsActive:   true,
		ImageURL:   "https://storage.example/photos/" + sellerID + "/" + id + ".jpeg",
		ObjectKey:  "photos/" + sellerID + "/" + id + ".jpeg",
		MimeType:   "image/jpeg",
		UploadDate: time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}
	require.NoError(t, store.Create(context.Background(), photo))
	return photo
}

func TestPurchase_SoldOnce(t *testing.T) {
	store := newFakeStore()
	blobs := newFakeBlobs()
	svc := newTestService(store, blobs)
	ctx := context.Background()

	seedPhoto(t, store, "p1", "seller-1", 50)
	buyer := models.User{ID: "buyer-1", Name: "Bob", Role: models.UserRoleBuyer}

	sold, err := svc.Purchase(ctx, "p1", buyer, PaymentRequest{PaymentID: "pay-1", Method: "card", Amount: 50})
	require.NoError(t, err)
	require.True(t, sold.Sold)
	require.NotNil(t, sold.BuyerName)
	require.Equal(t, "Bob", *sold.BuyerName)
	require.NotNil(t, sold.SoldDate)
	require.NotNil(t, sold.Payment)
	require.Equal(t, 50.0, sold.Payment.Amount)

	_, err = svc.Purchase(ctx, "p1", models.User{ID: "buyer-2", Name: "Eve"}, PaymentRequest{PaymentID: "pay-2"})
	require.ErrorIs(t, err, ErrAlreadySold)

	// buyer fields are frozen after the first sale
	after, err := store.GetByID(ctx, "p1")
	require.NoError(t, err)
	require.Equal(t, "buyer-1", *after.BuyerID)
	require.Equal(t, "pay-1", after.Payment.PaymentID)
}

func TestPurchase_SelfPurchase(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, newFakeBlobs())

	seedPhoto(t, store, "p1", "seller-1", 50)
	seller := models.User{ID: "seller-1", Name: "Sally", Role: models.UserRoleSeller}

	_, err := svc.Purchase(context.Background(), "p1", seller, PaymentRequest{PaymentID: "pay-1"})
	require.ErrorIs(t, err, ErrSelfPurchase)
}

func TestPurchase_MissingPaymentID(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, newFakeBlobs())

	seedPhoto(t, store, "p1", "seller-1", 50)

	_, err := svc.Purchase(context.Background(), "p1", models.User{ID: "buyer-1", Name: "Bob"}, PaymentRequest{})
	require.ErrorIs(t, err, ErrPaymentRejected)

	photo, err := store.GetByID(context.Background(), "p1")
	require.NoError(t, err)
	require.False(t, photo.Sold)
}

func TestPurchase_ConcurrentSingleWinner(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, newFakeBlobs())
	ctx := context.Background()

	seedPhoto(t, store, "p1", "seller-1", 50)

	const buyers = 8
	errs := make(chan error, buyers)
	var wg sync.WaitGroup
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			buyer := models.User{ID: fmt.Sprintf("buyer-%d", i), Name: fmt.Sprintf("B%d", i)}
			_, err := svc.Purchase(ctx, "p1", buyer, PaymentRequest{PaymentID: fmt.Sprintf("pay-%d", i)})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	wins := 0
	for err := range errs {
		if err == nil {
			wins++
		} else {
			require.ErrorIs(t, err, ErrAlreadySold)
		}
	}
	require.Equal(t, 1, wins)
}

func TestUpdatePrice(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, newFakeBlobs())
	ctx := context.Background()

	seedPhoto(t, store, "p1", "seller-1", 50)

	_, err := svc.UpdatePrice(ctx, "p1", "seller-1", -5)
	require.ErrorIs(t, err, ErrInvalidPrice)

	photo, err := svc.UpdatePrice(ctx, "p1", "seller-1", 10000)
	require.NoError(t, err)
	require.Equal(t, 10000.0, photo.Price)

	_, err = svc.UpdatePrice(ctx, "p1", "seller-1", 10000.01)
	require.ErrorIs(t, err, ErrInvalidPrice)

	_, err = svc.UpdatePrice(ctx, "p1", "someone-else", 75)
	require.ErrorIs(t, err, ErrNotOwner)

	_, err = svc.UpdatePrice(ctx, "missing", "seller-1", 75)
	require.ErrorIs(t, err, repository.ErrPhotoNotFound)
}

func TestUpdatePrice_AfterSale(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, newFakeBlobs())
	ctx := context.Background()

	seedPhoto(t, store, "p1", "seller-1", 50)
	_, err := svc.Purchase(ctx, "p1", models.User{ID: "buyer-1", Name: "Bob"}, PaymentRequest{PaymentID: "pay-1", Amount: 50})
	require.NoError(t, err)

	_, err = svc.UpdatePrice(ctx, "p1", "seller-1", 75)
	require.ErrorIs(t, err, ErrAlreadySold)
}

func TestToggleLike_Involution(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, newFakeBlobs())
	ctx := context.Background()

	seedPhoto(t, store, "p1", "seller-1", 50)

	liked, count, err := svc.ToggleLike(ctx, "p1", "user-1")
	require.NoError(t, err)
	require.True(t, liked)
	require.Equal(t, 1, count)

	liked, count, err = svc.ToggleLike(ctx, "p1", "user-1")
	require.NoError(t, err)
	require.False(t, liked)
	require.Equal(t, 0, count)

	photo, err := store.GetByID(ctx, "p1")
	require.NoError(t, err)
	require.Empty(t, photo.Likes)
	require.Equal(t, len(photo.Likes), photo.LikesCount)
}

func TestReport_DeactivatesAtThreshold(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, newFakeBlobs())
	ctx := context.Background()

	seedPhoto(t, store, "p1", "seller-1", 50)

	for i := 1; i <= 4; i++ {
		count, active, err := svc.Report(ctx, "p1", fmt.Sprintf("user-%d", i), "spam")
		require.NoError(t, err)
		require.Equal(t, i, count)
		require.True(t, active)
	}

	count, active, err := svc.Report(ctx, "p1", "user-5", "spam")
	require.NoError(t, err)
	require.Equal(t, 5, count)
	require.False(t, active)

	photo, err := store.GetByID(ctx, "p1")
	require.NoError(t, err)
	require.Equal(t, len(photo.Reports), photo.ReportCount)
	require.False(t, photo.IsActive)
}

func TestDelete_TwoPhase(t *testing.T) {
	store := newFakeStore()
	blobs := newFakeBlobs()
	svc := newTestService(store, blobs)
	ctx := context.Background()

	photo := seedPhoto(t, store, "p1", "seller-1", 50)
	blobs.objects[photo.ObjectKey] = []byte("jpeg")

	require.ErrorIs(t, svc.Delete(ctx, "p1", "intruder"), ErrNotOwner)

	// blob release failure keeps the record re-deletable
	blobs.failOn[photo.ObjectKey] = true
	err := svc.Delete(ctx, "p1", "seller-1")
	require.ErrorIs(t, err, ErrStorageRelease)
	_, err = store.GetByID(ctx, "p1")
	require.NoError(t, err)
	require.True(t, blobs.has(photo.ObjectKey))

	blobs.failOn[photo.ObjectKey] = false
	require.NoError(t, svc.Delete(ctx, "p1", "seller-1"))
	_, err = store.GetByID(ctx, "p1")
	require.ErrorIs(t, err, repository.ErrPhotoNotFound)
	require.False(t, blobs.has(photo.ObjectKey))
}

func TestDelete_SoldPhotoKept(t *testing.T) {
	store := newFakeStore()
	blobs := newFakeBlobs()
	svc := newTestService(store, blobs)
	ctx := context.Background()

	photo := seedPhoto(t, store, "p1", "seller-1", 50)
	blobs.objects[photo.ObjectKey] = []byte("jpeg")

	_, err := svc.Purchase(ctx, "p1", models.User{ID: "buyer-1", Name: "Bob"}, PaymentRequest{PaymentID: "pay-1"})
	require.NoError(t, err)

	require.ErrorIs(t, svc.Delete(ctx, "p1", "seller-1"), ErrAlreadySold)

	// record and blob both intact
	_, err = store.GetByID(ctx, "p1")
	require.NoError(t, err)
	require.True(t, blobs.has(photo.ObjectKey))
}

func TestDownloadURL_Entitlement(t *testing.T) {
	store := newFakeStore()
	blobs := newFakeBlobs()
	svc := newTestService(store, blobs)
	ctx := context.Background()

	photo := seedPhoto(t, store, "p1", "seller-1", 50)
	blobs.objects[photo.ObjectKey] = []byte("jpeg")

	_, err := svc.DownloadURL(ctx, "p1", models.User{ID: "stranger"})
	require.ErrorIs(t, err, ErrNotPurchased)

	url, err := svc.DownloadURL(ctx, "p1", models.User{ID: "seller-1"})
	require.NoError(t, err)
	require.Contains(t, url, "signed")

	_, err = svc.Purchase(ctx, "p1", models.User{ID: "buyer-1", Name: "Bob"}, PaymentRequest{PaymentID: "pay-1"})
	require.NoError(t, err)

	url, err = svc.DownloadURL(ctx, "p1", models.User{ID: "buyer-1"})
	require.NoError(t, err)
	require.Contains(t, url, photo.ObjectKey)

	after, err := store.GetByID(ctx, "p1")
	require.NoError(t, err)
	require.Equal(t, int64(2), after.Downloads)
}

type memFile struct{ *bytes.Reader }

func (memFile) Close() error { return nil }

func jpegHeader() []byte {
	data := []byte{0xff, 0xd8, 0xff, 0xe0}
	return append(data, bytes.Repeat([]byte{0x01}, 64)...)
}

func uploadInput(seller models.User, data []byte, filename string) UploadInput {
	header := &multipart.FileHeader{
		Filename: filename,
		Size:     int64(len(data)),
		Header:   textproto.MIMEHeader{},
	}
	return UploadInput{
		Seller: seller,
		File:   memFile{bytes.NewReader(data)},
		Header: header,
		Title:  "Morning fog",
		Price:  25,
	}
}

func TestUpload_CreatesListing(t *testing.T) {
	store := newFakeStore()
	blobs := newFakeBlobs()
	svc := newTestService(store, blobs)
	seller := models.User{ID: "seller-1", Name: "Sally", Role: models.UserRoleSeller}

	input := uploadInput(seller, jpegHeader(), "fog.jpg")
	input.Tags = []string{" Fog ", "MORNING", "fog"}

	photo, err := svc.Upload(context.Background(), input)
	require.NoError(t, err)
	require.Equal(t, "Morning fog", photo.Title)
	require.Equal(t, models.CategoryOther, photo.Category)
	require.Equal(t, []string{"fog", "morning"}, photo.Tags)
	require.Equal(t, "image/jpeg", photo.MimeType)
	require.True(t, photo.IsActive)
	require.False(t, photo.Sold)
	require.True(t, blobs.has(photo.ObjectKey))

	stored, err := store.GetByID(context.Background(), photo.ID)
	require.NoError(t, err)
	require.Equal(t, seller.ID, stored.SellerID)
	require.Equal(t, "Sally", stored.SellerName)
}

func TestUpload_Validation(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, newFakeBlobs())
	seller := models.User{ID: "seller-1", Name: "Sally"}
	ctx := context.Background()

	in := uploadInput(seller, jpegHeader(), "x.jpg")
	in.Title = "a"
	_, err := svc.Upload(ctx, in)
	require.ErrorIs(t, err, ErrInvalidListing)

	in = uploadInput(seller, jpegHeader(), "x.jpg")
	in.Title = "é"
	_, err = svc.Upload(ctx, in)
	require.ErrorIs(t, err, ErrInvalidListing)

	in = uploadInput(seller, jpegHeader(), "x.jpg")
	in.Description = strings.Repeat("é", models.DescriptionMax+1)
	_, err = svc.Upload(ctx, in)
	require.ErrorIs(t, err, ErrInvalidListing)

	in = uploadInput(seller, jpegHeader(), "x.jpg")
	in.Price = 10000.01
	_, err = svc.Upload(ctx, in)
	require.ErrorIs(t, err, ErrInvalidPrice)

	in = uploadInput(seller, jpegHeader(), "x.jpg")
	in.Category = "selfies"
	_, err = svc.Upload(ctx, in)
	require.ErrorIs(t, err, ErrInvalidListing)

	in = uploadInput(seller, []byte("definitely not an image"), "x.jpg")
	_, err = svc.Upload(ctx, in)
	require.ErrorIs(t, err, ErrInvalidUpload)
}

func TestUpload_MultibyteTitleCountedInRunes(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, newFakeBlobs())

	// 60 runes but 120 bytes; the title limit counts characters
	in := uploadInput(models.User{ID: "seller-1", Name: "Sally"}, jpegHeader(), "x.jpg")
	in.Title = strings.Repeat("é", 60)

	photo, err := svc.Upload(context.Background(), in)
	require.NoError(t, err)
	require.Equal(t, strings.Repeat("é", 60), photo.Title)
}

func TestUpload_TitleFallsBackToFilename(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, newFakeBlobs())

	in := uploadInput(models.User{ID: "seller-1", Name: "Sally"}, jpegHeader(), "golden-hour.jpg")
	in.Title = "  "

	photo, err := svc.Upload(context.Background(), in)
	require.NoError(t, err)
	require.Equal(t, "golden-hour", photo.Title)
}
