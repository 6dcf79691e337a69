package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"photomarket/api/internal/models"
)

var ErrPhotoNotFound = errors.New("photo not found")

const photoColumns = `
	id, title, description, category, tags, price,
	seller_id, seller_name, buyer_id, buyer_name, sold, sold_date, payment,
	views, likes_count, downloads, report_count, is_active,
	image_url, object_key, thumbnail_url, metadata,
	original_file_name, file_size, mime_type, featured,
	upload_date, updated_at
`

type PhotoRepository struct {
	pool PgxPool
}

func NewPhotoRepository(pool PgxPool) *PhotoRepository {
	return &PhotoRepository{pool: pool}
}

func (r *PhotoRepository) Create(ctx context.Context, photo models.Photo) error {
	const query = `
		INSERT INTO photos (
			id, title, description, category, tags, price,
			seller_id, seller_name, sold, payment,
			views, likes_count, downloads, report_count, is_active,
			image_url, object_key, thumbnail_url, metadata,
			original_file_name, file_size, mime_type, featured,
			upload_date, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, false, NULL,
			0, 0, 0, 0, true,
			$9, $10, $11, $12,
			$13, $14, $15, $16,
			NOW(), NOW()
		)
	`

	_, err := r.pool.Exec(ctx, query,
		photo.ID,
		photo.Title,
		photo.Description,
		photo.Category,
		photo.Tags,
		photo.Price,
		photo.SellerID,
		photo.SellerName,
		photo.ImageURL,
		photo.ObjectKey,
		photo.ThumbnailURL,
		photo.Metadata,
		photo.OriginalFileName,
		photo.FileSize,
		photo.MimeType,
		photo.Featured,
	)
	return err
}

// GetByID returns the photo with its like set and report log. List queries
// return photos without the backing collections; the stored counters are the
// read-side source of truth there.
func (r *PhotoRepository) GetByID(ctx context.Context, id string) (models.Photo, error) {
	const query = `
		SELECT ` + photoColumns + `,
			ARRAY(SELECT user_id FROM photo_likes l WHERE l.photo_id = photos.id ORDER BY l.created_at),
			COALESCE((
				SELECT jsonb_agg(jsonb_build_object('userId', pr.user_id, 'reason', pr.reason, 'date', pr.created_at) ORDER BY pr.created_at)
				FROM photo_reports pr WHERE pr.photo_id = photos.id
			), '[]'::jsonb)
		FROM photos WHERE id = $1
	`

	row := r.pool.QueryRow(ctx, query, id)
	var photo models.Photo
	if err := scanPhoto(row, &photo, &photo.Likes, &photo.Reports); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Photo{}, ErrPhotoNotFound
		}
		return models.Photo{}, err
	}
	return photo, nil
}

func (r *PhotoRepository) List(ctx context.Context, limit, offset int) ([]models.Photo, error) {
	query := `
		SELECT ` + photoColumns + `
		FROM photos
		WHERE is_active = true
		ORDER BY upload_date DESC
		LIMIT $1 OFFSET $2
	`
	return r.queryPhotos(ctx, query, limit, offset)
}

func (r *PhotoRepository) ListBySeller(ctx context.Context, sellerID string) ([]models.Photo, error) {
	query := `
		SELECT ` + photoColumns + `
		FROM photos
		WHERE seller_id = $1
		ORDER BY upload_date DESC
	`
	return r.queryPhotos(ctx, query, sellerID)
}

func (r *PhotoRepository) ListByBuyer(ctx context.Context, buyerID string) ([]models.Photo, error) {
	query := `
		SELECT ` + photoColumns + `
		FROM photos
		WHERE buyer_id = $1
		ORDER BY sold_date DESC
	`
	return r.queryPhotos(ctx, query, buyerID)
}

func (r *PhotoRepository) FindFeatured(ctx context.Context, limit int) ([]models.Photo, error) {
	query := `
		SELECT ` + photoColumns + `
		FROM photos
		WHERE featured = true AND is_active = true AND sold = false
		ORDER BY upload_date DESC
		LIMIT $1
	`
	return r.queryPhotos(ctx, query, limit)
}

func (r *PhotoRepository) FindByCategory(ctx context.Context, category models.Category, includeSold bool) ([]models.Photo, error) {
	query := `
		SELECT ` + photoColumns + `
		FROM photos
		WHERE category = $1 AND is_active = true AND ($2 OR sold = false)
		ORDER BY upload_date DESC
	`
	return r.queryPhotos(ctx, query, category, includeSold)
}

// Search ranks full-text matches over title, description and tags. Ties fall
// back to newest upload.
func (r *PhotoRepository) Search(ctx context.Context, term string, includeSold bool) ([]models.Photo, error) {
	query := `
		SELECT ` + photoColumns + `
		FROM photos
		WHERE search @@ plainto_tsquery('english', $1)
			AND is_active = true AND ($2 OR sold = false)
		ORDER BY ts_rank(search, plainto_tsquery('english', $1)) DESC, upload_date DESC
	`
	return r.queryPhotos(ctx, query, term, includeSold)
}

// MarkSold flips the listing to sold in a single conditional update; of two
// concurrent purchases at most one can match the sold = false predicate. The
// returned bool reports whether this call won the row.
func (r *PhotoRepository) MarkSold(ctx context.Context, id string, buyerID string, buyerName string, payment models.PaymentInfo) (bool, error) {
	const query = `
		UPDATE photos
		SET sold = true,
		    buyer_id = $2,
		    buyer_name = $3,
		    sold_date = NOW(),
		    payment = $4,
		    updated_at = NOW()
		WHERE id = $1 AND sold = false AND seller_id <> $2
	`
	cmd, err := r.pool.Exec(ctx, query, id, buyerID, buyerName, payment)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

// UpdatePrice changes the asking price while the listing is unsold and owned
// by sellerID. The returned bool reports whether a row matched.
func (r *PhotoRepository) UpdatePrice(ctx context.Context, id string, sellerID string, price float64) (bool, error) {
	const query = `
		UPDATE photos
		SET price = $3, updated_at = NOW()
		WHERE id = $1 AND seller_id = $2 AND sold = false
	`
	cmd, err := r.pool.Exec(ctx, query, id, sellerID, price)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *PhotoRepository) IncrementViews(ctx context.Context, id string) error {
	const query = `
		UPDATE photos SET views = views + 1, updated_at = NOW() WHERE id = $1
	`
	cmd, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrPhotoNotFound
	}
	return nil
}

func (r *PhotoRepository) IncrementDownloads(ctx context.Context, id string) error {
	const query = `
		UPDATE photos SET downloads = downloads + 1, updated_at = NOW() WHERE id = $1
	`
	cmd, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrPhotoNotFound
	}
	return nil
}

// ToggleLike adds userID to the like set if absent, removes it if present,
// and recomputes likes_count from the set inside the same transaction. The
// counter is never incremented independently of the backing table, so the two
// cannot drift.
func (r *PhotoRepository) ToggleLike(ctx context.Context, id string, userID string) (liked bool, count int, err error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := lockPhotoRow(ctx, tx, id); err != nil {
		return false, 0, err
	}

	cmd, err := tx.Exec(ctx, `DELETE FROM photo_likes WHERE photo_id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return false, 0, err
	}
	if cmd.RowsAffected() == 0 {
		if _, err := tx.Exec(ctx, `INSERT INTO photo_likes (photo_id, user_id, created_at) VALUES ($1, $2, NOW())`, id, userID); err != nil {
			return false, 0, err
		}
		liked = true
	}

	const recompute = `
		UPDATE photos
		SET likes_count = (SELECT COUNT(*) FROM photo_likes WHERE photo_id = $1),
		    updated_at = NOW()
		WHERE id = $1
		RETURNING likes_count
	`
	if err := tx.QueryRow(ctx, recompute, id).Scan(&count); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, 0, ErrPhotoNotFound
		}
		return false, 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return false, 0, err
	}
	return liked, count, nil
}

// AddReport appends a report and recomputes report_count from the report log.
// Deactivation at the threshold is one-way: a photo already taken down stays
// down even if reports are later pruned.
func (r *PhotoRepository) AddReport(ctx context.Context, id string, userID string, reason string, threshold int) (count int, active bool, err error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := lockPhotoRow(ctx, tx, id); err != nil {
		return 0, false, err
	}

	if _, err := tx.Exec(ctx, `INSERT INTO photo_reports (photo_id, user_id, reason, created_at) VALUES ($1, $2, $3, NOW())`, id, userID, reason); err != nil {
		return 0, false, err
	}

	const recompute = `
		UPDATE photos p
		SET report_count = c.n,
		    is_active = CASE WHEN c.n >= $2 THEN false ELSE p.is_active END,
		    updated_at = NOW()
		FROM (SELECT COUNT(*) AS n FROM photo_reports WHERE photo_id = $1) c
		WHERE p.id = $1
		RETURNING p.report_count, p.is_active
	`
	if err := tx.QueryRow(ctx, recompute, id, threshold).Scan(&count, &active); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, ErrPhotoNotFound
		}
		return 0, false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, false, err
	}
	return count, active, nil
}

// lockPhotoRow takes the photo's row lock so concurrent counter transactions
// serialize on the photo: the recompute subquery that follows then runs on a
// snapshot taken after every competing transaction committed.
func lockPhotoRow(ctx context.Context, tx pgx.Tx, id string) error {
	var one int
	if err := tx.QueryRow(ctx, `SELECT 1 FROM photos WHERE id = $1 FOR UPDATE`, id).Scan(&one); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrPhotoNotFound
		}
		return err
	}
	return nil
}

// DeleteUnsold removes the record only while the listing is unsold. The
// returned bool reports whether a row matched.
func (r *PhotoRepository) DeleteUnsold(ctx context.Context, id string) (bool, error) {
	const query = `DELETE FROM photos WHERE id = $1 AND sold = false`
	cmd, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

// DeleteByID removes the record unconditionally. Admin use only.
func (r *PhotoRepository) DeleteByID(ctx context.Context, id string) error {
	const query = `DELETE FROM photos WHERE id = $1`
	cmd, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrPhotoNotFound
	}
	return nil
}

type PhotoStats struct {
	TotalPhotos  int64
	SoldPhotos   int64
	TotalRevenue float64
}

func (r *PhotoRepository) Stats(ctx context.Context) (PhotoStats, error) {
	const query = `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE sold),
		       COALESCE(SUM(price) FILTER (WHERE sold), 0)
		FROM photos
	`
	var stats PhotoStats
	if err := r.pool.QueryRow(ctx, query).Scan(&stats.TotalPhotos, &stats.SoldPhotos, &stats.TotalRevenue); err != nil {
		return PhotoStats{}, err
	}
	return stats, nil
}

func (r *PhotoRepository) queryPhotos(ctx context.Context, query string, args ...any) ([]models.Photo, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var photos []models.Photo
	for rows.Next() {
		var photo models.Photo
		if err := scanPhoto(rows, &photo); err != nil {
			return nil, fmt.Errorf("scan photo: %w", err)
		}
		photos = append(photos, photo)
	}
	return photos, rows.Err()
}

func scanPhoto(row pgx.Row, photo *models.Photo, extra ...any) error {
	dest := []any{
		&photo.ID,
		&photo.Title,
		&photo.Description,
		&photo.Category,
		&photo.Tags,
		&photo.Price,
		&photo.SellerID,
		&photo.SellerName,
		&photo.BuyerID,
		&photo.BuyerName,
		&photo.Sold,
		&photo.SoldDate,
		&photo.Payment,
		&photo.Views,
		&photo.LikesCount,
		&photo.Downloads,
		&photo.ReportCount,
		&photo.IsActive,
		&photo.ImageURL,
		&photo.ObjectKey,
		&photo.ThumbnailURL,
		&photo.Metadata,
		&photo.OriginalFileName,
		&photo.FileSize,
		&photo.MimeType,
		&photo.Featured,
		&photo.UploadDate,
		&photo.UpdatedAt,
	}
	dest = append(dest, extra...)
	return row.Scan(dest...)
}
