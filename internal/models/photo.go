package models

import (
	"strings"
	"time"
)

type Category string

const (
	CategoryNature       Category = "nature"
	CategoryPortrait     Category = "portrait"
	CategoryLandscape    Category = "landscape"
	CategoryAbstract     Category = "abstract"
	CategoryStreet       Category = "street"
	CategoryWildlife     Category = "wildlife"
	CategoryArchitecture Category = "architecture"
	CategoryOther        Category = "other"
)

var categories = map[Category]struct{}{
	CategoryNature:       {},
	CategoryPortrait:     {},
	CategoryLandscape:    {},
	CategoryAbstract:     {},
	CategoryStreet:       {},
	CategoryWildlife:     {},
	CategoryArchitecture: {},
	CategoryOther:        {},
}

func ValidCategory(c Category) bool {
	_, ok := categories[c]
	return ok
}

const (
	TitleMinLen    = 2
	TitleMaxLen    = 100
	DescriptionMax = 500

	PriceMin = 0.0
	PriceMax = 10000.0

	// ReportDeactivateThreshold is the report count at which a listing is
	// taken off the marketplace. Not configurable today; candidate for a
	// config knob if moderation policy ever varies per deployment.
	ReportDeactivateThreshold = 5
)

// PaymentInfo, Report and PhotoMetadata are persisted as JSON documents;
// the tags fix the stored key names.

type PaymentInfo struct {
	PaymentID       string    `json:"paymentId"`
	Method          string    `json:"method"`
	Amount          float64   `json:"amount"`
	Currency        string    `json:"currency"`
	TransactionDate time.Time `json:"transactionDate"`
}

type Report struct {
	UserID string    `json:"userId"`
	Reason string    `json:"reason"`
	Date   time.Time `json:"date"`
}

type PhotoMetadata struct {
	Width        int        `json:"width,omitempty"`
	Height       int        `json:"height,omitempty"`
	Format       string     `json:"format,omitempty"`
	Camera       string     `json:"camera,omitempty"`
	Lens         string     `json:"lens,omitempty"`
	ISO          int        `json:"iso,omitempty"`
	Aperture     string     `json:"aperture,omitempty"`
	ShutterSpeed string     `json:"shutterSpeed,omitempty"`
	FocalLength  string     `json:"focalLength,omitempty"`
	DateTaken    *time.Time `json:"dateTaken,omitempty"`
}

type Photo struct {
	ID          string
	Title       string
	Description string
	Category    Category
	Tags        []string

	Price      float64
	SellerID   string
	SellerName string
	BuyerID    *string
	BuyerName  *string
	Sold       bool
	SoldDate   *time.Time
	Payment    *PaymentInfo

	Views      int64
	Likes      []string
	LikesCount int
	Downloads  int64

	Reports     []Report
	ReportCount int
	IsActive    bool

	ImageURL string
	// ObjectKey locates the blob in object storage. Never serialized.
	ObjectKey        string
	ThumbnailURL     *string
	Metadata         PhotoMetadata
	OriginalFileName string
	FileSize         int64
	MimeType         string

	Featured bool

	UploadDate time.Time
	UpdatedAt  time.Time
}

// CanEdit reports whether listing fields may still change.
func (p Photo) CanEdit() bool {
	return !p.Sold && p.IsActive
}

// CanDelete reports whether the listing may be removed by its seller.
func (p Photo) CanDelete() bool {
	return !p.Sold
}

// LikedBy reports whether userID is in the photo's like set.
func (p Photo) LikedBy(userID string) bool {
	for _, id := range p.Likes {
		if id == userID {
			return true
		}
	}
	return false
}

// NormalizeTags lowercases, trims and dedupes tags, dropping empties.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}
