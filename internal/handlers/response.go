package handlers

import (
	"time"

	"photomarket/api/internal/models"
)

// photoResponse is the wire shape of a listing. The storage object key is
// deliberately absent: it never leaves the service, for any role.
type photoResponse struct {
	ID               string                `json:"id"`
	Title            string                `json:"title"`
	Description      string                `json:"description"`
	Category         string                `json:"category"`
	Tags             []string              `json:"tags"`
	Price            float64               `json:"price"`
	SellerID         string                `json:"sellerId"`
	SellerName       string                `json:"sellerName"`
	BuyerID          *string               `json:"buyerId,omitempty"`
	BuyerName        *string               `json:"buyerName,omitempty"`
	Sold             bool                  `json:"sold"`
	SoldDate         *time.Time            `json:"soldDate,omitempty"`
	Payment          *models.PaymentInfo   `json:"paymentInfo,omitempty"`
	Views            int64                 `json:"views"`
	Likes            []string              `json:"likes,omitempty"`
	LikesCount       int                   `json:"likesCount"`
	Downloads        int64                 `json:"downloads"`
	ReportCount      int                   `json:"reportCount"`
	IsActive         bool                  `json:"isActive"`
	ImageURL         string                `json:"imageUrl"`
	ThumbnailURL     *string               `json:"thumbnailUrl,omitempty"`
	Metadata         models.PhotoMetadata  `json:"metadata"`
	OriginalFileName string                `json:"originalFileName,omitempty"`
	FileSize         int64                 `json:"fileSize"`
	MimeType         string                `json:"mimeType"`
	Featured         bool                  `json:"featured"`
	UploadDate       time.Time             `json:"uploadDate"`
	UpdatedAt        time.Time             `json:"updatedAt"`
}

func toPhotoResponse(photo models.Photo) photoResponse {
	return photoResponse{
		ID:               photo.ID,
		Title:            photo.Title,
		Description:      photo.Description,
		Category:         string(photo.Category),
		Tags:             photo.Tags,
		Price:            photo.Price,
		SellerID:         photo.SellerID,
		SellerName:       photo.SellerName,
		BuyerID:          photo.BuyerID,
		BuyerName:        photo.BuyerName,
		Sold:             photo.Sold,
		SoldDate:         photo.SoldDate,
		Payment:          photo.Payment,
		Views:            photo.Views,
		Likes:            photo.Likes,
		LikesCount:       photo.LikesCount,
		Downloads:        photo.Downloads,
		ReportCount:      photo.ReportCount,
		IsActive:         photo.IsActive,
		ImageURL:         photo.ImageURL,
		ThumbnailURL:     photo.ThumbnailURL,
		Metadata:         photo.Metadata,
		OriginalFileName: photo.OriginalFileName,
		FileSize:         photo.FileSize,
		MimeType:         photo.MimeType,
		Featured:         photo.Featured,
		UploadDate:       photo.UploadDate,
		UpdatedAt:        photo.UpdatedAt,
	}
}

func toPhotoResponses(photos []models.Photo) []photoResponse {
	items := make([]photoResponse, 0, len(photos))
	for _, photo := range photos {
		items = append(items, toPhotoResponse(photo))
	}
	return items
}
