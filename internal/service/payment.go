package service

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"photomarket/api/internal/config"
	"photomarket/api/internal/models"
)

// PaymentRequest is what the client reports back after the hosted payment
// page redirects to it.
type PaymentRequest struct {
	PaymentID string
	Method    string
	Amount    float64
}

// PaymentVerifier decides whether a client-reported payment is acceptable
// for a listing. Gateway-backed implementations can confirm the payment id
// server-side; the default implementation cannot.
type PaymentVerifier interface {
	Verify(ctx context.Context, photo models.Photo, req PaymentRequest) (models.PaymentInfo, error)
}

// ClientReportedVerifier accepts whatever payment id the client reports, the
// same trust model as the hosted-page redirect flow it fronts. Every accepted
// payment is logged so the gap is at least visible in production.
type ClientReportedVerifier struct {
	currency string
	log      zerolog.Logger
}

func NewClientReportedVerifier(cfg config.PaymentConfig, log zerolog.Logger) *ClientReportedVerifier {
	return &ClientReportedVerifier{currency: cfg.Currency, log: log}
}

func (v *ClientReportedVerifier) Verify(ctx context.Context, photo models.Photo, req PaymentRequest) (models.PaymentInfo, error) {
	if req.PaymentID == "" {
		return models.PaymentInfo{}, fmt.Errorf("%w: missing payment id", ErrPaymentRejected)
	}

	amount := req.Amount
	if amount == 0 {
		amount = photo.Price
	}

	v.log.Warn().
		Str("photo_id", photo.ID).
		Str("payment_id", req.PaymentID).
		Float64("amount", amount).
		Msg("accepting client-reported payment without gateway confirmation")

	return models.PaymentInfo{
		PaymentID:       req.PaymentID,
		Method:          req.Method,
		Amount:          amount,
		Currency:        v.currency,
		TransactionDate: time.Now().UTC(),
	}, nil
}

// CheckoutURL builds the hosted payment page redirect for a listing.
func CheckoutURL(cfg config.PaymentConfig, photo models.Photo) string {
	q := url.Values{}
	q.Set("photoId", photo.ID)
	q.Set("amount", fmt.Sprintf("%.2f", photo.Price))
	q.Set("currency", cfg.Currency)
	return cfg.CheckoutURL + "?" + q.Encode()
}
