package service

import "errors"

// Lifecycle failures surfaced to callers. Handlers map these to HTTP
// statuses; nothing here is retried internally.
var (
	ErrAlreadySold     = errors.New("photo already sold")
	ErrSelfPurchase    = errors.New("cannot purchase your own photo")
	ErrNotOwner        = errors.New("not the owner of this photo")
	ErrInvalidPrice    = errors.New("price must be between 0 and 10000")
	ErrInvalidListing  = errors.New("invalid listing fields")
	ErrInvalidUpload   = errors.New("invalid upload")
	ErrNotPurchased    = errors.New("photo not purchased by this user")
	ErrPaymentRejected = errors.New("payment rejected")

	// ErrStorageRelease means the blob could not be released during delete.
	// The record is kept and the delete may be retried.
	ErrStorageRelease = errors.New("storage release failed")
)
