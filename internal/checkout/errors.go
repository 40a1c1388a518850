package checkout

import "errors"

var (
	ErrMissingOrderID    = errors.New("orderId is required")
	ErrOrderNotPending   = errors.New("order not found or already processed")
	ErrItemsFetch        = errors.New("error fetching order items")
	ErrPreferenceCreate  = errors.New("error creating payment preference")
	ErrPreferencePersist = errors.New("error saving payment preference")
	ErrSessionExpired    = errors.New("session expired, please sign in again")
	ErrInvalidOrder      = errors.New("invalid order")
)
