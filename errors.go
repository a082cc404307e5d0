package main

import "errors"

// The verification protocol reports outcomes as error kinds. Callers
// distinguish them with errors.Is; anything not listed here is an
// internal failure wrapped around ErrStoreUnavailable.
var (
	ErrUserNotFound    = errors.New("user_not_found")
	ErrCodeInvalid     = errors.New("code_invalid")
	ErrCodeExpired     = errors.New("code_expired")
	ErrTooManyAttempts = errors.New("too_many_attempts")
	ErrRateLimited     = errors.New("rate_limited")

	// ErrAlreadyVerified is benign: the account needs no code, the caller
	// should just move on.
	ErrAlreadyVerified = errors.New("already_verified")

	// ErrEmailDelivery is returned together with a freshly issued code when
	// the mail transport fails. The code stays valid and can be resent.
	ErrEmailDelivery = errors.New("email_delivery_failed")

	ErrStoreUnavailable = errors.New("store_unavailable")
)
