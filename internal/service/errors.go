package service

import "errors"

var (
	// ErrUserRequired is returned when an enrollment or membership write
	// carries no user reference.
	ErrUserRequired = errors.New("user is required")
	// ErrPastExpiration rejects a past expiration supplied without the
	// manual-edit flag for a user with no active membership.
	ErrPastExpiration = errors.New("cannot set expiration in the past without active membership")
	// ErrCouponNotFound is returned for unknown coupon codes.
	ErrCouponNotFound = errors.New("coupon not found")
	// ErrCouponExpired is returned when the coupon expiration has passed.
	ErrCouponExpired = errors.New("coupon expired")
	// ErrAlreadyFulfilled means completion side effects already ran for
	// the order.
	ErrAlreadyFulfilled = errors.New("order already fulfilled")
	// ErrInvalidInput wraps request validation failures detected by
	// services.
	ErrInvalidInput = errors.New("invalid input")
)
