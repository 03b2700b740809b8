package domain

import "errors"

var (
	ErrPaymentNotFound   = errors.New("payment not found")
	ErrStaleEvent        = errors.New("stale event")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrQueueFull         = errors.New("dispatch queue full")
)
