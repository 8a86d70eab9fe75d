package domain

import "errors"

// Expected booking outcomes. Callers branch on these with errors.Is; anything
// else coming out of the booking service is an infrastructure failure.
var (
	ErrPastDate           = errors.New("scheduled time is in the past")
	ErrServiceUnavailable = errors.New("service is unavailable for booking")
	ErrInvalidPricing     = errors.New("service price is invalid for online payment")
	ErrSlotTaken          = errors.New("slot is already booked")
	ErrPaymentSetupFailed = errors.New("payment session could not be created")
)
