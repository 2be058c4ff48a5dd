package core

import (
	"errors"
)

var (
	ErrPaymentFailed    = errors.New("payment failed")
	ErrPollClosed       = errors.New("poll is over")
	ErrPollActive       = errors.New("poll is active")
	ErrPollNotFound     = errors.New("poll not found")
	ErrCreatorNotFound  = errors.New("poll creator not found")
	ErrTokenMismatch    = errors.New("poll creator is bound to another token")
	ErrInvalidDirection = errors.New("invalid vote direction")
	ErrInvalidCost      = errors.New("poll creation cost must be a non-negative uint256")
)

// PaymentError is returned by CreatePoll when the token collaborator refused
// to move the creation cost. Its message is the revert reason shown to callers.
type PaymentError struct {
	Token string
	Err   error
}

func (e *PaymentError) Error() string {
	return e.Token + " transferFrom failed"
}

func (e *PaymentError) Unwrap() error {
	return e.Err
}

func (e *PaymentError) Is(target error) bool {
	return target == ErrPaymentFailed
}
