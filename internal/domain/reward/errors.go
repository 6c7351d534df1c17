package reward

import "errors"

var (
	// ErrRewardNotFound is returned when the reward is absent or inactive
	ErrRewardNotFound = errors.New("reward not found")

	// ErrRedemptionNotFound is returned when the redemption doesn't exist
	ErrRedemptionNotFound = errors.New("redemption not found")

	// ErrInsufficientStock is returned when the reward's stock is exhausted
	ErrInsufficientStock = errors.New("reward out of stock")

	// ErrInvalidStateTransition is returned for transitions out of a
	// terminal status (e.g. cancelling a used redemption)
	ErrInvalidStateTransition = errors.New("invalid redemption state transition")

	// ErrCodeCollision is returned when code generation keeps colliding;
	// practically unreachable with a 10-char alphabet
	ErrCodeCollision = errors.New("could not generate unique redemption code")
)
