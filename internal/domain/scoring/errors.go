package scoring

import "errors"

// Sentinel kinds for scoring errors.
var (
	ErrInvalidPolicy = errors.New("invalid scoring policy")
)
