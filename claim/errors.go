package claim

import "errors"

// The engine's error taxonomy. Every failure surfaced to callers wraps
// exactly one of these; anything else is an internal error.
var (
	ErrValidation       = errors.New("claim: validation")
	ErrNotFound         = errors.New("claim: not found")
	ErrAlreadyClaimed   = errors.New("claim: already claimed")
	ErrSlotNotClaimed   = errors.New("claim: slot not claimed")
	ErrAlreadyCancelled = errors.New("claim: already cancelled")
	ErrAlreadyCompleted = errors.New("claim: already completed")
	ErrCancelFailed     = errors.New("claim: cancel conflict")
)

// Taxonomy codes as they appear in error response bodies.
const (
	CodeValidation       = "VALIDATION"
	CodeNotFound         = "NOT_FOUND"
	CodeAlreadyClaimed   = "ALREADY_CLAIMED"
	CodeSlotNotClaimed   = "SLOT_NOT_CLAIMED"
	CodeAlreadyCancelled = "ALREADY_CANCELLED"
	CodeAlreadyCompleted = "ALREADY_COMPLETED"
	CodeCancelFailed     = "CANCEL_FAILED"
	CodeInternal         = "INTERNAL"
)

// CodeOf maps an engine error to its taxonomy code.
func CodeOf(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return CodeValidation
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrAlreadyClaimed):
		return CodeAlreadyClaimed
	case errors.Is(err, ErrSlotNotClaimed):
		return CodeSlotNotClaimed
	case errors.Is(err, ErrAlreadyCancelled):
		return CodeAlreadyCancelled
	case errors.Is(err, ErrAlreadyCompleted):
		return CodeAlreadyCompleted
	case errors.Is(err, ErrCancelFailed):
		return CodeCancelFailed
	default:
		return CodeInternal
	}
}
