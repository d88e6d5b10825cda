package cli

import (
	"errors"

	"taskplan/internal/domain"
)

// Exit codes by error class.
const (
	ExitOK           = 0
	ExitFailure      = 1
	ExitValidation   = 2
	ExitNotFound     = 3
	ExitCapacity     = 4
	ExitPrecondition = 5
)

func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, domain.ErrValidation):
		return ExitValidation
	case errors.Is(err, domain.ErrNotFound):
		return ExitNotFound
	case errors.Is(err, domain.ErrCapacityExhausted):
		return ExitCapacity
	case errors.Is(err, domain.ErrPrecondition):
		return ExitPrecondition
	default:
		return ExitFailure
	}
}
