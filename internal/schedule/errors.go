package schedule

import (
	"github.com/cockroachdb/errors"
)

// Error kinds surfaced by the scheduler. Stale writes, provisioning races and
// empty catalogs are not errors.
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
)

func notFound(cause error, hint string) error {
	return errors.WithHint(errors.Mark(cause, ErrNotFound), hint)
}

func invalidInput(hint string, format string, args ...interface{}) error {
	return errors.WithHint(errors.Mark(errors.Newf(format, args...), ErrInvalidInput), hint)
}

// IsNotFound reports whether err is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsInvalidInput reports whether err is an invalid input error
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// Hint returns the user-facing hints attached to err.
func Hint(err error) string {
	return errors.FlattenHints(err)
}
