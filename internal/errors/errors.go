package errors

import (
	"errors"
	"fmt"
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Classify tags cause with a sentinel kind under an operation prefix. The
// result matches both kind and cause with errors.Is and errors.As.
func Classify(op string, kind, cause error) error {
	if cause == nil {
		return fmt.Errorf("[%s] %w", op, kind)
	}
	return fmt.Errorf("[%s] %w: %w", op, kind, cause)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
