package services

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
)

// ErrInvalidCredentials is returned by Login for an unknown user or a wrong
// password. The two cases are indistinguishable to the caller.
var ErrInvalidCredentials = errors.New("incorrect username or password")

// ValidationError reports a request that was rejected before reaching
// storage. Its message is safe to show to the client.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a ValidationError and returns it.
func IsValidation(err error) (*ValidationError, bool) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr, true
	}
	return nil, false
}

// fromValidation flattens ozzo-validation output into a ValidationError with
// a stable, sorted message.
func fromValidation(err error) error {
	if err == nil {
		return nil
	}
	var fields validation.Errors
	if !errors.As(err, &fields) {
		return &ValidationError{Message: err.Error()}
	}
	parts := make([]string, 0, len(fields))
	for name, ferr := range fields {
		if ferr == nil {
			continue
		}
		parts = append(parts, name+": "+ferr.Error())
	}
	sort.Strings(parts)
	return &ValidationError{Message: strings.Join(parts, "; ")}
}
