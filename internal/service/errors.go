package service

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

var (
	ErrValidation   = errors.New("validation")   // 400
	ErrUnauthorized = errors.New("unauthorized") // 401
	ErrForbidden    = errors.New("forbidden")    // 403, or 404 when ownership is hidden
	ErrNotFound     = errors.New("not found")    // 404
	ErrConflict     = errors.New("conflict")     // 409
	ErrUpstream     = errors.New("bad gateway")  // 502
	ErrUnavailable  = errors.New("unavailable")  // 503
)

// notFound maps gorm's missing-row error onto ErrNotFound and leaves the rest.
func notFound(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s not found", ErrNotFound, what)
	}
	return err
}
