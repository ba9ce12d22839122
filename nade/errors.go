package nade

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/csgonades/nade-api/store"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation failed")
	ErrConflict   = errors.New("conflict")
	ErrForbidden  = errors.New("forbidden")
	ErrInternal   = errors.New("internal error")
)

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// storageErr converts a storage failure into the package's error taxonomy.
// Missing documents become ErrNotFound; everything else is logged and
// reported as ErrInternal without the storage details.
func storageErr(op string, err error) error {
	if errors.Is(err, store.ErrNoDocument) {
		return ErrNotFound
	}
	slog.Error("nade storage failure", "op", op, "error", err)
	return fmt.Errorf("%w: %s", ErrInternal, op)
}
