// Package services holds the storefront business rules. Every operation
// takes the caller as an explicit models.Principal and runs its writes
// inside one store transaction.
package services

import (
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/omegashop/storefront/internal/models"
)

// Clock returns the current time. Tests replace it to pin report windows.
type Clock func() time.Time

func requireRole(p models.Principal, roles ...models.Role) error {
	if !p.Is(roles...) {
		return errors.Wrapf(models.ErrForbidden, "role %s is not allowed", p.Role)
	}
	return nil
}

// optional returns nil for blank text so that empty comments leave the
// stored value untouched.
func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func invalid(format string, args ...interface{}) error {
	return errors.Wrapf(models.ErrInvalidInput, format, args...)
}
