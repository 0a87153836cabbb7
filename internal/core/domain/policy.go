package domain

import (
	"fmt"
	"strings"
)

// PermissionDeniedError reports a role outside a route's allow-list.
// It matches ErrForbidden under errors.Is.
type PermissionDeniedError struct {
	Required []string
	Actual   string
}

func (e *PermissionDeniedError) Error() string {
	return fmt.Sprintf("access forbidden: requires one of [%s], have %q", strings.Join(e.Required, ", "), e.Actual)
}

func (e *PermissionDeniedError) Is(target error) bool {
	return target == ErrForbidden
}

// CheckRole allows actual only when it is listed in allowed. Roles carry no
// hierarchy: admin passes a project_manager route only if admin is listed.
func CheckRole(actual string, allowed ...string) error {
	for _, r := range allowed {
		if r == actual {
			return nil
		}
	}
	required := make([]string, len(allowed))
	copy(required, allowed)
	return &PermissionDeniedError{Required: required, Actual: actual}
}
