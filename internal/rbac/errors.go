package rbac

import (
	"fmt"

	"github.com/odyssey-erp/gatekeeper/internal/shared"
)

// Errors returned by the store and service. Each wraps a shared kind so the
// HTTP layer can map it without knowing this package.
var (
	ErrNotFound       = fmt.Errorf("rbac: %w", shared.ErrNotFound)
	ErrDuplicateName  = fmt.Errorf("rbac: role name %w", shared.ErrConflict)
	ErrDuplicateRoute = fmt.Errorf("rbac: permission route %w", shared.ErrConflict)
)

func roleNotFound(id int64) error {
	return fmt.Errorf("%w: role %d", ErrNotFound, id)
}

func permissionNotFound(id int64) error {
	return fmt.Errorf("%w: permission %d", ErrNotFound, id)
}
