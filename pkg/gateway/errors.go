package gateway

import (
	"errors"
	"fmt"
)

// AuthError rejects a handshake. It is fatal to the connection being
// established; the transport must be closed, not left half-open.
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("gateway: authentication failed: %s", e.Reason)
}

// IsAuthError reports whether err is a handshake rejection.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}
