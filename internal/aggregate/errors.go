package aggregate

import (
	"errors"
	"fmt"

	"github.com/nexconsult/cnpj-analytics/internal/warehouse"
)

// ErrGatewayUnavailable is matched by every QueryError
var ErrGatewayUnavailable = warehouse.ErrUnavailable

// QueryError reports a query shape that could not be answered. The result
// returned alongside it is the shape's empty value and must not be shown as
// a real zero.
type QueryError struct {
	Shape string
	cause error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("%s: warehouse unavailable", e.Shape)
}

// Unwrap exposes the gateway error for errors.Is/As
func (e *QueryError) Unwrap() error { return e.cause }

// Is matches ErrGatewayUnavailable
func (e *QueryError) Is(target error) bool { return target == ErrGatewayUnavailable }

// IsUnavailable reports whether err is a gateway failure
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrGatewayUnavailable)
}
