// closer.go defines the Closer interface.

package types

import (
	"context"
)

// Closer releases native resources; implementations must be idempotent.
type Closer interface {
	Close(context.Context) error
}
