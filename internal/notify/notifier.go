// README: Fire-and-forget notification boundary.
package notify

import (
	"context"

	"spoke/internal/types"
)

// Notifier delivers best-effort notifications. Implementations must never
// block the caller on delivery failure; errors are swallowed and logged.
type Notifier interface {
	Notify(ctx context.Context, recipient types.ID, event string, payload map[string]any)
}

// Nop discards every notification. Used in tests and local runs without a
// broker.
type Nop struct{}

func (Nop) Notify(context.Context, types.ID, string, map[string]any) {}
