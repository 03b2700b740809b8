// Package ledger is the idempotency line of defense: each provider event ID is
// admitted exactly once within the retention window.
package ledger

import "context"

type Ledger interface {
	// FirstSeen reports whether the provider's eventID has not been admitted
	// before, and admits it. Event IDs are only unique per provider, so the
	// admission is scoped by provider. Subsequent calls with the same pair
	// return false until the retention window lapses.
	FirstSeen(ctx context.Context, provider, eventID string) (bool, error)

	// Forget releases an admitted ID so the provider's retry is processed
	// again. Used when handling failed after admission.
	Forget(ctx context.Context, provider, eventID string) error

	// Purge drops all admitted IDs.
	Purge(ctx context.Context) error
}
