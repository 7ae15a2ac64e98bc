// Package producer publishes audit events to a message broker for downstream shipping.
package producer

import (
	"context"

	auditdomain "ridehail-identity/internal/audit/domain"
)

// Producer publishes audit events. Callers use it best-effort: log and ignore errors.
type Producer interface {
	// Record publishes one event. It may block briefly; call it from the audit logger's goroutine.
	Record(ctx context.Context, e auditdomain.Event) error
	// Close releases resources. Safe to call if already closed.
	Close() error
}
