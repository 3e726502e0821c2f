package engine

import (
	"time"

	"craftwatch/internal/protocol"
)

// TableProcessor owns derived state for one or more tables. The dispatcher
// goroutine is the sole caller of all four methods; implementations do not
// need internal locking for their caches.
//
// A processor must tolerate change-sets for tables it registered but does
// not index (no-op), and must never let one bad row abort a batch.
type TableProcessor interface {
	// Name identifies the processor in logs.
	Name() string

	// TableNames lists the tables this processor wants routed to it.
	TableNames() []string

	// ProcessTransaction consumes a committed live transaction's change-set
	// for one table.
	ProcessTransaction(change protocol.TableUpdate, reducerName string, at time.Time) error

	// ProcessSubscription consumes a batch (snapshot or incremental)
	// change-set for one table. initial is true only for the first load
	// after (re)subscribing, so processors can suppress lifecycle
	// notifications for pre-existing state.
	ProcessSubscription(change protocol.TableUpdate, initial bool) error

	// ClearCache drops all derived state. Called when the active claim
	// context changes.
	ClearCache()
}
