package engine

import (
	"fmt"
	"log"
	"time"

	"craftwatch/internal/protocol"
)

// Dispatcher routes decoded envelopes to the processors registered for each
// table. The registry is resolved once at construction; dispatching itself
// is a map lookup.
type Dispatcher struct {
	logger     *log.Logger
	validator  *protocol.Validator
	processors []TableProcessor
	byTable    map[string][]TableProcessor
}

func NewDispatcher(logger *log.Logger, validator *protocol.Validator, processors ...TableProcessor) *Dispatcher {
	d := &Dispatcher{
		logger:     logger,
		validator:  validator,
		processors: processors,
		byTable:    make(map[string][]TableProcessor),
	}
	for _, p := range processors {
		for _, table := range p.TableNames() {
			d.byTable[table] = append(d.byTable[table], p)
		}
	}
	return d
}

// Dispatch routes one envelope. It never returns an error: every failure
// mode degrades to a log entry so the stream keeps flowing.
func (d *Dispatcher) Dispatch(env *protocol.Envelope) {
	switch {
	case env.TransactionUpdate != nil:
		d.dispatchTransaction(env.TransactionUpdate)
	case env.InitialSubscription != nil:
		d.dispatchSubscription(env.InitialSubscription.DatabaseUpdate, true)
	case env.SubscriptionUpdate != nil:
		d.dispatchSubscription(env.SubscriptionUpdate.DatabaseUpdate, false)
	default:
		d.logger.Printf("dispatch: envelope with no recognized message type")
	}
}

func (d *Dispatcher) dispatchTransaction(tx *protocol.TransactionData) {
	if !tx.Status.IsCommitted() {
		return
	}
	reducer := tx.ReducerCall.ReducerName
	at := tx.Timestamp.Time()
	for _, change := range tx.Status.Committed.Tables {
		d.validate(change)
		procs := d.byTable[change.TableName]
		if len(procs) == 0 {
			d.logger.Printf("dispatch: no processor registered for table %q (reducer %s), dropping", change.TableName, reducer)
			continue
		}
		for _, p := range procs {
			if err := d.safeTransaction(p, change, reducer, at); err != nil {
				d.logger.Printf("dispatch: %s failed on transaction for %s (reducer %s): %v", p.Name(), change.TableName, reducer, err)
			}
		}
	}
}

func (d *Dispatcher) dispatchSubscription(db protocol.DatabaseUpdate, initial bool) {
	kind := "subscription"
	if initial {
		kind = "initial subscription"
	}
	d.logger.Printf("dispatch: %s with %d table updates", kind, len(db.Tables))
	for _, change := range db.Tables {
		d.validate(change)
		procs := d.byTable[change.TableName]
		if len(procs) == 0 {
			d.logger.Printf("dispatch: no processor registered for table %q, dropping", change.TableName)
			continue
		}
		for _, p := range procs {
			if err := d.safeSubscription(p, change, initial); err != nil {
				d.logger.Printf("dispatch: %s failed on %s for %s: %v", p.Name(), kind, change.TableName, err)
			}
		}
	}
}

// safeTransaction shields the dispatch loop from a panicking processor.
func (d *Dispatcher) safeTransaction(p TableProcessor, change protocol.TableUpdate, reducer string, at time.Time) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return p.ProcessTransaction(change, reducer, at)
}

func (d *Dispatcher) safeSubscription(p TableProcessor, change protocol.TableUpdate, initial bool) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return p.ProcessSubscription(change, initial)
}

func (d *Dispatcher) validate(change protocol.TableUpdate) {
	if d.validator == nil {
		return
	}
	for _, set := range change.Updates {
		for _, row := range set.Inserts {
			d.validator.Check(change.TableName, row)
		}
		for _, row := range set.Deletes {
			d.validator.Check(change.TableName, row)
		}
	}
}

// ClearCaches clears every registered processor. Used on claim switches,
// before new subscription queries are issued.
func (d *Dispatcher) ClearCaches() {
	for _, p := range d.processors {
		p.ClearCache()
	}
	d.logger.Printf("dispatch: cleared caches for %d processors", len(d.processors))
}
