package crafting

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"
)

// TimerOp is the timer thread's read-only view of one operation. The
// processor hands the scheduler a fresh snapshot after every
// reconciliation; the timer never touches the live caches, so every field
// needed to rebuild the display hierarchy is resolved at snapshot time.
type TimerOp struct {
	EntityID        uint64
	OwnerID         uint64
	RecipeID        int64
	StartMicros     int64
	Status          Status
	DurationSeconds float64
	Remaining       string

	ItemName     string
	Tier         int
	Quantity     float64
	Tag          string
	Crafter      string
	BuildingName string
}

// Row converts the snapshot entry to a hierarchy input row.
func (op TimerOp) Row() Row {
	seconds, _ := ParseRemaining(op.Remaining)
	return Row{
		ItemName:         op.ItemName,
		Tier:             op.Tier,
		Quantity:         op.Quantity,
		Tag:              op.Tag,
		Crafter:          op.Crafter,
		BuildingName:     op.BuildingName,
		RemainingTime:    op.Remaining,
		RemainingSeconds: float64(seconds),
		EntityID:         op.EntityID,
	}
}

const (
	tickSlice    = 100 * time.Millisecond
	tickInterval = time.Second
	errorBackoff = 2 * time.Second
	stopTimeout  = 2 * time.Second

	// readyGraceSeconds flips an operation to READY slightly early so the
	// display does not flicker between "1s" and READY right at completion.
	readyGraceSeconds = 1.0
)

// Scheduler recomputes remaining-time strings once per second,
// independently of inbound messages. When any displayed value changes it
// asks for a full hierarchy rebuild; partial patches would leave the
// presentation layer with stale entity-to-row mappings.
type Scheduler struct {
	logger *log.Logger
	now    func() time.Time

	// onRefresh rebuilds and pushes the full consolidated view.
	onRefresh func(source string)
	// onReady receives operations that crossed into READY this tick.
	onReady func([]TimerOp)

	mu      sync.Mutex
	ops     []TimerOp
	latched map[uint64]int64 // entity id -> start micros it latched READY at

	cancel context.CancelFunc
	done   chan struct{}
}

func NewScheduler(logger *log.Logger, onRefresh func(source string), onReady func([]TimerOp)) *Scheduler {
	return &Scheduler{
		logger:    logger,
		now:       time.Now,
		onRefresh: onRefresh,
		onReady:   onReady,
		latched:   make(map[uint64]int64),
	}
}

// SetOperations replaces the snapshot. The caller passes ownership of ops;
// it must not retain the slice. READY latches survive only for ids whose
// start timestamp is unchanged, so a delete+insert update starts a fresh
// countdown.
func (s *Scheduler) SetOperations(ops []TimerOp) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := make(map[uint64]int64, len(ops))
	for _, op := range ops {
		if start, ok := s.latched[op.EntityID]; ok && start == op.StartMicros {
			next[op.EntityID] = start
		}
	}
	s.latched = next
	s.ops = ops
}

// Reset drops the snapshot and all latches. Used on claim switches.
func (s *Scheduler) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ops = nil
	s.latched = make(map[uint64]int64)
}

func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.logger.Printf("timer: already running")
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.loop(ctx, s.done)
	s.logger.Printf("timer: started")
}

// Stop signals cancellation and waits for the loop with a bounded timeout.
// A loop that fails to exit in time is logged, never blocked on.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	select {
	case <-done:
		s.logger.Printf("timer: stopped")
	case <-time.After(stopTimeout):
		s.logger.Printf("timer: loop did not exit within %s", stopTimeout)
	}
}

// loop sleeps in short slices so Stop wakes it within one slice, not one
// full second.
func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	last := time.Time{}
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(tickSlice):
		}
		if s.now().Sub(last) < tickInterval {
			continue
		}
		last = s.now()
		if err := s.safeTick(); err != nil {
			s.logger.Printf("timer: tick failed: %v", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(errorBackoff):
			}
		}
	}
}

func (s *Scheduler) safeTick() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicError{r}
		}
	}()
	s.tick()
	return nil
}

type panicError struct{ v any }

func (e panicError) Error() string { return fmt.Sprintf("panic: %v", e.v) }

func (s *Scheduler) tick() {
	now := s.now()

	s.mu.Lock()
	changed := false
	var ready []TimerOp
	for i := range s.ops {
		op := &s.ops[i]
		next := s.remainingLocked(op, now)
		if next == op.Remaining {
			continue
		}
		if op.Remaining != Ready && next == Ready {
			ready = append(ready, *op)
		}
		op.Remaining = next
		changed = true
	}
	s.mu.Unlock()

	if len(ready) > 0 && s.onReady != nil {
		s.onReady(ready)
	}
	if changed && s.onRefresh != nil {
		s.onRefresh("timer_update")
	}
}

func (s *Scheduler) remainingLocked(op *TimerOp, now time.Time) string {
	if start, ok := s.latched[op.EntityID]; ok && start == op.StartMicros {
		return Ready
	}
	value, final := computeRemaining(op, now)
	if final {
		s.latched[op.EntityID] = op.StartMicros
	}
	return value
}

// computeRemaining derives the display value for one operation. final
// reports that the value is READY and must never be recomputed away from
// READY for this operation instance.
func computeRemaining(op *TimerOp, now time.Time) (value string, final bool) {
	switch op.Status {
	case StatusReady:
		return Ready, true
	case StatusInProgress:
	default:
		return "Unknown", false
	}
	if op.DurationSeconds <= 0 || op.StartMicros == 0 {
		return "In Progress", false
	}
	elapsed := float64(now.UnixMicro()-op.StartMicros) / 1e6
	remaining := op.DurationSeconds - elapsed
	if remaining <= readyGraceSeconds {
		return Ready, true
	}
	return FormatRemaining(remaining), false
}

// Snapshot returns a copy of the current timer view, for tests and
// diagnostics.
func (s *Scheduler) Snapshot() []TimerOp {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]TimerOp(nil), s.ops...)
}
