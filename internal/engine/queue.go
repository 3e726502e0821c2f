package engine

import (
	"log"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Update is one item handed to the presentation layer.
type Update struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Data      any            `json:"data"`
	Changes   map[string]any `json:"changes,omitempty"`
	Timestamp float64        `json:"timestamp"`
}

// Queue is the single hand-off point between the dispatcher goroutine, the
// timer goroutine and the one presentation-side consumer. Multi-producer,
// single-consumer. Push never blocks: when the consumer falls behind the
// oldest pending item is dropped and counted.
type Queue struct {
	ch      chan Update
	logger  *log.Logger
	dropped atomic.Uint64
}

func NewQueue(size int, logger *log.Logger) *Queue {
	if size <= 0 {
		size = 256
	}
	return &Queue{ch: make(chan Update, size), logger: logger}
}

func (q *Queue) Push(u Update) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.Timestamp == 0 {
		u.Timestamp = float64(time.Now().UnixMicro()) / 1e6
	}
	for {
		select {
		case q.ch <- u:
			return
		default:
		}
		select {
		case old := <-q.ch:
			n := q.dropped.Add(1)
			if q.logger != nil && n%100 == 1 {
				q.logger.Printf("queue: consumer behind, dropped %d updates (last type %s)", n, old.Type)
			}
		default:
		}
	}
}

// Updates is the consumer side. Exactly one goroutine should receive.
func (q *Queue) Updates() <-chan Update { return q.ch }

func (q *Queue) Dropped() uint64 { return q.dropped.Load() }
