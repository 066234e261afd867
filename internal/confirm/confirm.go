// Package confirm implements the Confirmation Broker: a FIFO queue of
// tickets that HTTP handlers enqueue and the local shell loop resolves,
// gating remote command execution behind a human decision.
package confirm

import (
	"context"

	"github.com/google/uuid"
)

// Decision is the outcome a ticket is eventually resolved with.
type Decision bool

const (
	Declined Decision = false
	Approved Decision = true
)

// Ticket represents one pending confirmation request.
type Ticket struct {
	ID     string
	Cmd    string
	Origin string // "run" or "start"

	done chan Decision
}

// Resolve records the human's decision. It must be called exactly once per
// ticket; later calls are no-ops since the channel has capacity 1 and is
// only ever read once.
func (t *Ticket) Resolve(d Decision) {
	select {
	case t.done <- d:
	default:
	}
}

// Broker serializes confirmation requests from any number of HTTP handler
// goroutines into a single stream the local shell loop drains in order.
type Broker struct {
	intake chan *Ticket
	outbox chan *Ticket
}

// NewBroker starts the broker's forwarding goroutine and returns it ready
// to use.
func NewBroker() *Broker {
	b := &Broker{
		intake: make(chan *Ticket),
		outbox: make(chan *Ticket),
	}
	go b.run()
	return b
}

// run relays tickets from intake to outbox one at a time, which is what
// gives Tickets() a worker to interrupt: the shell's select loop only ever
// sees one ticket "in flight" at once, so the presence of anything on
// outbox is itself the interrupt signal.
func (b *Broker) run() {
	for t := range b.intake {
		b.outbox <- t
	}
}

// Tickets returns the channel the local shell loop should select on to
// learn about pending confirmations.
func (b *Broker) Tickets() <-chan *Ticket {
	return b.outbox
}

// Enqueue submits cmd for confirmation and blocks until it is resolved,
// the context is cancelled (treated as a decline), or the process is
// shutting down.
func (b *Broker) Enqueue(ctx context.Context, cmd, origin string) Decision {
	t := &Ticket{
		ID:     uuid.NewString(),
		Cmd:    cmd,
		Origin: origin,
		done:   make(chan Decision, 1),
	}

	select {
	case b.intake <- t:
	case <-ctx.Done():
		return Declined
	}

	select {
	case d := <-t.done:
		return d
	case <-ctx.Done():
		return Declined
	}
}
