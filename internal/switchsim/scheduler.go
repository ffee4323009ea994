package switchsim

import (
	"container/heap"
	"context"
	"errors"
)

// Arrival is a transaction entering the switch at tick At.
type Arrival struct {
	At     int
	Packet *Packet
}

// Result is the final state of one transaction.
type Result struct {
	ID       string
	Outcome  Outcome
	Passes   int
	Recircs  uint32
	Finished int
	Err      error
	Packet   *Packet
}

// queue classes, lowest served first
const (
	classLockHolder = iota
	classRecirculated
	classFresh
)

type entry struct {
	pkt     *Packet
	readyAt int
	class   int
	seq     int
}

// readyQueue orders packets that may enter the pipeline now.
type readyQueue []*entry

func (q readyQueue) Len() int { return len(q) }
func (q readyQueue) Less(i, j int) bool {
	if q[i].class != q[j].class {
		return q[i].class < q[j].class
	}
	return q[i].seq < q[j].seq
}
func (q readyQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *readyQueue) Push(x any)   { *q = append(*q, x.(*entry)) }
func (q *readyQueue) Pop() any {
	old := *q
	e := old[len(old)-1]
	*q = old[:len(old)-1]
	return e
}

// pendingQueue orders packets by the tick they become ready.
type pendingQueue []*entry

func (q pendingQueue) Len() int { return len(q) }
func (q pendingQueue) Less(i, j int) bool {
	if q[i].readyAt != q[j].readyAt {
		return q[i].readyAt < q[j].readyAt
	}
	return q[i].seq < q[j].seq
}
func (q pendingQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *pendingQueue) Push(x any)   { *q = append(*q, x.(*entry)) }
func (q *pendingQueue) Pop() any {
	old := *q
	e := old[len(old)-1]
	*q = old[:len(old)-1]
	return e
}

// Run feeds arrivals through the pipeline one packet per tick until every
// transaction has left the switch. Among packets ready at the same tick,
// lock holders go first, then other recirculated packets, then fresh
// arrivals, each in FIFO order. Results are returned in arrival order.
func (s *Switch) Run(ctx context.Context, arrivals []Arrival) ([]Result, error) {
	results := make([]Result, len(arrivals))
	index := make(map[*Packet]int, len(arrivals))

	pending := &pendingQueue{}
	ready := &readyQueue{}
	seq := 0
	for i, a := range arrivals {
		if a.Packet == nil {
			return nil, errors.New("switchsim: arrival without packet")
		}
		index[a.Packet] = i
		heap.Push(pending, &entry{pkt: a.Packet, readyAt: a.At, class: classFresh, seq: seq})
		seq++
	}

	now := 0
	for pending.Len() > 0 || ready.Len() > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		for pending.Len() > 0 && (*pending)[0].readyAt <= now {
			heap.Push(ready, heap.Pop(pending))
		}
		if ready.Len() == 0 {
			now = (*pending)[0].readyAt
			continue
		}

		e := heap.Pop(ready).(*entry)
		outcome, v, err := s.Traverse(e.pkt)
		s.trace(Event{Tick: now, Packet: e.pkt, Outcome: outcome, Verdict: v, Err: err})

		if outcome == Recirculated {
			class := classRecirculated
			if e.pkt.Info.HasLock {
				class = classLockHolder
			}
			heap.Push(pending, &entry{pkt: e.pkt, readyAt: now + s.opts.RecircLatency, class: class, seq: seq})
			seq++
		} else {
			results[index[e.pkt]] = Result{
				ID:       e.pkt.ID,
				Outcome:  outcome,
				Passes:   e.pkt.Passes,
				Recircs:  e.pkt.Info.Recircs,
				Finished: now,
				Err:      err,
				Packet:   e.pkt,
			}
		}
		now++
	}
	return results, nil
}

func (s *Switch) trace(ev Event) {
	if s.opts.Tracer != nil {
		s.opts.Tracer.Trace(ev)
	}
}
