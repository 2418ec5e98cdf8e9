package sched

import "container/list"

// ProcOID identifies a Process object frame; package sched never imports
// package objcache (that would invert the dependency the engine actually
// needs -- objcache is lower-level than scheduling), so queues carry
// plain OIDs and the caller resolves them back to frames.
type ProcOID uint64

// StallReason names one of the queue classes a process can be parked on,
// per spec.md §5: "endpoint queue, receive queue, page-fault queue,
// object-hash bucket queue, IRQ queue, sleep queue".
type StallReason uint8

const (
	StallEndpoint StallReason = iota
	StallReceive
	StallFault
	StallObjectHash
	StallIRQ
	StallSleep
)

// Queue is a spinlock-guarded FIFO of parked processes, grounded on the
// teacher's kernel/sync.Spinlock guarding a plain intrusive list,
// generalized from a single ready list to the family of stall queues
// spec.md §5 describes (one Queue instance per endpoint, per
// receive-set, per fault bucket, per hash bucket, per IRQ vector, per
// sleep class).
type Queue struct {
	lock Spinlock
	l    list.List
}

// NewQueue returns an empty Queue.
func NewQueue() *Queue {
	q := &Queue{}
	q.l.Init()
	return q
}

// PushBack parks proc at the tail of the queue.
func (q *Queue) PushBack(proc ProcOID) {
	q.lock.Acquire()
	defer q.lock.Release()
	q.l.PushBack(proc)
}

// PopFront removes and returns the process at the head of the queue, or
// (0, false) if empty.
func (q *Queue) PopFront() (ProcOID, bool) {
	q.lock.Acquire()
	defer q.lock.Release()
	e := q.l.Front()
	if e == nil {
		return 0, false
	}
	q.l.Remove(e)
	return e.Value.(ProcOID), true
}

// Remove removes proc from the queue if present, reporting whether it
// was found. Used when a process is woken by a source other than
// queue-order draining (e.g. AppInt delivery waking a specific waiter).
func (q *Queue) Remove(proc ProcOID) bool {
	q.lock.Acquire()
	defer q.lock.Release()
	for e := q.l.Front(); e != nil; e = e.Next() {
		if e.Value.(ProcOID) == proc {
			q.l.Remove(e)
			return true
		}
	}
	return false
}

// DrainAll removes and returns every process currently parked, in FIFO
// order, used by the thundering-herd IRQ/sleep wake path from spec.md
// §5 ("IRQ-wake ordering is unordered across concurrently awoken
// receivers").
func (q *Queue) DrainAll() []ProcOID {
	q.lock.Acquire()
	defer q.lock.Release()
	out := make([]ProcOID, 0, q.l.Len())
	for e := q.l.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value.(ProcOID))
	}
	q.l.Init()
	return out
}

// Len reports the current queue length.
func (q *Queue) Len() int {
	q.lock.Acquire()
	defer q.lock.Release()
	return q.l.Len()
}

// ReadyQueue is the single shared ready queue from spec.md §5: a
// doubly-linked intrusive list under a spinlock, holding every
// runnable-but-not-currently-running process across all CPUs.
type ReadyQueue struct {
	Queue
}

// NewReadyQueue returns an empty ReadyQueue.
func NewReadyQueue() *ReadyQueue {
	rq := &ReadyQueue{}
	rq.l.Init()
	return rq
}
