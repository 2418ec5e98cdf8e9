package sched

import "sync"

// IRQTable holds the per-vector stall queues, pending flags, and mask
// state an IrqWait capability handler needs, per spec.md §4.6's IrqWait
// bullet and §8 scenario 5: "enqueues on the vector's stall queue,
// unmasks the vector at the controller if not already, and suspends. A
// subsequent interrupt on that IRQ clears pending on wake."
type IRQTable struct {
	mu      sync.Mutex
	queues  map[uint32]*Queue
	pending map[uint32]bool
	masked  map[uint32]bool
}

// NewIRQTable returns an empty IRQTable; every vector starts masked with
// no pending interrupt.
func NewIRQTable() *IRQTable {
	return &IRQTable{
		queues:  make(map[uint32]*Queue),
		pending: make(map[uint32]bool),
		masked:  make(map[uint32]bool),
	}
}

// QueueFor returns (creating if necessary) the stall queue for vector.
func (t *IRQTable) QueueFor(vector uint32) *Queue {
	t.mu.Lock()
	defer t.mu.Unlock()
	q, ok := t.queues[vector]
	if !ok {
		q = NewQueue()
		t.queues[vector] = q
	}
	return q
}

// Pending reports whether vector currently has an undelivered interrupt.
func (t *IRQTable) Pending(vector uint32) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pending[vector]
}

// SetPending records (or clears) vector's pending flag; the hardware
// interrupt-glue layer calls this with true on receipt, IrqWait.Wait's
// wake path calls it with false to clear pending on wake per §8
// scenario 5.
func (t *IRQTable) SetPending(vector uint32, v bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending[vector] = v
}

// Masked reports whether vector is currently masked at the controller.
func (t *IRQTable) Masked(vector uint32) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	masked, known := t.masked[vector]
	if !known {
		return true // unbound vectors start masked
	}
	return masked
}

// Unmask clears vector's masked flag, reporting whether it changed
// (i.e. the vector was masked before this call), used by IrqWait.Wait's
// "unmask the vector if not already" clause.
func (t *IRQTable) Unmask(vector uint32) (wasMasked bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	masked, known := t.masked[vector]
	wasMasked = !known || masked // unbound vectors start masked
	t.masked[vector] = false
	return wasMasked
}

// Mask sets vector's masked flag, used by IrqWait's enable/disable
// opcodes.
func (t *IRQTable) Mask(vector uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.masked[vector] = true
}

// SleepQueue tracks absolute wake times for processes parked by the
// Sleep capability, per spec.md §5 "Cancellation and timeouts": "Sleep
// capabilities carry absolute wake times; an external timer tick calls
// interval_wakeup, which wakes all sleepers whose wake time has passed
// (no attempt to sort)."
type SleepQueue struct {
	mu   sync.Mutex
	wake map[ProcOID]uint64
}

// NewSleepQueue returns an empty SleepQueue.
func NewSleepQueue() *SleepQueue {
	return &SleepQueue{wake: make(map[ProcOID]uint64)}
}

// Park records that proc should wake once the clock reaches wakeUsec
// (microseconds since an engine-defined epoch).
func (s *SleepQueue) Park(proc ProcOID, wakeUsec uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wake[proc] = wakeUsec
}

// IntervalWakeup removes and returns every process whose wake time has
// passed nowUsec, in map-iteration order -- deliberately unsorted, per
// spec.md §5's "no attempt to sort" design rule.
func (s *SleepQueue) IntervalWakeup(nowUsec uint64) []ProcOID {
	s.mu.Lock()
	defer s.mu.Unlock()
	var woken []ProcOID
	for proc, wake := range s.wake {
		if wake <= nowUsec {
			woken = append(woken, proc)
			delete(s.wake, proc)
		}
	}
	return woken
}

// Len reports the number of processes currently parked.
func (s *SleepQueue) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.wake)
}
