package sched

import "sync/atomic"

// CPU is one scheduling CPU from spec.md §5: a current-process pointer
// (owned by package invoke, not referenced here) and a lock-generation
// counter. Bumping Generation gang-releases every transient ProcessLock
// this CPU currently holds: TryAcquire checks a lock's stored word
// against this CPU's *current* generation, so a stale word reads as
// unheld without the lock itself ever being touched.
type CPU struct {
	ID         uint32
	generation uint64 // starts at 1; 0 is reserved to mean "lock free"
}

// NewCPU returns a CPU with its generation initialized to 1.
func NewCPU(id uint32) *CPU { return &CPU{ID: id, generation: 1} }

// GangRelease bumps the CPU's generation, logically releasing every
// transient ProcessLock currently stamped with the old generation, per
// spec.md §5: "all locks held by the current thread of execution drop
// atomically without touching each lock." This is the mechanism behind
// sched_abandon_transaction.
func (c *CPU) GangRelease() {
	atomic.AddUint64(&c.generation, 1)
}

func (c *CPU) pack() uint64 {
	return (uint64(c.ID) << 40) | (atomic.LoadUint64(&c.generation) & 0xFFFFFFFFFF)
}

func ownerID(v uint64) uint32  { return uint32(v >> 40) }
func ownerGen(v uint64) uint64 { return v & 0xFFFFFFFFFF }

// ProcessLock is the generation-valued per-process mutex from spec.md
// §5. A non-zero stored word means "held by ownerID at ownerGen";
// whether that still counts as held depends on whether the owning CPU's
// current generation still matches -- if the CPU has since gang-released
// (bumped its generation), the word is stale and the lock is logically
// free even though no one explicitly cleared it.
type ProcessLock struct {
	word uint64
}

// TryAcquire attempts to acquire l for cpu. Recursive acquisition by the
// same CPU, at its current generation, succeeds immediately (permitted
// per spec.md §5). Returns false if l is validly held by a different CPU
// generation.
func (l *ProcessLock) TryAcquire(cpu *CPU) bool {
	for {
		cur := atomic.LoadUint64(&l.word)
		if cur != 0 {
			if ownerID(cur) == cpu.ID && ownerGen(cur) == ownerGen(cpu.pack()) {
				return true // recursive acquire, same CPU, same transaction
			}
			if !l.isStale(cur, cpu) {
				return false // validly held by someone else
			}
			// Stale: the owning CPU gang-released since this word was
			// written. Fall through and try to claim it.
		}
		want := cpu.pack()
		if atomic.CompareAndSwapUint64(&l.word, cur, want) {
			return true
		}
	}
}

// isStale reports whether cur's owning CPU has since bumped its
// generation past what cur recorded -- i.e. cur describes a transient
// acquisition that was gang-released. This package only tracks the
// acquiring CPU's own staleness (via the CPU pointer the lock was last
// acquired through); other-CPU staleness checks route through the same
// CPU value since process locks in this engine are always acquired by
// the CPU servicing the current invocation.
func (l *ProcessLock) isStale(cur uint64, cpu *CPU) bool {
	if ownerID(cur) != cpu.ID {
		return false
	}
	return ownerGen(cur) != ownerGen(cpu.pack())
}

// Release unconditionally clears l, used for the (non-transient) case of
// a handler that completed past its commit point and releases locks
// explicitly rather than waiting for a future gang release.
func (l *ProcessLock) Release() {
	atomic.StoreUint64(&l.word, 0)
}

// HeldBy reports whether cpu currently holds l at its present
// generation.
func (l *ProcessLock) HeldBy(cpu *CPU) bool {
	cur := atomic.LoadUint64(&l.word)
	return cur != 0 && ownerID(cur) == cpu.ID && ownerGen(cur) == ownerGen(cpu.pack())
}
