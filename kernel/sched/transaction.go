package sched

import "github.com/vsrinivas/coyotos/kernel"

// reportBug is a package-level mockable function variable, the same
// idiom as the teacher's kfmt/cpu function-variable seams: production
// code reports a commit-point violation via kernel.Bug (which halts),
// while tests substitute a stub that records the call without halting
// the test process.
var reportBug = kernel.Bug

// Outcome is the result of one invocation-handler step, replacing the
// source's longjmp-based sched_abandon_transaction/sched_restart_
// transaction control flow with an explicit value a driver loop switches
// on, per spec.md §5's commit-point discipline.
type Outcome uint8

const (
	// Completed means the handler ran past its commit point and all
	// effects are visible; the driver loop should proceed to the reply
	// step (if any) and stop iterating.
	Completed Outcome = iota
	// Restart means the handler abandoned before commit and wants the
	// same invocation retried from the top, with its process locks
	// released; the driver loop should call Step again.
	Restart
	// Park means the handler abandoned before commit and parked the
	// current process on a stall queue; the driver loop should stop and
	// return control to the scheduler.
	Park
)

// Transaction tracks whether the current handler step has passed its
// commit point, per spec.md §5: "Every handler must call
// sched_commit_point before making any persistent side effect visible
// ... After commit, the handler must complete." This is enforced here by
// panicking (via kernel.Bug) if AbandonTransaction or RestartTransaction
// is called after CommitPoint, turning a design rule the source enforces
// "by construction" into a runtime-checked invariant.
type Transaction struct {
	committed bool
}

// CommitPoint marks every effect the handler produces from this point on
// as persistent. It must be the last thing a handler calls before
// touching shared state it intends to keep.
func (t *Transaction) CommitPoint() {
	t.committed = true
}

// Committed reports whether CommitPoint has been called.
func (t *Transaction) Committed() bool { return t.committed }

// AbandonTransaction parks the current process (the caller is
// responsible for having placed it on the appropriate Queue first) and
// returns Park. It is a programming error to call this after CommitPoint.
func (t *Transaction) AbandonTransaction() Outcome {
	if t.committed {
		reportBug("sched", "AbandonTransaction called after CommitPoint")
	}
	return Park
}

// RestartTransaction signals that the caller's locks should be released
// and the same invocation retried from the top. It is a programming
// error to call this after CommitPoint.
func (t *Transaction) RestartTransaction() Outcome {
	if t.committed {
		reportBug("sched", "RestartTransaction called after CommitPoint")
	}
	return Restart
}

// Step is the shape every handler/driver step function implements: run
// to either a commit point (Completed) or an abandon/restart point
// (Park/Restart).
type Step func(t *Transaction) Outcome

// Drive runs step in a loop, retrying on Restart, until it returns
// Completed or Park. This is the driver-loop replacement for the
// source's coroutine-style longjmp back into the scheduler.
func Drive(step Step) Outcome {
	for {
		t := &Transaction{}
		switch outcome := step(t); outcome {
		case Restart:
			continue
		default:
			return outcome
		}
	}
}
