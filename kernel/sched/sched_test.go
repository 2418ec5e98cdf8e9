package sched

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueFIFO(t *testing.T) {
	q := NewQueue()
	q.PushBack(1)
	q.PushBack(2)
	q.PushBack(3)

	v, ok := q.PopFront()
	require.True(t, ok)
	assert.Equal(t, ProcOID(1), v)

	assert.True(t, q.Remove(3))
	assert.False(t, q.Remove(99))

	v, ok = q.PopFront()
	require.True(t, ok)
	assert.Equal(t, ProcOID(2), v)

	_, ok = q.PopFront()
	assert.False(t, ok)
}

func TestQueueDrainAll(t *testing.T) {
	q := NewQueue()
	q.PushBack(10)
	q.PushBack(20)

	got := q.DrainAll()
	assert.Equal(t, []ProcOID{10, 20}, got)
	assert.Equal(t, 0, q.Len())
}

func TestProcessLockRecursiveAcquireSameCPU(t *testing.T) {
	cpu := NewCPU(0)
	var l ProcessLock

	require.True(t, l.TryAcquire(cpu))
	require.True(t, l.TryAcquire(cpu)) // recursive, same generation
	assert.True(t, l.HeldBy(cpu))
}

func TestProcessLockExcludesOtherCPU(t *testing.T) {
	cpu0 := NewCPU(0)
	cpu1 := NewCPU(1)
	var l ProcessLock

	require.True(t, l.TryAcquire(cpu0))
	assert.False(t, l.TryAcquire(cpu1))
}

func TestProcessLockGangRelease(t *testing.T) {
	cpu := NewCPU(0)
	var l1, l2 ProcessLock

	require.True(t, l1.TryAcquire(cpu))
	require.True(t, l2.TryAcquire(cpu))

	cpu.GangRelease()

	assert.False(t, l1.HeldBy(cpu))
	assert.False(t, l2.HeldBy(cpu))

	other := NewCPU(1)
	assert.True(t, l1.TryAcquire(other))
}

func TestTransactionReportsBugAfterCommit(t *testing.T) {
	orig := reportBug
	defer func() { reportBug = orig }()

	var gotModule, gotMessage string
	reportBug = func(module, message string) { gotModule, gotMessage = module, message }

	tr := &Transaction{}
	tr.CommitPoint()
	outcome := tr.AbandonTransaction()

	assert.Equal(t, Park, outcome)
	assert.Equal(t, "sched", gotModule)
	assert.NotEmpty(t, gotMessage)
}

func TestDriveRetriesOnRestart(t *testing.T) {
	attempts := 0
	outcome := Drive(func(t *Transaction) Outcome {
		attempts++
		if attempts < 3 {
			return t.RestartTransaction()
		}
		t.CommitPoint()
		return Completed
	})
	assert.Equal(t, Completed, outcome)
	assert.Equal(t, 3, attempts)
}

func TestDriveReturnsParkWithoutRetry(t *testing.T) {
	attempts := 0
	outcome := Drive(func(t *Transaction) Outcome {
		attempts++
		return t.AbandonTransaction()
	})
	assert.Equal(t, Park, outcome)
	assert.Equal(t, 1, attempts)
}
