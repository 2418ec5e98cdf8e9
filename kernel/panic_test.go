package kernel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withMockHalt(t *testing.T) *bool {
	t.Helper()
	orig := haltFn
	called := false
	haltFn = func() { called = true }
	t.Cleanup(func() { haltFn = orig })
	return &called
}

func TestFatalWithError(t *testing.T) {
	called := withMockHalt(t)

	Fatal(&Error{Module: "test", Message: "panic test"})

	assert.True(t, *called)
}

func TestFatalWithString(t *testing.T) {
	called := withMockHalt(t)

	Fatal("bad state")

	assert.True(t, *called)
}

func TestFatalWithNil(t *testing.T) {
	called := withMockHalt(t)

	Fatal(nil)

	assert.True(t, *called)
}

func TestBugHalts(t *testing.T) {
	called := withMockHalt(t)

	Bug("sched", "commit-point violated")

	assert.True(t, *called)
}

func TestAssertPassesWhenTrue(t *testing.T) {
	called := withMockHalt(t)

	Assert(true, "test", "should not fire")

	assert.False(t, *called)
}

func TestAssertHaltsWhenFalse(t *testing.T) {
	called := withMockHalt(t)

	Assert(false, "test", "invariant violated")

	require.True(t, *called)
}
