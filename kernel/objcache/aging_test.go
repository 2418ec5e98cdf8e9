package objcache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vsrinivas/coyotos/kernel/capx"
)

func TestAgingListTransitions(t *testing.T) {
	ofc := newObFrameCache(capx.TypePage)

	h := &Header{Type: capx.TypePage}
	ofc.insert(h, ListActive)
	a, chk, r := ofc.counts()
	assert.Equal(t, 1, a)
	assert.Equal(t, 0, chk)
	assert.Equal(t, 0, r)

	ok := ofc.demoteOneActive()
	require.True(t, ok)
	assert.Equal(t, ListCheck, h.agingList)

	// Untouched: scanCheckList demotes straight to reclaim.
	var destroyedHeaders []*Header
	upgraded, reclaimed := ofc.scanCheckList(func(hh *Header) { destroyedHeaders = append(destroyedHeaders, hh) })
	assert.Equal(t, 0, upgraded)
	assert.Equal(t, 1, reclaimed)
	assert.Equal(t, ListReclaim, h.agingList)
	require.Len(t, destroyedHeaders, 1)
	assert.Same(t, h, destroyedHeaders[0])

	popped := ofc.popReclaim()
	require.NotNil(t, popped)
	assert.Same(t, h, popped)
	assert.Equal(t, ListNone, h.agingList)
}

func TestAgingListTouchedUpgrades(t *testing.T) {
	ofc := newObFrameCache(capx.TypeGPT)
	ofc.touchedFn = func(*Header) bool { return true }

	h := &Header{Type: capx.TypeGPT}
	ofc.insert(h, ListCheck)

	upgraded, reclaimed := ofc.scanCheckList(nil)
	assert.Equal(t, 1, upgraded)
	assert.Equal(t, 0, reclaimed)
	assert.Equal(t, ListActive, h.agingList)
}

func TestSweepUnmarkedReclaimsOnlyUnmarked(t *testing.T) {
	ofc := newObFrameCache(capx.TypeEndpoint)

	live := &Header{Type: capx.TypeEndpoint, OTEPtr: &capx.OTE{OID: 1, Mark: true}}
	dead := &Header{Type: capx.TypeEndpoint, OTEPtr: &capx.OTE{OID: 2, Mark: false}}
	neverSwizzled := &Header{Type: capx.TypeEndpoint}

	ofc.insert(live, ListActive)
	ofc.insert(dead, ListActive)
	ofc.insert(neverSwizzled, ListActive)

	reclaimed := ofc.sweepUnmarked(func(hh *Header) { hh.OTEPtr.Destroyed = true })
	assert.Equal(t, 1, reclaimed)
	assert.Equal(t, ListActive, live.agingList)
	assert.Equal(t, ListActive, neverSwizzled.agingList)
	assert.Equal(t, ListReclaim, dead.agingList)
	assert.True(t, dead.OTEPtr.Destroyed)
}
