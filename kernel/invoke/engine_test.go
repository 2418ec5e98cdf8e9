package invoke

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vsrinivas/coyotos/kernel/capx"
	"github.com/vsrinivas/coyotos/kernel/hal/simhal"
	"github.com/vsrinivas/coyotos/kernel/objcache"
	"github.com/vsrinivas/coyotos/kernel/sched"
	"github.com/vsrinivas/coyotos/kernel/store"
)

func newTestEngine(t *testing.T) (*Engine, *objcache.Cache) {
	t.Helper()
	h := simhal.New(256, 4096)
	st := store.NewFSStore(afero.NewMemMapFs(), "/obj")
	cache := objcache.New(h, st, objcache.Sizes{})
	return NewEngine(h, cache, HandlerTable{}), cache
}

func newTestProcess(t *testing.T, cache *objcache.Cache, oid uint64) *objcache.Header {
	t.Helper()
	hdr, err := cache.Alloc(capx.TypeProcess)
	require.NoError(t, err)
	hdr.OID = oid
	hdr.AllocCount = 1
	cache.Install(hdr)
	return hdr
}

func icwFor(opts ...func(*ICW)) ICW {
	var w ICW
	w |= icwBitSendPhase
	for _, o := range opts {
		o(&w)
	}
	return w
}

func TestICWBitAccessors(t *testing.T) {
	w := ICW(0)
	w |= icwBitSendPhase | icwBitReceivePhase | icwBitNonBlocking | icwBitClosedWait
	assert.True(t, w.SendPhase())
	assert.True(t, w.ReceivePhase())
	assert.True(t, w.NonBlocking())
	assert.True(t, w.ClosedWait())
	assert.False(t, w.Exception())
	assert.True(t, w.WithException().Exception())
}

func TestICWLastWordIndices(t *testing.T) {
	w := ICW(3 | (2 << icwShiftLastCapWord))
	assert.Equal(t, 3, w.LastDataWord())
	assert.Equal(t, 2, w.LastCapWord())
}

func TestMinimalPingGetType(t *testing.T) {
	e, cache := newTestEngine(t)

	pageHdr, err := cache.Alloc(capx.TypePage)
	require.NoError(t, err)
	pageHdr.OID = 1
	pageHdr.AllocCount = 1
	cache.Install(pageHdr)

	invoker := newTestProcess(t, cache, 100)
	pf, _ := invoker.Process()
	pf.CapRegs[0] = capx.NewOIDCapability(capx.TypePage, 0, 1, 0, 1)

	params := &InvParameterBlock{
		InvokedCap: CapLocation{Kind: CapLocReg, Reg: 0},
		DataWords:  [MaxDataWords]uint64{uint64(OpGetType)},
	}
	icw := icwFor()

	reply, outcome := e.InvokeCap(100, invoker, icw, params, nil, nil)
	require.Equal(t, sched.Completed, outcome)
	require.Equal(t, OK, reply.Result)
	assert.Equal(t, uint64(capx.TypePage), reply.DataWords[0])
}

func TestPrepareStaleAllocCountNullsCapability(t *testing.T) {
	e, cache := newTestEngine(t)

	invoker := newTestProcess(t, cache, 200)
	pf, _ := invoker.Process()
	gptHdr, err := cache.Alloc(capx.TypeGPT)
	require.NoError(t, err)
	gptHdr.OID = 55
	gptHdr.AllocCount = 2
	cache.Install(gptHdr)

	pf.CapRegs[0] = capx.NewOIDCapability(capx.TypeGPT, 0, 1, 0, 55) // stale AllocCount

	params := &InvParameterBlock{
		InvokedCap: CapLocation{Kind: CapLocReg, Reg: 0},
		DataWords:  [MaxDataWords]uint64{uint64(OpGetType)},
	}

	reply, outcome := e.InvokeCap(200, invoker, icwFor(), params, nil, nil)
	require.Equal(t, sched.Completed, outcome)
	assert.Equal(t, OK, reply.Result)
	assert.Equal(t, uint64(capx.TypeNull), reply.DataWords[0])
}

func TestUnknownOpcodeReturnsUnknownRequest(t *testing.T) {
	e, cache := newTestEngine(t)

	pageHdr, err := cache.Alloc(capx.TypePage)
	require.NoError(t, err)
	pageHdr.OID = 2
	pageHdr.AllocCount = 1
	cache.Install(pageHdr)

	invoker := newTestProcess(t, cache, 101)
	pf, _ := invoker.Process()
	pf.CapRegs[0] = capx.NewOIDCapability(capx.TypePage, 0, 1, 0, 2)

	params := &InvParameterBlock{
		InvokedCap: CapLocation{Kind: CapLocReg, Reg: 0},
		DataWords:  [MaxDataWords]uint64{999},
	}

	reply, outcome := e.InvokeCap(101, invoker, icwFor(), params, nil, nil)
	require.Equal(t, sched.Completed, outcome)
	assert.Equal(t, UnknownRequest, reply.Result)
}

func TestRestartRestrictedCapabilityMayOnlyGetType(t *testing.T) {
	e, cache := newTestEngine(t)

	pageHdr, err := cache.Alloc(capx.TypePage)
	require.NoError(t, err)
	pageHdr.OID = 3
	pageHdr.AllocCount = 1
	cache.Install(pageHdr)

	invoker := newTestProcess(t, cache, 102)
	pf, _ := invoker.Process()
	pf.CapRegs[0] = capx.NewOIDCapability(capx.TypePage, capx.RestrNoCall, 1, 0, 3)

	params := &InvParameterBlock{
		InvokedCap: CapLocation{Kind: CapLocReg, Reg: 0},
		DataWords:  [MaxDataWords]uint64{uint64(OpDestroy)},
	}

	reply, outcome := e.InvokeCap(102, invoker, icwFor(), params, nil, nil)
	require.Equal(t, sched.Completed, outcome)
	assert.Equal(t, NoAccess, reply.Result)
}

func TestEntryRendezvousOpenWaitDelivers(t *testing.T) {
	e, cache := newTestEngine(t)

	recipient := newTestProcess(t, cache, 300)
	rf, _ := recipient.Process()
	rf.RunState = objcache.RunReceiving
	rf.ReceiveEpID = 0 // open wait

	epHdr, err := cache.Alloc(capx.TypeEndpoint)
	require.NoError(t, err)
	epHdr.OID = 400
	epHdr.AllocCount = 1
	ef, _ := epHdr.Endpoint()
	ef.EndpointID = 0xCAFE
	ef.Recipient = capx.NewOIDCapability(capx.TypeProcess, 0, 1, 0, 300)
	cache.Install(epHdr)

	sender := newTestProcess(t, cache, 301)
	sf, _ := sender.Process()
	sf.CapRegs[0] = capx.NewOIDCapability(capx.TypeEntry, 0, 1, 7, 400)

	params := &InvParameterBlock{
		InvokedCap: CapLocation{Kind: CapLocReg, Reg: 0},
		DataWords:  [MaxDataWords]uint64{0x1, 0x2},
	}
	icw := icwFor(func(w *ICW) { *w |= icwBitReceivePhase })

	reply, outcome := e.InvokeCap(301, sender, icw, params, nil, nil)
	require.Equal(t, sched.Completed, outcome)
	assert.Equal(t, OK, reply.Result)
	assert.Equal(t, uint64(0xCAFE), rf.ReceiveEpID)
	assert.Equal(t, objcache.RunRunning, rf.RunState)
	assert.Equal(t, uint64(0x1), rf.FixedRegs[0])
}

func TestEntryRendezvousBlocksOnClosedWaitMismatch(t *testing.T) {
	e, cache := newTestEngine(t)

	recipient := newTestProcess(t, cache, 310)
	rf, _ := recipient.Process()
	rf.RunState = objcache.RunReceiving
	rf.ReceiveEpID = 0xBEEF // closed wait on a different endpoint

	epHdr, err := cache.Alloc(capx.TypeEndpoint)
	require.NoError(t, err)
	epHdr.OID = 410
	epHdr.AllocCount = 1
	ef, _ := epHdr.Endpoint()
	ef.EndpointID = 0xCAFE
	ef.Recipient = capx.NewOIDCapability(capx.TypeProcess, 0, 1, 0, 310)
	cache.Install(epHdr)

	sender := newTestProcess(t, cache, 311)
	sf, _ := sender.Process()
	sf.CapRegs[0] = capx.NewOIDCapability(capx.TypeEntry, 0, 1, 0, 410)

	params := &InvParameterBlock{InvokedCap: CapLocation{Kind: CapLocReg, Reg: 0}}

	reply, outcome := e.InvokeCap(311, sender, icwFor(), params, nil, nil)
	assert.Equal(t, sched.Park, outcome)
	assert.Equal(t, Reply{}, reply)
}

func TestEntryRendezvousNonBlockingReportsWouldBlock(t *testing.T) {
	e, cache := newTestEngine(t)

	recipient := newTestProcess(t, cache, 320)
	rf, _ := recipient.Process()
	rf.RunState = objcache.RunFaulted // not receiving

	epHdr, err := cache.Alloc(capx.TypeEndpoint)
	require.NoError(t, err)
	epHdr.OID = 420
	epHdr.AllocCount = 1
	ef, _ := epHdr.Endpoint()
	ef.EndpointID = 0xD00D
	ef.Recipient = capx.NewOIDCapability(capx.TypeProcess, 0, 1, 0, 320)
	cache.Install(epHdr)

	sender := newTestProcess(t, cache, 321)
	sf, _ := sender.Process()
	sf.CapRegs[0] = capx.NewOIDCapability(capx.TypeEntry, 0, 1, 0, 420)

	params := &InvParameterBlock{InvokedCap: CapLocation{Kind: CapLocReg, Reg: 0}}
	icw := icwFor(func(w *ICW) { *w |= icwBitNonBlocking })

	reply, outcome := e.InvokeCap(321, sender, icw, params, nil, nil)
	require.Equal(t, sched.Completed, outcome)
	assert.Equal(t, RequestWouldBlock, reply.Result)
}

func TestDeliverException(t *testing.T) {
	var icw ICW
	var data [MaxDataWords]uint64

	DeliverException(&icw, &data, NoAccess)

	assert.True(t, icw.Exception())
	assert.Equal(t, uint64(NoAccess), data[0])
}

func TestCopyCapWeakensDestination(t *testing.T) {
	e, cache := newTestEngine(t)
	invoker := newTestProcess(t, cache, 500)
	pf, _ := invoker.Process()
	pf.CapRegs[0] = capx.NewOIDCapability(capx.TypePage, 0, 1, 0, 9)

	var written capx.Capability
	writeCap := func(_ *objcache.Header, loc CapLocation, cap capx.Capability) Result {
		written = cap
		return OK
	}

	result := e.CopyCap(invoker, CapLocation{Kind: CapLocReg, Reg: 0}, CapLocation{Kind: CapLocReg, Reg: 1}, nil, writeCap)
	require.Equal(t, OK, result)
	assert.True(t, written.Restrictions().Has(capx.RestrReadOnly))
}
