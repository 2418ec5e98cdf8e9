package handler

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vsrinivas/coyotos/kernel/capx"
	"github.com/vsrinivas/coyotos/kernel/hal/simhal"
	"github.com/vsrinivas/coyotos/kernel/invoke"
	"github.com/vsrinivas/coyotos/kernel/objcache"
	"github.com/vsrinivas/coyotos/kernel/sched"
	"github.com/vsrinivas/coyotos/kernel/store"
	"github.com/vsrinivas/coyotos/kernel/walker"
)

func newTestCache(t *testing.T) *objcache.Cache {
	t.Helper()
	h := simhal.New(256, 4096)
	st := store.NewFSStore(afero.NewMemMapFs(), "/obj")
	return objcache.New(h, st, objcache.Sizes{})
}

func allocHeader(t *testing.T, cache *objcache.Cache, typ capx.Type, oid uint64) *objcache.Header {
	t.Helper()
	hdr, err := cache.Alloc(typ)
	require.NoError(t, err)
	hdr.OID = oid
	hdr.AllocCount = 1
	cache.Install(hdr)
	return hdr
}

// invokeHandler runs h.Invoke inside a transaction, mirroring the
// commit-point discipline invoke.Engine.step enforces, without the
// ICW/send-phase plumbing a full InvokeCap trap needs.
func invokeHandler(h invoke.Handler, ctx *invoke.Context) invoke.Result {
	var result invoke.Result
	sched.Drive(func(t *sched.Transaction) sched.Outcome {
		ctx.Transaction = t
		result = h.Invoke(ctx)
		return sched.Completed
	})
	return result
}

func TestMemoryGetRestrictionsAndReduce(t *testing.T) {
	cache := newTestCache(t)
	hdr := allocHeader(t, cache, capx.TypePage, 1)

	target := capx.NewOIDCapability(capx.TypePage, capx.RestrReadOnly, 1, 0, 1)
	var written capx.Capability
	ctx := &invoke.Context{
		Cache:        cache,
		Target:       target,
		TargetHeader: hdr,
		Params: &invoke.InvParameterBlock{
			DataWords: [invoke.MaxDataWords]uint64{uint64(opGetRestrictions)},
		},
		WriteInvoked: func(cap capx.Capability) invoke.Result {
			written = cap
			return invoke.OK
		},
	}

	result := invokeHandler(PageHandler{}, ctx)
	require.Equal(t, invoke.OK, result)
	assert.Equal(t, uint64(capx.RestrReadOnly), ctx.Reply.DataWords[0])

	ctx.Params.DataWords[0] = uint64(opReduce)
	ctx.Params.DataWords[1] = uint64(capx.RestrWeak)
	ctx.Reply = invoke.Reply{}
	result = invokeHandler(PageHandler{}, ctx)
	require.Equal(t, invoke.OK, result)
	assert.True(t, written.Restrictions().Has(capx.RestrReadOnly))
	assert.True(t, written.Restrictions().Has(capx.RestrWeak))
}

func TestGPTSlotGetSet(t *testing.T) {
	cache := newTestCache(t)
	gptHdr := allocHeader(t, cache, capx.TypeGPT, 10)
	pageHdr := allocHeader(t, cache, capx.TypePage, 11)

	gpt, _ := gptHdr.GPT()
	gpt.L2V = 12

	target := capx.NewOIDCapability(capx.TypeGPT, 0, 1, 0, 10)
	pageCap := capx.NewOIDCapability(capx.TypePage, 0, 1, 0, 11)

	ctx := &invoke.Context{
		Cache:        cache,
		Target:       target,
		TargetHeader: gptHdr,
		Params: &invoke.InvParameterBlock{
			DataWords: [invoke.MaxDataWords]uint64{uint64(opSetSlot), 0},
		},
		ResolveCap: func(loc invoke.CapLocation) (capx.Capability, invoke.Result) {
			return pageCap, invoke.OK
		},
	}

	result := invokeHandler(GPTHandler{}, ctx)
	require.Equal(t, invoke.OK, result)
	assert.True(t, gptHdr.HasFlags(objcache.FlagDirty))
	assert.Equal(t, pageCap, gpt.Slots[0])
	_ = pageHdr

	ctx.Params.DataWords[0] = uint64(opGetSlot)
	ctx.Reply = invoke.Reply{}
	result = invokeHandler(GPTHandler{}, ctx)
	require.Equal(t, invoke.OK, result)
	assert.Equal(t, pageCap, ctx.Reply.CapWords[0])

	ctx.Params.DataWords[0] = uint64(opGetL2V)
	ctx.Reply = invoke.Reply{}
	result = invokeHandler(GPTHandler{}, ctx)
	require.Equal(t, invoke.OK, result)
	assert.Equal(t, uint64(12), ctx.Reply.DataWords[0])
}

func TestAddrFetchStore(t *testing.T) {
	cache := newTestCache(t)
	gptHdr := allocHeader(t, cache, capx.TypeGPT, 20)
	pageHdr := allocHeader(t, cache, capx.TypePage, 21)
	page, _ := pageHdr.Page()
	page.Data = make([]byte, 4096)

	gpt, _ := gptHdr.GPT()
	gpt.L2V = 12
	gpt.Slots[0] = capx.NewOIDCapability(capx.TypePage, 0, 1, 0, 21)

	target := capx.NewOIDCapability(capx.TypeGPT, 0, 1, 0, 20)
	ctx := &invoke.Context{
		Cache:        cache,
		Target:       target,
		TargetHeader: gptHdr,
		Params: &invoke.InvParameterBlock{
			DataWords: [invoke.MaxDataWords]uint64{uint64(opStore), 8, 0xdeadbeef},
		},
	}

	result := invokeHandler(GPTHandler{}, ctx)
	require.Equal(t, invoke.OK, result)
	assert.True(t, pageHdr.HasFlags(objcache.FlagDirty))

	ctx.Params.DataWords[0] = uint64(opFetch)
	ctx.Reply = invoke.Reply{}
	result = invokeHandler(GPTHandler{}, ctx)
	require.Equal(t, invoke.OK, result)
	assert.Equal(t, uint64(0xdeadbeef), ctx.Reply.DataWords[0])
}

func TestProcessCapRegGetSet(t *testing.T) {
	cache := newTestCache(t)
	procHdr := allocHeader(t, cache, capx.TypeProcess, 30)
	pageCap := capx.NewOIDCapability(capx.TypePage, 0, 1, 0, 1)

	target := capx.NewOIDCapability(capx.TypeProcess, 0, 1, 0, 30)
	ctx := &invoke.Context{
		Cache:        cache,
		Target:       target,
		TargetHeader: procHdr,
		Params: &invoke.InvParameterBlock{
			DataWords: [invoke.MaxDataWords]uint64{uint64(opSetCapReg), 3},
		},
		ResolveCap: func(loc invoke.CapLocation) (capx.Capability, invoke.Result) {
			return pageCap, invoke.OK
		},
	}

	result := invokeHandler(ProcessHandler{}, ctx)
	require.Equal(t, invoke.OK, result)

	ctx.Params.DataWords[0] = uint64(opGetCapReg)
	ctx.Reply = invoke.Reply{}
	result = invokeHandler(ProcessHandler{}, ctx)
	require.Equal(t, invoke.OK, result)
	assert.Equal(t, pageCap, ctx.Reply.CapWords[0])
}

func TestEndpointMakeAppNotifierAndAppIntPost(t *testing.T) {
	cache := newTestCache(t)
	procHdr := allocHeader(t, cache, capx.TypeProcess, 40)
	epHdr := allocHeader(t, cache, capx.TypeEndpoint, 41)

	ef, _ := epHdr.Endpoint()
	ef.Recipient = capx.NewOIDCapability(capx.TypeProcess, 0, 1, 0, 40)

	epTarget := capx.NewOIDCapability(capx.TypeEndpoint, 0, 1, 0, 41)
	ctx := &invoke.Context{
		Cache:        cache,
		Target:       epTarget,
		TargetHeader: epHdr,
		Params: &invoke.InvParameterBlock{
			DataWords: [invoke.MaxDataWords]uint64{uint64(opMakeAppNotifier), 7},
		},
	}
	result := invokeHandler(EndpointHandler{}, ctx)
	require.Equal(t, invoke.OK, result)
	notifier := ctx.Reply.CapWords[0]
	assert.Equal(t, capx.TypeAppNotice, notifier.Type())
	assert.Equal(t, uint64(40), notifier.OID())

	// The minted notifier carries the recipient Process's OID directly
	// (opMakeAppNotifier resolves through ef.Recipient), so posting
	// through it must reach the same Process frame post would via a
	// plain AppInt capability built by hand.
	pf, _ := procHdr.Process()
	pf.RunState = objcache.RunReceiving

	appTarget := capx.NewOIDCapability(capx.TypeAppNotice, 0, notifier.AllocCount(), notifier.Payload(), notifier.OID())
	appCtx := &invoke.Context{
		Cache:  cache,
		Target: appTarget,
		Params: &invoke.InvParameterBlock{
			DataWords: [invoke.MaxDataWords]uint64{uint64(opPost), 3},
		},
	}
	result = invokeHandler(AppIntHandler{}, appCtx)
	require.Equal(t, invoke.OK, result)
	assert.Equal(t, objcache.RunRunning, pf.RunState)
	assert.Equal(t, uint32(1<<3), pf.SoftInts)
}

func TestRangeEnumerateIdentify(t *testing.T) {
	cache := newTestCache(t)
	allocHeader(t, cache, capx.TypePage, 50)

	rng := capx.NewOIDCapability(capx.TypeRange, 0, 4, 0, 50)
	ctx := &invoke.Context{
		Cache:  cache,
		Target: rng,
		Params: &invoke.InvParameterBlock{
			DataWords: [invoke.MaxDataWords]uint64{uint64(opEnumerate)},
		},
	}
	result := invokeHandler(RangeHandler{}, ctx)
	require.Equal(t, invoke.OK, result)
	assert.Equal(t, uint64(50), ctx.Reply.DataWords[0])
	assert.Equal(t, uint64(4), ctx.Reply.DataWords[1])

	ctx.Params.DataWords = [invoke.MaxDataWords]uint64{uint64(opIdentify), 0, uint64(capx.TypePage)}
	ctx.Reply = invoke.Reply{}
	result = invokeHandler(RangeHandler{}, ctx)
	require.Equal(t, invoke.OK, result)
	assert.Equal(t, uint64(1), ctx.Reply.DataWords[1])

	ctx.Params.DataWords = [invoke.MaxDataWords]uint64{uint64(opIdentify), 9, uint64(capx.TypePage)}
	ctx.Reply = invoke.Reply{}
	result = invokeHandler(RangeHandler{}, ctx)
	assert.Equal(t, invoke.RangeErr, result)
}

// TestRangeRescindBumpsAllocCountAndStalesCapability exercises opRescind
// itself: the allocation-count bump it returns must match the cache's
// own bookkeeping, and a capability minted against the pre-rescind
// generation must come back Null the next time it is prepared (spec.md
// §8's "stale detection" property), while a freshly minted capability at
// the new generation still prepares successfully.
func TestRangeRescindBumpsAllocCountAndStalesCapability(t *testing.T) {
	cache := newTestCache(t)
	hdr := allocHeader(t, cache, capx.TypePage, 60)
	staleCap := capx.NewOIDCapability(capx.TypePage, 0, hdr.AllocCount, 0, 60)

	rng := capx.NewOIDCapability(capx.TypeRange, 0, 1, 0, 60)
	ctx := &invoke.Context{
		Cache:  cache,
		HAL:    simhal.New(256, 4096),
		RevMap: walker.NewRevMap(),
		Target: rng,
		Params: &invoke.InvParameterBlock{
			DataWords: [invoke.MaxDataWords]uint64{uint64(opRescind), 0, uint64(capx.TypePage)},
		},
	}
	result := invokeHandler(RangeHandler{}, ctx)
	require.Equal(t, invoke.OK, result)
	newCount := ctx.Reply.DataWords[0]
	assert.Equal(t, uint64(hdr.AllocCount), newCount)
	assert.Greater(t, newCount, uint64(1))

	prepared, prepHdr, err := cache.Prepare(staleCap)
	require.NoError(t, err)
	assert.True(t, prepared.IsNull(), "stale capability should prepare to Null")
	assert.Nil(t, prepHdr)

	freshCap := capx.NewOIDCapability(capx.TypePage, 0, uint32(newCount), 0, 60)
	prepared, prepHdr, err = cache.Prepare(freshCap)
	require.NoError(t, err)
	assert.False(t, prepared.IsNull())
	assert.Same(t, hdr, prepHdr)
}

func TestDiscrimClassifyAndCompare(t *testing.T) {
	cache := newTestCache(t)
	a := capx.NewOIDCapability(capx.TypePage, capx.RestrReadOnly, 1, 0, 1)
	b := capx.NewOIDCapability(capx.TypePage, 0, 1, 0, 1)

	ctx := &invoke.Context{
		Cache: cache,
		Params: &invoke.InvParameterBlock{
			DataWords: [invoke.MaxDataWords]uint64{uint64(opClassify)},
		},
		ResolveCap: func(loc invoke.CapLocation) (capx.Capability, invoke.Result) {
			return a, invoke.OK
		},
	}
	result := invokeHandler(DiscrimHandler{}, ctx)
	require.Equal(t, invoke.OK, result)
	assert.Equal(t, uint64(capx.TypePage), ctx.Reply.DataWords[0])
	assert.Equal(t, uint64(capx.RestrReadOnly), ctx.Reply.DataWords[1])

	ctx.Params.DataWords[0] = uint64(opCompare)
	ctx.Params.SendCapLocs[1] = invoke.CapLocation{Kind: invoke.CapLocReg, Reg: 1}
	ctx.ResolveCap = func(loc invoke.CapLocation) (capx.Capability, invoke.Result) {
		if loc.Reg == 1 {
			return b, invoke.OK
		}
		return a, invoke.OK
	}
	ctx.Reply = invoke.Reply{}
	result = invokeHandler(DiscrimHandler{}, ctx)
	require.Equal(t, invoke.OK, result)
	assert.Equal(t, uint64(1), ctx.Reply.DataWords[0])
}

func TestSleepTillParksInvoker(t *testing.T) {
	cache := newTestCache(t)
	procHdr := allocHeader(t, cache, capx.TypeProcess, 60)

	ctx := &invoke.Context{
		InvokerOID: 60,
		Invoker:    procHdr,
		Sleep:      sched.NewSleepQueue(),
		Params: &invoke.InvParameterBlock{
			DataWords: [invoke.MaxDataWords]uint64{uint64(opSleepTill), 1000},
		},
	}
	result := invokeHandler(SleepHandler{}, ctx)
	require.Equal(t, invoke.OK, result)
	pf, _ := procHdr.Process()
	assert.Equal(t, objcache.RunFaulted, pf.RunState)
	woken := ctx.Sleep.IntervalWakeup(1000)
	require.Len(t, woken, 1)
	assert.Equal(t, sched.ProcOID(60), woken[0])
}

func TestIrqWaitUnmasksAndReportsPending(t *testing.T) {
	irq := sched.NewIRQTable()
	irq.SetPending(5, true)

	ctx := &invoke.Context{
		InvokerOID: 1,
		IRQ:        irq,
		Target:     capx.NewNonObjectCapability(capx.TypeIrqWait, 0, 0, 5, 0),
		Params: &invoke.InvParameterBlock{
			DataWords: [invoke.MaxDataWords]uint64{uint64(opIrqWait)},
		},
	}
	result := invokeHandler(IrqWaitHandler{}, ctx)
	require.Equal(t, invoke.OK, result)
	assert.False(t, irq.Pending(5))
	assert.False(t, irq.Masked(5))
}

func TestKernLogEmits(t *testing.T) {
	ctx := &invoke.Context{
		InvokerOID: 1,
		Params: &invoke.InvParameterBlock{
			DataWords: [invoke.MaxDataWords]uint64{uint64(opKernLogLog)},
		},
	}
	msg := []byte("hello kernel")
	for i, b := range msg {
		idx := 1 + i/8
		shift := uint(i%8) * 8
		ctx.Params.DataWords[idx] |= uint64(b) << shift
	}
	result := invokeHandler(KernLogHandler{}, ctx)
	require.Equal(t, invoke.OK, result)
}

func TestCapBitsGetBits(t *testing.T) {
	arg := capx.NewOIDCapability(capx.TypePage, capx.RestrReadOnly, 3, 0, 77)
	ctx := &invoke.Context{
		Params: &invoke.InvParameterBlock{
			DataWords: [invoke.MaxDataWords]uint64{uint64(opGetCapBits)},
		},
		ResolveCap: func(loc invoke.CapLocation) (capx.Capability, invoke.Result) {
			return arg, invoke.OK
		},
	}
	result := invokeHandler(CapBitsHandler{}, ctx)
	require.Equal(t, invoke.OK, result)
	assert.Equal(t, uint64(77), ctx.Reply.DataWords[1])
}

func TestSysCtlHaltReportsOK(t *testing.T) {
	ctx := &invoke.Context{
		Params: &invoke.InvParameterBlock{
			DataWords: [invoke.MaxDataWords]uint64{uint64(opSysCtlHalt)},
		},
	}
	result := invokeHandler(SysCtlHandler{}, ctx)
	require.Equal(t, invoke.OK, result)
}
