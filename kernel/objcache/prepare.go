package objcache

import (
	"github.com/vsrinivas/coyotos/kernel/capx"
)

// typeForObjectCap maps a capability's object type to the ObFrameCache/
// frame type it prepares against. Only object-class capabilities (per
// capx.Type.IsObjectType) ever reach here; spec.md §3.1 guarantees
// Entry/AppInt/AppNotice/Schedule share the Process frame's lifetime so
// they are not modeled as distinct cache types here.
func typeForObjectCap(t capx.Type) (capx.Type, bool) {
	switch t {
	case capx.TypePage, capx.TypeCapPage, capx.TypeGPT, capx.TypeProcess, capx.TypeEndpoint:
		return t, true
	default:
		return 0, false
	}
}

// Prepare implements spec.md §4.1's Prepare operation: non-object types
// succeed trivially (there is nothing to swizzle); a capability that is
// already swizzled against a live, matching OTE succeeds without taking
// any lock; a swizzled capability whose OTE has gone stale (destroyed, or
// AllocCount mismatch) is rewritten back to its OID form, or nulled if the
// object is gone for good; an unswizzled capability is resolved through
// the object hash (loading from the backing store if necessary) and
// re-swizzled.
//
// Prepare never takes the target header's lock; call PrepAndLock for
// that. It returns the possibly-rewritten capability and the resident
// header when the capability denotes a resident object (nil otherwise).
func (c *Cache) Prepare(cap capx.Capability) (capx.Capability, *Header, error) {
	typ := cap.Type()
	if !typ.IsObjectType() {
		return cap, nil, nil
	}

	frameTyp, ok := typeForObjectCap(typ)
	if !ok {
		return cap, nil, nil
	}

	if cap.Swizzled() {
		ote := cap.OTE()
		if ote == nil || ote.Destroyed {
			return capx.Null, nil, nil
		}
		h, ok := c.Lookup(frameTyp, ote.OID)
		if !ok {
			// The OTE survived but its frame has been reclaimed
			// without the OTE being marked destroyed: treat as
			// stale and fall back to the OID path below.
			return c.prepareFromOID(typ, cap)
		}
		return cap, h, nil
	}

	return c.prepareFromOID(typ, cap)
}

func (c *Cache) prepareFromOID(typ capx.Type, cap capx.Capability) (capx.Capability, *Header, error) {
	frameTyp, _ := typeForObjectCap(typ)
	oid := cap.OID()

	if destroyed, known := c.DestroyedOTE(oid); known && destroyed {
		return capx.Null, nil, nil
	}

	h, err := c.Load(frameTyp, oid)
	if err != nil {
		return cap, nil, err
	}
	if h.AllocCount != 0 && cap.AllocCount() != 0 && h.AllocCount != cap.AllocCount() {
		// Stale: the OID has been recycled under our feet since this
		// capability was minted.
		return capx.Null, nil, nil
	}

	ote := c.OTEFor(oid)
	h.OTEPtr = ote
	swizzled := capx.NewOIDCapability(typ, cap.Restrictions(), cap.AllocCount(), cap.Payload(), oid).Swizzle(ote)
	return swizzled, h, nil
}

// PrepAndLock is Prepare followed by taking the resulting header's lock,
// per spec.md §4.1: "Prepare, then lock" is the standard sequence at the
// top of every opcode handler that touches object state. The caller must
// call h.Unlock() exactly once, and only if ok is true.
func (c *Cache) PrepAndLock(cap capx.Capability) (resolved capx.Capability, h *Header, ok bool, err error) {
	resolved, h, err = c.Prepare(cap)
	if err != nil {
		return resolved, nil, false, err
	}
	if h == nil {
		return resolved, nil, false, nil
	}
	h.Lock()
	return resolved, h, true, nil
}

// Deprepare reverses swizzling for a capability about to be written back
// to a CapPage, Process capability register file, or the backing store:
// it replaces the in-memory OTE pointer with the plain OID form, per
// spec.md §4.1. Non-swizzled and non-object capabilities are returned
// unchanged.
func (c *Cache) Deprepare(cap capx.Capability) capx.Capability {
	if !cap.Swizzled() {
		return cap
	}
	ote := cap.OTE()
	if ote == nil {
		return capx.Null
	}
	return capx.NewOIDCapability(cap.Type(), cap.Restrictions(), cap.AllocCount(), cap.Payload(), ote.OID)
}

// GC performs one mark-and-sweep pass over the object cache's aging
// lists, per spec.md §4.1's GC contract: roots reachable from still-live
// capabilities are marked via MarkLive before GC is called; any header
// not marked is demoted from active/check straight to reclaim and its OTE
// is flagged destroyed. GC clears all marks before returning so the next
// pass starts clean.
func (c *Cache) GC() (reclaimed int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, ofc := range c.byType {
		reclaimed += ofc.sweepUnmarked(c.markOTEDestroyedLocked)
	}
	for _, ote := range c.otes {
		ote.Mark = false
	}
	return reclaimed
}

// MarkLive marks the header backing cap (if any) as reachable for the
// current GC pass.
func (c *Cache) MarkLive(cap capx.Capability) {
	if !cap.Swizzled() {
		return
	}
	if ote := cap.OTE(); ote != nil {
		ote.Mark = true
	}
}
