package objcache

import (
	"container/list"

	"github.com/vsrinivas/coyotos/kernel/capx"
)

// ObFrameCache holds the three age lists for one object type, per
// spec.md §3.4: active, check, reclaim. Movement between lists models a
// second-chance reference tracker: active -> check asks the HAL to start
// observing whether the frame is touched; the next scan classifies it
// back into active (upgrade) or onward to reclaim. When reclaim is
// chosen, the underlying OTE is marked destroyed so dangling swizzled
// capabilities are recognized as stale on next use.
type ObFrameCache struct {
	typ capx.Type

	active  list.List
	check   list.List
	reclaim list.List

	touchedFn func(*Header) bool // HAL "was this frame touched" query, set by Cache
}

func newObFrameCache(typ capx.Type) *ObFrameCache {
	c := &ObFrameCache{typ: typ}
	c.active.Init()
	c.check.Init()
	c.reclaim.Init()
	return c
}

func listFor(c *ObFrameCache, which AgingList) *list.List {
	switch which {
	case ListActive:
		return &c.active
	case ListCheck:
		return &c.check
	case ListReclaim:
		return &c.reclaim
	default:
		return nil
	}
}

// insert places h onto list `which`, assumed not currently a member of
// any aging list.
func (c *ObFrameCache) insert(h *Header, which AgingList) {
	l := listFor(c, which)
	h.agingElem = l.PushBack(h)
	h.agingList = which
}

// move transfers h from its current list to `which`.
func (c *ObFrameCache) move(h *Header, which AgingList) {
	if h.agingElem != nil {
		listFor(c, h.agingList).Remove(h.agingElem)
		h.agingElem = nil
	}
	c.insert(h, which)
}

// remove detaches h from whichever aging list it currently occupies.
func (c *ObFrameCache) remove(h *Header) {
	if h.agingElem == nil {
		return
	}
	listFor(c, h.agingList).Remove(h.agingElem)
	h.agingElem = nil
	h.agingList = ListNone
}

// counts reports the current size of each list.
func (c *ObFrameCache) counts() (active, check, reclaim int) {
	return c.active.Len(), c.check.Len(), c.reclaim.Len()
}

// scanCheckList runs one check -> {active | reclaim} pass, per spec.md
// §3.4: frames found touched since entering the check list are upgraded
// back to active; frames found untouched are demoted to reclaim and have
// their OTE marked destroyed.
func (c *ObFrameCache) scanCheckList(markDestroyed func(h *Header)) (upgraded, reclaimed int) {
	var next *list.Element
	for e := c.check.Front(); e != nil; e = next {
		next = e.Next()
		h := e.Value.(*Header)

		if c.touchedFn != nil && c.touchedFn(h) {
			c.move(h, ListActive)
			upgraded++
			continue
		}

		c.move(h, ListReclaim)
		if markDestroyed != nil {
			markDestroyed(h)
		}
		reclaimed++
	}
	return upgraded, reclaimed
}

// popReclaim removes and returns the front of the reclaim list, or nil if
// it is empty.
func (c *ObFrameCache) popReclaim() *Header {
	e := c.reclaim.Front()
	if e == nil {
		return nil
	}
	h := e.Value.(*Header)
	c.remove(h)
	return h
}

// sweepUnmarked demotes every active/check frame whose OTE was not
// marked live (via Cache.MarkLive) since the last GC pass straight to
// reclaim, per spec.md §4.1's GC contract. Frames with no OTE yet (never
// swizzled) are left alone -- GC only reclaims objects that have at some
// point been referenced by a swizzled capability.
func (c *ObFrameCache) sweepUnmarked(markDestroyed func(h *Header)) int {
	reclaimed := 0
	for _, src := range []*list.List{&c.active, &c.check} {
		var next *list.Element
		for e := src.Front(); e != nil; e = next {
			next = e.Next()
			h := e.Value.(*Header)
			if h.OTEPtr == nil || h.OTEPtr.Mark {
				continue
			}
			c.move(h, ListReclaim)
			if markDestroyed != nil {
				markDestroyed(h)
			}
			reclaimed++
		}
	}
	return reclaimed
}

// demoteOneActive moves the oldest active frame to the check list,
// beginning the second-chance observation window described in
// spec.md §3.4. Returns false if the active list is empty.
func (c *ObFrameCache) demoteOneActive() bool {
	e := c.active.Front()
	if e == nil {
		return false
	}
	h := e.Value.(*Header)
	c.move(h, ListCheck)
	return true
}
