package capx

// OTE is an object-table entry, per spec.md §3.3: it carries an OID, a
// destroyed flag, and a mark bit for GC. A capability's view of identity
// is the OTE pointer recorded at swizzling time; preparing against a
// differing OTE is how the engine detects a stale capability.
type OTE struct {
	OID       uint64
	Destroyed bool
	Mark      bool

	// NeedsUpgrade models the low-bit tag on the source's OTE pointer:
	// the object is on the check aging list and must be upgraded back to
	// active on next prepare.
	NeedsUpgrade bool
}
