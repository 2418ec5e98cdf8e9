// Package image decodes the boot image format described in SPEC_FULL.md
// §3.7/§6.2: a fixed CoyImgHdr header (magic "coyimage", version, target
// id, page size, frame count) followed by a sequence of per-object
// entries, each seeding one object-cache frame.
//
// Grounded on the teacher's hal/multiboot fixed-header-then-tagged-region
// parsing idiom, simplified here because every per-type frame payload
// has a statically known wire size (objcache.Header.DeserializeFrame
// already knows how many bytes to read once the frame's type is known),
// so entries need no explicit length field of their own.
package image

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"

	"github.com/vsrinivas/coyotos/kernel/capx"
	"github.com/vsrinivas/coyotos/kernel/objcache"
)

// Magic is the fixed 8-byte identifier at the start of every boot image.
var Magic = [8]byte{'c', 'o', 'y', 'i', 'm', 'a', 'g', 'e'}

// byteOrder matches kernel/store and kernel/objcache's on-disk
// convention: little-endian always, regardless of host architecture.
var byteOrder = binary.LittleEndian

// CoyImgHdr is the fixed header at the start of a boot image.
type CoyImgHdr struct {
	Magic      [8]byte
	Version    uint32
	TargetID   uint32
	PageSize   uint32
	NumFrames  uint32
	StartOID   uint64
}

// entryHeader precedes each frame's serialized payload in the image.
type entryHeader struct {
	Type       uint8
	_          [7]byte
	OID        uint64
	AllocCount uint32
	_          uint32
}

// ErrBadMagic is returned by Load when the image's magic bytes do not
// match Magic.
var ErrBadMagic = errors.New("image: bad magic")

// Load reads a boot image from r, allocating and installing one
// object-cache frame per entry into cache. It returns the decoded
// header (useful for cross-checking PageSize against the HAL's own page
// size) and the first error encountered.
func Load(r io.Reader, cache *objcache.Cache) (CoyImgHdr, error) {
	var hdr CoyImgHdr
	if err := binary.Read(r, byteOrder, &hdr); err != nil {
		return hdr, errors.Wrap(err, "image: read header")
	}
	if hdr.Magic != Magic {
		return hdr, ErrBadMagic
	}

	for i := uint32(0); i < hdr.NumFrames; i++ {
		var eh entryHeader
		if err := binary.Read(r, byteOrder, &eh); err != nil {
			return hdr, errors.Wrapf(err, "image: read entry header %d", i)
		}

		typ := capx.Type(eh.Type)
		frameHdr, err := cache.Alloc(typ)
		if err != nil {
			return hdr, errors.Wrapf(err, "image: alloc entry %d (type=%d oid=%#x)", i, eh.Type, eh.OID)
		}
		frameHdr.OID = eh.OID
		frameHdr.AllocCount = eh.AllocCount
		frameHdr.SetFlags(objcache.FlagCurrent)

		if err := frameHdr.DeserializeFrame(r); err != nil {
			return hdr, errors.Wrapf(err, "image: deserialize entry %d (type=%d oid=%#x)", i, eh.Type, eh.OID)
		}
		cache.Install(frameHdr)
	}

	return hdr, nil
}
