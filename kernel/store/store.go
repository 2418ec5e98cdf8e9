// Package store provides the backing-store half of the object cache's
// load/write-back path (spec.md §4.2): a frame not currently resident is
// fetched from, or flushed to, a one-file-per-object store. Grounded on
// nestybox-sysbox-libs/utils's appFs = afero.NewOsFs() pattern, which
// lets production code talk to the real filesystem while tests swap in
// afero.NewMemMapFs().
package store

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// Frame is the subset of objcache.Header that a Store needs to
// (de)serialize; objcache.Header implements it via Serialize/Deserialize.
// Kept as an interface here, rather than importing objcache directly, to
// avoid a store<->objcache import cycle (objcache imports store, not the
// reverse).
type Frame interface {
	SerializeFrame(w io.Writer) error
	DeserializeFrame(r io.Reader) error
}

// Store is the object cache's backing-store boundary.
type Store interface {
	// Load deserializes the frame for (typ, oid) into dst. It returns an
	// error satisfying IsNotFound if no such object has ever been
	// stored.
	Load(typ uint8, oid uint64, dst Frame) error
	// Store serializes src as the frame for (typ, oid).
	Store(typ uint8, oid uint64, src Frame) error
}

// FSStore is the default Store, one file per object under root, named
// "<type>/<oid-hex>". Grounded on the afero.NewOsFs()/afero.NewMemMapFs()
// pattern from nestybox-sysbox-libs/utils.
type FSStore struct {
	fs   afero.Fs
	root string
}

// NewFSStore returns a Store rooted at root, backed by fs. Production
// callers pass afero.NewOsFs(); tests pass afero.NewMemMapFs().
func NewFSStore(fs afero.Fs, root string) *FSStore {
	return &FSStore{fs: fs, root: root}
}

func (s *FSStore) path(typ uint8, oid uint64) string {
	return filepath.Join(s.root, fmt.Sprintf("%02x", typ), fmt.Sprintf("%016x", oid))
}

func (s *FSStore) Load(typ uint8, oid uint64, dst Frame) error {
	f, err := s.fs.Open(s.path(typ, oid))
	if err != nil {
		if os.IsNotExist(err) {
			return errors.Wrapf(errNotFound, "store: load type=%d oid=%#x", typ, oid)
		}
		return errors.Wrapf(err, "store: load type=%d oid=%#x", typ, oid)
	}
	defer f.Close()
	return dst.DeserializeFrame(f)
}

func (s *FSStore) Store(typ uint8, oid uint64, src Frame) error {
	dir := filepath.Join(s.root, fmt.Sprintf("%02x", typ))
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "store: mkdir %s", dir)
	}
	f, err := s.fs.Create(s.path(typ, oid))
	if err != nil {
		return errors.Wrapf(err, "store: create type=%d oid=%#x", typ, oid)
	}
	defer f.Close()
	return src.SerializeFrame(f)
}

type notFoundError struct{}

func (notFoundError) Error() string { return "store: object not found" }

var errNotFound = notFoundError{}

// IsNotFound reports whether err (or its wrapped cause) indicates the
// requested object has never been stored.
func IsNotFound(err error) bool {
	_, ok := errors.Cause(err).(notFoundError)
	return ok
}

// byteOrder is the boot-image and on-disk frame byte order, per
// SPEC_FULL.md §3.7: little-endian always, regardless of host
// architecture, matching the Open Question resolution in DESIGN.md.
var byteOrder = binary.LittleEndian
