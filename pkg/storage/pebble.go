package storage

import (
	"io"

	"github.com/cockroachdb/pebble"
)

// Reader is the ordered read surface the book needs: point gets plus
// ascending/descending range scans with bound cursors. Both *pebble.DB and
// an indexed *pebble.Batch satisfy it.
type Reader interface {
	Get(key []byte) ([]byte, io.Closer, error)
	NewIter(o *pebble.IterOptions) (*pebble.Iterator, error)
}

// Writer adds point set/delete. Engine operations only ever mutate through
// a Writer backed by an indexed batch, so one operation commits atomically.
type Writer interface {
	Reader
	Set(key, value []byte, opts *pebble.WriteOptions) error
	Delete(key []byte, opts *pebble.WriteOptions) error
}

var (
	_ Writer = (*pebble.DB)(nil)
	_ Writer = (*pebble.Batch)(nil)
)

// Store owns the pebble database backing all order books.
type Store struct {
	db *pebble.DB
}

func Open(path string) (*Store, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Update runs fn against an indexed batch with read-your-writes semantics
// and commits only if fn succeeds. On error the batch is discarded, so a
// failing operation leaves no partial state behind.
func (s *Store) Update(fn func(w Writer) error) error {
	b := s.db.NewIndexedBatch()
	if err := fn(b); err != nil {
		_ = b.Close()
		return err
	}
	return b.Commit(pebble.Sync)
}

// View runs fn against the live database for read-only operations.
func (s *Store) View(fn func(r Reader) error) error {
	return fn(s.db)
}

// get reads key and copies the value out before releasing pebble's closer.
func get(r Reader, key []byte) ([]byte, bool, error) {
	val, closer, err := r.Get(key)
	if err == pebble.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	out := make([]byte, len(val))
	copy(out, val)
	if err := closer.Close(); err != nil {
		return nil, false, err
	}
	return out, true, nil
}

// keyUpperBound returns the exclusive upper bound for a prefix scan.
func keyUpperBound(prefix []byte) []byte {
	bound := make([]byte, len(prefix))
	copy(bound, prefix)
	for i := len(bound) - 1; i >= 0; i-- {
		if bound[i] < 0xff {
			bound[i]++
			return bound[:i+1]
		}
	}
	return nil // unbounded
}

// keySuccessor returns the smallest key strictly greater than k.
func keySuccessor(k []byte) []byte {
	next := make([]byte, len(k)+1)
	copy(next, k)
	return next
}
