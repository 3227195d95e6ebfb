// Package store holds the analysis state of open documents.
//
// Each URI maps to an immutable Document. Writers build a new Document and
// publish it with Put, which swaps in a fresh copy of the URI map; readers
// take a Snapshot and never observe a half-applied update. Updates to one
// URI are serialised with Lock; distinct URIs proceed independently.
package store

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/tsls/internal/diagnostics"
	"github.com/jward/tsls/internal/index"
)

var (
	// ErrDocumentNotFound is returned when a URI has no open document.
	ErrDocumentNotFound = errors.New("document not found")

	// ErrStaleEdit is returned when a change carries a version no newer
	// than the stored one.
	ErrStaleEdit = errors.New("stale edit")
)

// Document is the state of one open document at one version. A Document is
// never modified after it has been published.
type Document struct {
	URI        string
	LanguageID string
	Version    int32
	Source     []byte
	Tree       *sitter.Tree
	Hash       string

	Index       *index.Index
	Diagnostics []diagnostics.Diagnostic
	Keywords    []string
}

// Root returns the root node of the document's tree.
func (d *Document) Root() *sitter.Node {
	if d.Tree == nil {
		return nil
	}
	return d.Tree.RootNode()
}

type docMap = map[string]*Document

// Store is safe for concurrent use.
type Store struct {
	docs atomic.Pointer[docMap]

	// locksMu guards only the locks map, never a document update.
	locksMu sync.Mutex
	locks   map[string]*uriLock
}

// uriLock is dropped from Store.locks once nobody holds or waits on it.
type uriLock struct {
	mu   sync.Mutex
	refs int
}

// New returns an empty store.
func New() *Store {
	s := &Store{locks: make(map[string]*uriLock)}
	empty := make(docMap)
	s.docs.Store(&empty)
	return s
}

// Lock acquires the update lock for uri and returns its release function.
// The lock is forgotten when its last holder releases it, so closed URIs do
// not accumulate.
func (s *Store) Lock(uri string) (unlock func()) {
	s.locksMu.Lock()
	l, ok := s.locks[uri]
	if !ok {
		l = &uriLock{}
		s.locks[uri] = l
	}
	l.refs++
	s.locksMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.locksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, uri)
		}
		s.locksMu.Unlock()
	}
}

// lockCount returns the number of URIs with a held or awaited lock.
func (s *Store) lockCount() int {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	return len(s.locks)
}

// Get returns the current document for uri.
func (s *Store) Get(uri string) (*Document, bool) {
	doc, ok := (*s.docs.Load())[uri]
	return doc, ok
}

// Put publishes doc as the current state of doc.URI.
func (s *Store) Put(doc *Document) {
	s.update(func(m docMap) bool {
		m[doc.URI] = doc
		return true
	})
}

// Delete removes uri and reports whether it was present.
func (s *Store) Delete(uri string) bool {
	return s.update(func(m docMap) bool {
		if _, ok := m[uri]; !ok {
			return false
		}
		delete(m, uri)
		return true
	})
}

// update applies fn to a copy of the current map and publishes the copy if
// fn reports a change, retrying when another writer published first.
func (s *Store) update(fn func(docMap) bool) bool {
	for {
		old := s.docs.Load()
		next := make(docMap, len(*old)+1)
		for k, v := range *old {
			next[k] = v
		}
		if !fn(next) {
			return false
		}
		if s.docs.CompareAndSwap(old, &next) {
			return true
		}
	}
}

// Snapshot returns a read-only view of every document as of now.
func (s *Store) Snapshot() *Snapshot {
	return &Snapshot{docs: *s.docs.Load()}
}

// Snapshot is an immutable view of the store at one instant.
type Snapshot struct {
	docs docMap
}

// Get returns the document for uri in this snapshot.
func (sn *Snapshot) Get(uri string) (*Document, bool) {
	doc, ok := sn.docs[uri]
	return doc, ok
}

// URIs returns the URIs in the snapshot, sorted.
func (sn *Snapshot) URIs() []string {
	uris := make([]string, 0, len(sn.docs))
	for uri := range sn.docs {
		uris = append(uris, uri)
	}
	sort.Strings(uris)
	return uris
}

// Documents returns the documents in the snapshot ordered by URI.
func (sn *Snapshot) Documents() []*Document {
	uris := sn.URIs()
	docs := make([]*Document, len(uris))
	for i, uri := range uris {
		docs[i] = sn.docs[uri]
	}
	return docs
}

// Len returns the number of documents in the snapshot.
func (sn *Snapshot) Len() int { return len(sn.docs) }

// ContentHash returns the hex SHA-256 of src.
func ContentHash(src []byte) string {
	return fmt.Sprintf("%x", sha256.Sum256(src))
}
