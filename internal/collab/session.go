package collab

import (
	"errors"
	"sync"
	"time"

	"github.com/isocanvas/isocanvas/internal/document"
	"github.com/isocanvas/isocanvas/internal/ops"
	"github.com/isocanvas/isocanvas/internal/store"
)

var ErrReadOnly = errors.New("editing requires an edit token")

// Session holds the authoritative store of one live scene. Every operation
// runs through a store action under the session lock, so remote edits get
// the same validation as local ones.
type Session struct {
	mu        sync.Mutex
	scene     document.Scene
	store     *store.Store
	serverSeq int64
	dirty     bool
}

// NewSession loads doc into a fresh store built from opts.
func NewSession(doc *document.Document, opts store.Options) (*Session, error) {
	s, err := doc.NewStore(opts)
	if err != nil {
		return nil, err
	}
	sess := &Session{scene: doc.Scene, store: s}
	s.Subscribe(sess.observe)
	return sess, nil
}

func (s *Session) observe(c store.Change) {
	switch c.Kind {
	case store.ChangeObjectCreated, store.ChangeObjectUpdated,
		store.ChangeObjectRemoved, store.ChangeObjectsCleared:
		s.dirty = true
	}
}

// Apply validates and applies op. On success it returns the new server
// sequence number; for object.create op.ObjectID is set to the new id.
func (s *Session) Apply(op *ops.Operation) (int64, error) {
	return s.Commit(op, nil)
}

// Commit is Apply with a publish step. publish runs with the new sequence
// number before the session lock is released, so whatever it enqueues is
// ordered by sequence number across concurrent submitters.
func (s *Session) Commit(op *ops.Operation, publish func(seq int64)) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ops.Apply(s.store, op); err != nil {
		return 0, err
	}
	s.serverSeq++
	if publish != nil {
		publish(s.serverSeq)
	}
	return s.serverSeq, nil
}

// Replace swaps the session's objects for those of doc. Nothing changes if
// doc does not load. publish, if set, receives the new document under the
// session lock.
func (s *Session) Replace(doc *document.Document, publish func(*document.Document, int64)) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := doc.ApplyTo(s.store); err != nil {
		return 0, err
	}
	s.scene.Name = doc.Scene.Name
	s.scene.Background = doc.Scene.Background
	s.serverSeq++
	if publish != nil {
		publish(document.FromStore(s.scene, s.store), s.serverSeq)
	}
	return s.serverSeq, nil
}

// Document captures the canonical scene and the sequence it reflects.
func (s *Session) Document() (*document.Document, int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return document.FromStore(s.scene, s.store), s.serverSeq
}

// Sync runs fn with the current document while holding the session lock.
// Nothing is committed until fn returns.
func (s *Session) Sync(fn func(doc *document.Document, seq int64)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(document.FromStore(s.scene, s.store), s.serverSeq)
}

// Unsaved reports whether objects changed since the last MarkSaved.
func (s *Session) Unsaved() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// MarkSaved records that the state at seq has been persisted. Operations
// applied after seq keep the session unsaved.
func (s *Session) MarkSaved(seq int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seq == s.serverSeq {
		s.dirty = false
	}
}

// nackCode classifies an Apply error for clients.
func nackCode(err error) string {
	if errors.Is(err, ErrReadOnly) {
		return "read_only"
	}
	return ops.Code(err)
}

// GetServerTimestamp returns the current server timestamp
func GetServerTimestamp() int64 {
	return time.Now().UnixMilli()
}
