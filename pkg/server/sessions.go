package server

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/efortin/vllm-toolparser/pkg/pythonic"
	"github.com/efortin/vllm-toolparser/pkg/toolcall"
)

// ErrSessionNotFound is returned for unknown or evicted session IDs
var ErrSessionNotFound = errors.New("session not found")

// SessionObserver is notified when sessions open and close
type SessionObserver interface {
	SessionOpened()
	SessionClosed(evicted bool)
}

// Session is one streaming parse. The incremental parser is single-owner, so
// every access goes through mu.
type Session struct {
	ID      string
	Created time.Time

	mu      sync.Mutex
	parser  *pythonic.IncrementalParser
	deleted atomic.Bool
}

// Feed appends a chunk, or a whole-output snapshot when snapshot is set
func (s *Session) Feed(text string, snapshot bool) ([]toolcall.ToolCall, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if snapshot {
		return s.parser.ParseText(text)
	}
	return s.parser.ParseChunk(text)
}

// Finish flushes the pending calls
func (s *Session) Finish() []toolcall.ToolCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.parser.Finish()
}

// Calls returns every call released so far along with the parser state
func (s *Session) Calls() ([]toolcall.ToolCall, pythonic.State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.parser.ParsedFunctions(), s.parser.State()
}

// SessionStore keeps streaming sessions in a bounded LRU cache. When full,
// the least recently used session is evicted.
type SessionStore struct {
	cache    *lru.Cache[string, *Session]
	opts     pythonic.Options
	observer SessionObserver
	debug    bool
}

// NewSessionStore creates a store holding at most size sessions. observer
// may be nil.
func NewSessionStore(size int, opts pythonic.Options, observer SessionObserver) (*SessionStore, error) {
	if size < 1 {
		return nil, fmt.Errorf("session store size must be positive, got %d", size)
	}
	store := &SessionStore{opts: opts, observer: observer, debug: opts.Debug}
	cache, err := lru.NewWithEvict[string, *Session](size, store.onEvict)
	if err != nil {
		return nil, fmt.Errorf("create session cache: %w", err)
	}
	store.cache = cache
	return store, nil
}

// onEvict runs for explicit deletes as well as capacity evictions
func (st *SessionStore) onEvict(id string, s *Session) {
	evicted := !s.deleted.Load()
	if evicted && st.debug {
		log.Printf("[SERVER] Session %s evicted after %s", id, time.Since(s.Created).Round(time.Millisecond))
	}
	if st.observer != nil {
		st.observer.SessionClosed(evicted)
	}
}

// Create opens a new session and returns it
func (st *SessionStore) Create() *Session {
	s := &Session{
		ID:      uuid.NewString(),
		Created: time.Now(),
		parser:  pythonic.NewIncrementalParser(st.opts),
	}
	if st.observer != nil {
		st.observer.SessionOpened()
	}
	st.cache.Add(s.ID, s)
	return s
}

// Get looks a session up and marks it as recently used
func (st *SessionStore) Get(id string) (*Session, error) {
	s, ok := st.cache.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return s, nil
}

// Delete drops a session
func (st *SessionStore) Delete(id string) error {
	s, ok := st.cache.Peek(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	s.deleted.Store(true)
	st.cache.Remove(id)
	return nil
}

// Len returns the number of live sessions
func (st *SessionStore) Len() int {
	return st.cache.Len()
}
