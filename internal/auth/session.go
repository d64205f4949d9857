package auth

import (
	"maps"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/sessions"
	"github.com/rs/xid"
)

// SessionName is the cookie name that carries the signed session id.
const SessionName = "ecosphere_session"

// Keys of the values kept per session.
const (
	keyUserID     = "userId"
	keyLoggedIn   = "loggedIn"
	keyLikedPosts = "likedPosts"
	keyTempID     = "tempGoogleId"
	keyTempName   = "tempName"
)

// sweepEvery controls how often Save also purges expired entries.
const sweepEvery = 256

// compile-time check that *MemoryStore implements sessions.Store
var _ sessions.Store = (*MemoryStore)(nil)

// MemoryStore is a gorilla/sessions Store that keeps session values in
// process memory and gives the browser only a signed session id.
//
// Sessions don't survive a restart, and the store is not shared between
// processes. Entries expire after the cookie's MaxAge; expired entries are
// dropped when they are next looked up, and in bulk every sweepEvery saves.
//
// Concurrent requests of the same session each work on their own copy of
// the values; whichever saves last wins.
type MemoryStore struct {
	Options *sessions.Options

	tokens *TokenService
	now    func() time.Time

	mu      sync.RWMutex
	entries map[string]memoryEntry
	saves   int
}

type memoryEntry struct {
	values  map[any]any
	expires time.Time
}

// NewMemoryStore creates a store whose sessions last ttl.
func NewMemoryStore(tokens *TokenService, ttl time.Duration, secure bool) *MemoryStore {
	return &MemoryStore{
		Options: &sessions.Options{
			Path:     "/",
			MaxAge:   int(ttl / time.Second),
			HttpOnly: true,
			Secure:   secure,
			SameSite: http.SameSiteLaxMode,
		},
		tokens:  tokens,
		now:     time.Now,
		entries: make(map[string]memoryEntry),
	}
}

// Get returns the session for name, cached per request by the gorilla
// registry so middleware and handlers see the same instance.
func (m *MemoryStore) Get(r *http.Request, name string) (*sessions.Session, error) {
	return sessions.GetRegistry(r).Get(m, name)
}

// New loads the session referenced by the request cookie. A missing,
// forged, or expired cookie yields a fresh empty session, not an error.
func (m *MemoryStore) New(r *http.Request, name string) (*sessions.Session, error) {
	s := sessions.NewSession(m, name)
	opts := *m.Options
	s.Options = &opts
	s.IsNew = true

	c, err := r.Cookie(name)
	if err != nil {
		return s, nil
	}

	id, err := m.tokens.Verify(c.Value)
	if err != nil {
		return s, nil
	}

	values, ok := m.load(id)
	if !ok {
		return s, nil
	}

	s.ID = id
	s.Values = values
	s.IsNew = false
	return s, nil
}

// Save stores the session values and refreshes the cookie. A negative
// MaxAge deletes the entry and expires the cookie.
func (m *MemoryStore) Save(r *http.Request, w http.ResponseWriter, s *sessions.Session) error {
	if s.Options.MaxAge < 0 {
		if s.ID != "" {
			m.delete(s.ID)
		}
		http.SetCookie(w, sessions.NewCookie(s.Name(), "", s.Options))
		return nil
	}

	if s.ID == "" {
		s.ID = xid.New().String()
	}

	ttl := time.Duration(s.Options.MaxAge) * time.Second
	if ttl == 0 {
		ttl = time.Duration(m.Options.MaxAge) * time.Second
	}

	token, err := m.tokens.Sign(s.ID, ttl)
	if err != nil {
		return err
	}

	m.store(s.ID, s.Values, ttl)
	http.SetCookie(w, sessions.NewCookie(s.Name(), token, s.Options))
	return nil
}

// Len reports the number of stored sessions, expired or not.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func (m *MemoryStore) load(id string) (map[any]any, bool) {
	m.mu.RLock()
	e, ok := m.entries[id]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}

	if !m.now().Before(e.expires) {
		m.delete(id)
		return nil, false
	}

	return copyValues(e.values), true
}

func (m *MemoryStore) store(id string, values map[any]any, ttl time.Duration) {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[id] = memoryEntry{values: copyValues(values), expires: now.Add(ttl)}

	m.saves++
	if m.saves%sweepEvery == 0 {
		for k, e := range m.entries {
			if !now.Before(e.expires) {
				delete(m.entries, k)
			}
		}
	}
}

func (m *MemoryStore) delete(id string) {
	m.mu.Lock()
	delete(m.entries, id)
	m.mu.Unlock()
}

// copyValues clones the value map and the liked-post slice so a request
// can't mutate what another request reads.
func copyValues(in map[any]any) map[any]any {
	out := maps.Clone(in)
	if out == nil {
		out = make(map[any]any)
	}
	if liked, ok := out[keyLikedPosts].([]int64); ok {
		out[keyLikedPosts] = slices.Clone(liked)
	}
	return out
}

// Session is the request-scoped view of a user's session with typed
// accessors over the raw gorilla values.
//
// A session moves Anonymous → PendingRegistration (after a Google login
// with no matching account) → Authenticated → Anonymous (logout or
// account deletion).
type Session struct {
	raw *sessions.Session
}

// NewSession wraps a gorilla session.
func NewSession(raw *sessions.Session) *Session {
	return &Session{raw: raw}
}

// UserID returns the logged-in user's id.
func (s *Session) UserID() (int64, bool) {
	loggedIn, _ := s.raw.Values[keyLoggedIn].(bool)
	id, ok := s.raw.Values[keyUserID].(int64)
	return id, loggedIn && ok
}

// Authenticate logs userID in and clears any pending registration.
func (s *Session) Authenticate(userID int64) {
	s.raw.Values[keyUserID] = userID
	s.raw.Values[keyLoggedIn] = true
	delete(s.raw.Values, keyTempID)
	delete(s.raw.Values, keyTempName)
}

// BeginRegistration remembers an external identity that has no account yet.
func (s *Session) BeginRegistration(externalID, name string) {
	s.raw.Values[keyTempID] = externalID
	s.raw.Values[keyTempName] = name
}

// PendingRegistration returns the identity stored by BeginRegistration.
func (s *Session) PendingRegistration() (externalID, name string, ok bool) {
	externalID, _ = s.raw.Values[keyTempID].(string)
	name, _ = s.raw.Values[keyTempName].(string)
	return externalID, name, externalID != ""
}

func (s *Session) HasLiked(postID int64) bool {
	return slices.Contains(s.likes(), postID)
}

func (s *Session) MarkLiked(postID int64) {
	liked := s.likes()
	if !slices.Contains(liked, postID) {
		s.raw.Values[keyLikedPosts] = append(liked, postID)
	}
}

func (s *Session) MarkUnliked(postID int64) {
	s.raw.Values[keyLikedPosts] = slices.DeleteFunc(s.likes(), func(id int64) bool { return id == postID })
}

// LikedPosts returns a copy of the ids this session has liked.
func (s *Session) LikedPosts() []int64 {
	return slices.Clone(s.likes())
}

// Invalidate clears every value; the next Save removes the session from
// the store and expires the cookie.
func (s *Session) Invalidate() {
	clear(s.raw.Values)
	s.raw.Options.MaxAge = -1
}

// Save persists the session and writes the cookie.
func (s *Session) Save(r *http.Request, w http.ResponseWriter) error {
	return s.raw.Save(r, w)
}

func (s *Session) likes() []int64 {
	liked, _ := s.raw.Values[keyLikedPosts].([]int64)
	return liked
}
