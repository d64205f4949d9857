package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *MemoryStore {
	t.Helper()
	return NewMemoryStore(newTestTokenService(t), time.Hour, false)
}

// loadSession runs the store's Get for a request that carries cookies, the
// way LoadSession does at the start of a request.
func loadSession(t *testing.T, store *MemoryStore, cookies []*http.Cookie) *Session {
	t.Helper()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range cookies {
		r.AddCookie(c)
	}
	raw, err := store.Get(r, SessionName)
	require.NoError(t, err)
	return NewSession(raw)
}

// saveSession saves s and returns the cookies the response set.
func saveSession(t *testing.T, s *Session) []*http.Cookie {
	t.Helper()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	require.NoError(t, s.Save(r, w))
	return w.Result().Cookies()
}

// =========================================================================
// MEMORY STORE
// =========================================================================

func TestMemoryStore_NewSessionWithoutCookie(t *testing.T) {
	store := newTestStore(t)

	s := loadSession(t, store, nil)
	assert.True(t, s.raw.IsNew)
	_, ok := s.UserID()
	assert.False(t, ok)
}

func TestMemoryStore_SaveAndReload(t *testing.T) {
	store := newTestStore(t)

	s := loadSession(t, store, nil)
	s.Authenticate(42)
	s.MarkLiked(7)
	cookies := saveSession(t, s)

	require.Len(t, cookies, 1)
	assert.Equal(t, SessionName, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	assert.Equal(t, 1, store.Len())

	reloaded := loadSession(t, store, cookies)
	id, ok := reloaded.UserID()
	assert.True(t, ok)
	assert.Equal(t, int64(42), id)
	assert.True(t, reloaded.HasLiked(7))
}

func TestMemoryStore_CookieIsSignedNotRawID(t *testing.T) {
	store := newTestStore(t)

	s := loadSession(t, store, nil)
	s.Authenticate(1)
	cookies := saveSession(t, s)

	assert.NotEqual(t, s.raw.ID, cookies[0].Value)
	sub, err := store.tokens.Verify(cookies[0].Value)
	require.NoError(t, err)
	assert.Equal(t, s.raw.ID, sub)
}

func TestMemoryStore_ForgedCookieGivesFreshSession(t *testing.T) {
	store := newTestStore(t)

	s := loadSession(t, store, []*http.Cookie{{Name: SessionName, Value: "forged"}})
	assert.True(t, s.raw.IsNew)
	_, ok := s.UserID()
	assert.False(t, ok)
}

func TestMemoryStore_ExpiredEntryIsDropped(t *testing.T) {
	store := newTestStore(t)
	now := time.Now()
	store.now = func() time.Time { return now }

	s := loadSession(t, store, nil)
	s.Authenticate(5)
	cookies := saveSession(t, s)

	store.now = func() time.Time { return now.Add(2 * time.Hour) }
	reloaded := loadSession(t, store, cookies)

	_, ok := reloaded.UserID()
	assert.False(t, ok)
	assert.Equal(t, 0, store.Len())
}

func TestMemoryStore_Invalidate(t *testing.T) {
	store := newTestStore(t)

	s := loadSession(t, store, nil)
	s.Authenticate(9)
	cookies := saveSession(t, s)

	reloaded := loadSession(t, store, cookies)
	reloaded.Invalidate()
	expired := saveSession(t, reloaded)

	require.Len(t, expired, 1)
	assert.Less(t, expired[0].MaxAge, 0)
	assert.Equal(t, 0, store.Len())

	// The old cookie no longer resolves to anything.
	again := loadSession(t, store, cookies)
	_, ok := again.UserID()
	assert.False(t, ok)
}

func TestMemoryStore_RequestsGetIsolatedCopies(t *testing.T) {
	store := newTestStore(t)

	s := loadSession(t, store, nil)
	s.Authenticate(1)
	s.MarkLiked(1)
	cookies := saveSession(t, s)

	a := loadSession(t, store, cookies)
	b := loadSession(t, store, cookies)
	a.MarkLiked(2)

	assert.False(t, b.HasLiked(2), "unsaved change leaked into another request")
}

// =========================================================================
// SESSION ACCESSORS
// =========================================================================

func TestSession_PendingRegistration(t *testing.T) {
	s := loadSession(t, newTestStore(t), nil)

	_, _, ok := s.PendingRegistration()
	assert.False(t, ok)

	s.BeginRegistration("hashed-id", "Alice A.")
	id, name, ok := s.PendingRegistration()
	assert.True(t, ok)
	assert.Equal(t, "hashed-id", id)
	assert.Equal(t, "Alice A.", name)

	s.Authenticate(3)
	_, _, ok = s.PendingRegistration()
	assert.False(t, ok, "Authenticate should clear the pending registration")
}

func TestSession_LikeSet(t *testing.T) {
	s := loadSession(t, newTestStore(t), nil)

	s.MarkLiked(1)
	s.MarkLiked(2)
	s.MarkLiked(1)
	assert.Equal(t, []int64{1, 2}, s.LikedPosts())

	s.MarkUnliked(1)
	assert.False(t, s.HasLiked(1))
	assert.True(t, s.HasLiked(2))

	s.MarkUnliked(99)
	assert.Equal(t, []int64{2}, s.LikedPosts())
}

func TestSession_LoggedInFlagRequired(t *testing.T) {
	s := loadSession(t, newTestStore(t), nil)
	s.raw.Values[keyUserID] = int64(4)

	_, ok := s.UserID()
	assert.False(t, ok)
}
